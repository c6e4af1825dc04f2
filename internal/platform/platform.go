package platform

import (
	"regexp"

	"media-fetch-tg/internal/types"
)

type rule struct {
	tag types.Platform
	re  *regexp.Regexp
}

// Ordered: first match wins.
var rules = []rule{
	{types.PlatformYouTube, regexp.MustCompile(`(?i)(youtube\.com|youtu\.be)`)},
	{types.PlatformInstagram, regexp.MustCompile(`(?i)instagram\.com`)},
	{types.PlatformTikTok, regexp.MustCompile(`(?i)tiktok\.com`)},
	{types.PlatformTwitter, regexp.MustCompile(`(?i)(twitter\.com|x\.com)`)},
	{types.PlatformFacebook, regexp.MustCompile(`(?i)facebook\.com`)},
	{types.PlatformVimeo, regexp.MustCompile(`(?i)vimeo\.com`)},
	{types.PlatformSoundCloud, regexp.MustCompile(`(?i)soundcloud\.com`)},
	{types.PlatformSpotify, regexp.MustCompile(`(?i)spotify\.com`)},
}

// Detect classifies a URL by its source site. It always returns a tag.
func Detect(url string) types.Platform {
	for _, r := range rules {
		if r.re.MatchString(url) {
			return r.tag
		}
	}
	return types.PlatformOther
}
