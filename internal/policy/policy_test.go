package policy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"media-fetch-tg/internal/policy"
)

func TestLimitFor(t *testing.T) {
	r := require.New(t)

	r.Equal(int64(1<<30), policy.LimitFor(false))
	r.Equal(int64(5<<30), policy.LimitFor(true))
}

func TestEvaluate(t *testing.T) {
	r := require.New(t)

	limit := policy.FreeMaxSize

	r.True(policy.Evaluate(0, limit).Accepted)
	r.True(policy.Evaluate(limit-1, limit).Accepted)
	r.True(policy.Evaluate(limit, limit).Accepted)
	r.False(policy.Evaluate(limit+1, limit).Accepted)

	verdict := policy.Evaluate(2<<30, limit)
	r.False(verdict.Accepted)
	r.InDelta(2.0, verdict.ActualGiB, 0.01)
	r.InDelta(1.0, verdict.LimitGiB, 0.01)
	r.Equal("File too large (2.0GB > 1GB limit)", verdict.Reason())
}
