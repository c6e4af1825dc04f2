package task

type Task interface {
	Do()
}

type Worker struct {
	taskC chan Task
}

func (w *Worker) Run() {
	for task := range w.taskC {
		task.Do()
	}
}

func RunWorkers(taskC chan Task, count int) {
	for i := 0; i < count; i++ {
		go (&Worker{taskC: taskC}).Run()
	}
}
