package push

import (
	"sync"
	"time"
)

// Cancel stops a scheduled task. It reports whether the task was stopped
// before it ran.
type Cancel func() bool

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Cancel
}

// RealScheduler is backed by time.AfterFunc.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Cancel {
	t := time.AfterFunc(d, f)
	return t.Stop
}

type manualTask struct {
	delay    time.Duration
	fn       func()
	canceled bool
	fired    bool
}

// ManualScheduler only runs tasks when Fire is called.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) Cancel {
	task := &manualTask{delay: d, fn: f}
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if task.fired || task.canceled {
			return false
		}
		task.canceled = true
		return true
	}
}

// Pending counts tasks that are neither fired nor canceled.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, task := range s.tasks {
		if !task.fired && !task.canceled {
			n++
		}
	}
	return n
}

// Scheduled counts every task ever scheduled.
func (s *ManualScheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// LastDelay is the delay of the most recently scheduled task.
func (s *ManualScheduler) LastDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return 0
	}
	return s.tasks[len(s.tasks)-1].delay
}

// Fire runs the oldest pending task on the calling goroutine.
func (s *ManualScheduler) Fire() bool {
	s.mu.Lock()
	var next *manualTask
	for _, task := range s.tasks {
		if !task.fired && !task.canceled {
			next = task
			break
		}
	}
	if next == nil {
		s.mu.Unlock()
		return false
	}
	next.fired = true
	s.mu.Unlock()
	next.fn()
	return true
}
