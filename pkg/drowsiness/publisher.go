package drowsiness

import "sync"

// Executor runs published callbacks. It decides where delivery happens.
type Executor interface {
	Execute(task func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(task func())

// Execute calls f(task).
func (f ExecutorFunc) Execute(task func()) { f(task) }

// Inline runs callbacks on the publishing goroutine.
var Inline Executor = ExecutorFunc(func(task func()) { task() })

// SerialExecutor runs callbacks one at a time, in submission order, on a
// dedicated goroutine.
type SerialExecutor struct {
	mu     sync.Mutex
	tasks  chan func()
	done   chan struct{}
	closed bool
}

// NewSerialExecutor starts an executor with the given queue depth.
// Execute blocks while the queue is full.
func NewSerialExecutor(queue int) *SerialExecutor {
	if queue < 1 {
		queue = 1
	}
	s := &SerialExecutor{
		tasks: make(chan func(), queue),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *SerialExecutor) run() {
	defer close(s.done)
	for task := range s.tasks {
		task()
	}
}

// Execute queues task. Tasks submitted after Close are dropped.
func (s *SerialExecutor) Execute(task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.tasks <- task
}

// Close stops accepting tasks and waits for queued ones to finish.
func (s *SerialExecutor) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.tasks)
	}
	s.mu.Unlock()
	<-s.done
}

// Publisher suppresses consecutive equal values and hands changes to a
// single callback on its executor. It is driven by one writer.
type Publisher[T comparable] struct {
	callback func(T)
	exec     Executor
	last     T
	has      bool
}

// NewPublisher creates a publisher. A nil executor means Inline.
func NewPublisher[T comparable](callback func(T), exec Executor) *Publisher[T] {
	if exec == nil {
		exec = Inline
	}
	return &Publisher[T]{callback: callback, exec: exec}
}

// Publish delivers v if it differs from the last published value and
// reports whether it did.
func (p *Publisher[T]) Publish(v T) bool {
	if p.has && p.last == v {
		return false
	}
	p.last, p.has = v, true
	if p.callback != nil {
		p.exec.Execute(func() { p.callback(v) })
	}
	return true
}

// Last returns the last published value.
func (p *Publisher[T]) Last() (T, bool) {
	return p.last, p.has
}

// Forget clears the last value so the next Publish always delivers.
func (p *Publisher[T]) Forget() {
	var zero T
	p.last, p.has = zero, false
}
