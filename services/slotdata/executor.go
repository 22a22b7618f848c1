package slotdata

import "sync"

// Executor is the substrate jobs run on. The orchestration logic never
// cares whether jobs run inline or on a pool, which is what lets the
// --sync invocation mode share every code path with the concurrent one.
type Executor interface {
	Submit(job func())
	Wait()
}

// poolExecutor runs jobs on goroutines bounded by a semaphore.
type poolExecutor struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func newPoolExecutor(concurrency int) *poolExecutor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &poolExecutor{sem: make(chan struct{}, concurrency)}
}

func (e *poolExecutor) Submit(job func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sem <- struct{}{}
		defer func() { <-e.sem }()
		job()
	}()
}

func (e *poolExecutor) Wait() {
	e.wg.Wait()
}

// syncExecutor runs jobs immediately on the calling goroutine, which is
// a concurrency-1 pool with deterministic ordering.
type syncExecutor struct{}

func (syncExecutor) Submit(job func()) { job() }
func (syncExecutor) Wait()             {}
