package core

import (
	"sync"

	"github.com/jabolina/go-hostgossip/pkg/hostgossip/types"
)

// Invoker spawns a unit of work onto one of the worker pools described in
// spec.md §5, recovering and logging any panic so a single bad handler
// never takes down the node (spec.md §7).
type Invoker interface {
	// Spawn runs f asynchronously according to the pool's policy.
	Spawn(f func())

	// Stop blocks until every spawned f has returned, or the pool is
	// otherwise idle for pools with no notion of "in flight".
	Stop()
}

// elasticInvoker is the foreground pool: every Spawn gets its own goroutine,
// so the pool never back-pressures inbound peer update/remove handlers.
type elasticInvoker struct {
	group sync.WaitGroup
	log   types.Logger
}

func NewElasticInvoker(log types.Logger) Invoker {
	return &elasticInvoker{log: log}
}

func (e *elasticInvoker) Spawn(f func()) {
	e.group.Add(1)
	go func() {
		defer e.group.Done()
		defer e.recoverPanic()
		f()
	}()
}

func (e *elasticInvoker) Stop() {
	e.group.Wait()
}

func (e *elasticInvoker) recoverPanic() {
	if r := recover(); r != nil {
		e.log.Errorf("recovered panic in foreground handler: %v", r)
	}
}

// singleWorkerInvoker is the background pool: a single goroutine draining a
// work queue serially, used for anti-entropy advertisement processing so at
// most one full-state scan ever runs at a time (spec.md §4.4, §5).
type singleWorkerInvoker struct {
	log   types.Logger
	work  chan func()
	done  chan struct{}
	drain sync.WaitGroup
}

func NewSingleWorkerInvoker(log types.Logger, queueDepth int) Invoker {
	s := &singleWorkerInvoker{
		log:  log,
		work: make(chan func(), queueDepth),
		done: make(chan struct{}),
	}
	s.drain.Add(1)
	go s.run()
	return s
}

func (s *singleWorkerInvoker) run() {
	defer s.drain.Done()
	for {
		select {
		case f, ok := <-s.work:
			if !ok {
				return
			}
			s.runOne(f)
		case <-s.done:
			for {
				select {
				case f := <-s.work:
					s.runOne(f)
				default:
					return
				}
			}
		}
	}
}

func (s *singleWorkerInvoker) runOne(f func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("recovered panic in background worker: %v", r)
		}
	}()
	f()
}

func (s *singleWorkerInvoker) Spawn(f func()) {
	select {
	case s.work <- f:
	case <-s.done:
	}
}

func (s *singleWorkerInvoker) Stop() {
	close(s.done)
	s.drain.Wait()
}

var (
	_ Invoker = (*elasticInvoker)(nil)
	_ Invoker = (*singleWorkerInvoker)(nil)
)
