package dispatch

import (
	"sync"
	"sync/atomic"
)

const defaultMaxQueue = 50000

var (
	_ Nonblocking = (*Queue)(nil)
	_ Nonblocking = (*Pool)(nil)
)

// Queue runs tasks in order on a single event loop goroutine. Dispatch blocks
// while the queue holds maxQueue tasks.
type Queue struct {
	cond     *sync.Cond
	queue    []func() // pending work, guarded by cond.L
	maxQueue int
	stop     bool
	exited   bool // listener returned, guarded by cond.L
	done     chan struct{}
	once     sync.Once
}

// NewQueue creates a queue and starts its event loop.
func NewQueue(maxQueue int) *Queue {
	if maxQueue <= 0 {
		maxQueue = defaultMaxQueue
	}
	q := &Queue{
		cond:     sync.NewCond(new(sync.Mutex)),
		queue:    make([]func(), 0, 64),
		maxQueue: maxQueue,
		done:     make(chan struct{}),
	}
	go q.listen()
	return q
}

// Dispatch appends a task to the queue
func (q *Queue) Dispatch(task func()) error {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	// Backpressure: wait if the queue is full
	for len(q.queue) >= q.maxQueue && !q.stop {
		q.cond.Wait()
	}
	if q.stop {
		return ErrClosed
	}

	q.queue = append(q.queue, task)
	q.cond.Broadcast() // Wake the listener
	return nil
}

// DispatchNoWait appends a task without waiting for room in the queue. It is
// meant for tasks already running on this queue. Once Close was called it
// still accepts tasks until the queue has drained, so follow-up work of the
// tasks being drained is not lost.
func (q *Queue) DispatchNoWait(task func()) error {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	if q.exited {
		return ErrClosed
	}

	q.queue = append(q.queue, task)
	q.cond.Broadcast()
	return nil
}

// Close stops accepting tasks, drains the queue and waits for the loop to
// exit. It must not be called from a queued task.
func (q *Queue) Close() error {
	q.once.Do(func() {
		q.cond.L.Lock()
		q.stop = true
		q.cond.Broadcast()
		q.cond.L.Unlock()
	})
	<-q.done
	return nil
}

// Len returns the number of queued tasks
func (q *Queue) Len() int {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	return len(q.queue)
}

// listen processes the task queue until the queue is closed and drained
func (q *Queue) listen() {
	defer close(q.done)
	pending := make([]func(), 0, 128)

	for {
		q.cond.L.Lock()
		for len(q.queue) == 0 {
			if q.stop {
				q.exited = true
				q.cond.L.Unlock()
				return
			}
			q.cond.Wait()
		}

		// Swap buffers and reset the current queue
		temp := q.queue
		q.queue = pending[:0]
		pending = temp
		q.cond.L.Unlock()

		// Outside of the critical section, process the work
		for i, task := range pending {
			task()
			pending[i] = nil
		}

		// Notify dispatchers waiting due to backpressure
		q.cond.Broadcast()
	}
}

// ------------------------------------- Pool -------------------------------------

// Pool spreads tasks round-robin over several queues.
type Pool struct {
	queues []*Queue
	next   atomic.Uint64
}

// NewPool creates a pool of workers event loops, each with its own queue.
func NewPool(workers, maxQueue int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{queues: make([]*Queue, workers)}
	for i := range p.queues {
		p.queues[i] = NewQueue(maxQueue)
	}
	return p
}

func (p *Pool) Dispatch(task func()) error {
	idx := (p.next.Add(1) - 1) % uint64(len(p.queues))
	return p.queues[idx].Dispatch(task)
}

func (p *Pool) DispatchNoWait(task func()) error {
	idx := (p.next.Add(1) - 1) % uint64(len(p.queues))
	return p.queues[idx].DispatchNoWait(task)
}

func (p *Pool) Close() error {
	for _, q := range p.queues {
		q.Close()
	}
	return nil
}

// Workers returns the number of event loops in the pool
func (p *Pool) Workers() int {
	return len(p.queues)
}
