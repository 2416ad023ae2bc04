package logging

import (
	"container/ring"
	"io"
	"sync"
)

// Monitor is an io.Writer that keeps recent writes in a ring buffer and fans
// them out to subscribers.
type Monitor struct {
	out io.Writer

	mu      sync.RWMutex
	clients map[int]func([]byte)
	nextID  int

	bufferMu sync.RWMutex
	buffer   *ring.Ring
}

// NewMonitor keeps the last size writes and forwards everything to out.
func NewMonitor(out io.Writer, size int) *Monitor {
	if out == nil {
		out = io.Discard
	}
	if size < 1 {
		size = 1024
	}
	return &Monitor{
		out:     out,
		clients: make(map[int]func([]byte)),
		buffer:  ring.New(size),
	}
}

func (w *Monitor) Write(p []byte) (n int, err error) {
	n, err = w.out.Write(p)
	if err != nil {
		return n, err
	}

	// callers may reuse p, zerolog does
	data := make([]byte, len(p))
	copy(data, p)

	w.bufferMu.Lock()
	w.buffer.Value = data
	w.buffer = w.buffer.Next()
	w.bufferMu.Unlock()

	w.broadcast(data)
	return len(p), nil
}

// History returns buffered writes, oldest first.
func (w *Monitor) History() []byte {
	w.bufferMu.RLock()
	defer w.bufferMu.RUnlock()

	var history []byte
	w.buffer.Do(func(p any) {
		if content, ok := p.([]byte); ok {
			history = append(history, content...)
		}
	})
	return history
}

// OnLogData registers fn for every future write and returns a function that
// removes it. fn runs on the writer's goroutine and must not block.
func (w *Monitor) OnLogData(fn func(data []byte)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	w.clients[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.clients, id)
	}
}

func (w *Monitor) broadcast(data []byte) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, fn := range w.clients {
		fn(data)
	}
}
