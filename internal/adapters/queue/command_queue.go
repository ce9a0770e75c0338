package queue

import (
	"sync"

	"github.com/ghalamif/uabridge/internal/domain"
)

// CommandQueue holds pending remote commands per device token. Each token
// has its own bounded FIFO.
type CommandQueue struct {
	mu   sync.Mutex
	data map[string][]domain.Command
	cap  int
}

// NewCommandQueue returns a queue holding at most capacity commands per
// token; capacity <= 0 means unbounded.
func NewCommandQueue(capacity int) *CommandQueue {
	return &CommandQueue{
		data: make(map[string][]domain.Command),
		cap:  capacity,
	}
}

// Enqueue appends cmd for token and reports false when the token's queue is full.
func (q *CommandQueue) Enqueue(token string, cmd domain.Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cap > 0 && len(q.data[token]) >= q.cap {
		return false
	}
	q.data[token] = append(q.data[token], cmd)
	return true
}

// Dequeue pops the oldest command for token, or nil when none is pending.
func (q *CommandQueue) Dequeue(token string) *domain.Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := q.data[token]
	if len(pending) == 0 {
		return nil
	}
	cmd := pending[0]
	if len(pending) == 1 {
		delete(q.data, token)
	} else {
		q.data[token] = append(pending[:0], pending[1:]...)
	}
	return &cmd
}

// Len returns the number of pending commands for token.
func (q *CommandQueue) Len(token string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data[token])
}
