package bot

import "sync"

// userQueue runs jobs for the same user one at a time, in submission order.
// Different users are handled concurrently.
type userQueue struct {
	mu      sync.Mutex
	pending map[int64][]func()
	wg      sync.WaitGroup
}

func newUserQueue() *userQueue {
	return &userQueue{pending: make(map[int64][]func())}
}

// Submit queues job behind any work already pending for user.
func (q *userQueue) Submit(user int64, job func()) {
	q.mu.Lock()
	jobs, busy := q.pending[user]
	q.pending[user] = append(jobs, job)
	if !busy {
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if !busy {
		go q.drain(user)
	}
}

func (q *userQueue) drain(user int64) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		jobs := q.pending[user]
		if len(jobs) == 0 {
			delete(q.pending, user)
			q.mu.Unlock()
			return
		}
		job := jobs[0]
		q.pending[user] = jobs[1:]
		q.mu.Unlock()

		job()
	}
}

// Wait blocks until every submitted job has finished.
func (q *userQueue) Wait() {
	q.wg.Wait()
}
