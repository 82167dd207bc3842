// Package conversation drives the multi-step transaction entry dialogue.
package conversation

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/susu3304/finbot/internal/db"
)

type State int

const (
	Idle State = iota
	AwaitingKind
	AwaitingCategory
	AwaitingAmount
	AwaitingComment
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingKind:
		return "awaiting_kind"
	case AwaitingCategory:
		return "awaiting_category"
	case AwaitingAmount:
		return "awaiting_amount"
	case AwaitingComment:
		return "awaiting_comment"
	}
	return "unknown"
}

// Draft is the transaction being built. Fields stay zero until their step is done.
type Draft struct {
	Kind     db.Kind
	Category string
	Amount   decimal.Decimal
	Comment  string
}

// Session is one user's dialogue. It is only valid between Store.Acquire and Release.
type Session struct {
	UserID    int64
	State     State
	Draft     Draft
	UpdatedAt time.Time

	mu    sync.Mutex
	refs  int // guarded by store.mu
	store *Store
}

// Reset drops the draft and returns to Idle.
func (s *Session) Reset() {
	s.State = Idle
	s.Draft = Draft{}
	s.touch()
}

// Release ends the caller's critical section. Idle sessions are forgotten.
func (s *Session) Release() {
	st := s.store
	st.mu.Lock()
	s.refs--
	if s.refs == 0 && s.State == Idle {
		delete(st.sessions, s.UserID)
	}
	st.mu.Unlock()
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.UpdatedAt = s.store.now()
}

// Store keeps in-memory sessions keyed by user identity for the life of the process.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// Acquire returns the user's session with its lock held, creating an Idle one if needed.
// A second Acquire for the same user blocks until the first caller releases.
func (st *Store) Acquire(userID int64) *Session {
	st.mu.Lock()
	sess, ok := st.sessions[userID]
	if !ok {
		sess = &Session{UserID: userID, store: st, UpdatedAt: st.now()}
		st.sessions[userID] = sess
	}
	sess.refs++
	st.mu.Unlock()

	sess.mu.Lock()
	return sess
}

// Len returns the number of tracked sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep forgets unreferenced sessions untouched for longer than maxIdle.
func (st *Store) Sweep(maxIdle time.Duration) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := st.now().Add(-maxIdle)
	removed := 0
	for id, sess := range st.sessions {
		if sess.refs == 0 && sess.UpdatedAt.Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}
