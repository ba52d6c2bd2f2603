package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/assigny/clinic-agent/pkg/logging"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one entry in a session's ordered transcript.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrRoleConflict is returned when a session is reused with a different role.
var ErrRoleConflict = errors.New("agent: session role conflict")

// Session holds one conversation's state. All mutation happens under mu,
// which the pipeline holds for the full duration of a turn so concurrent
// requests on the same session cannot interleave appends.
type Session struct {
	ID   string
	Role Role

	mu         sync.Mutex
	turns      []Turn
	grounded   []string
	lastActive time.Time
}

// Lock serializes turn processing for this session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the per-session lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// AppendTurn adds a turn. Caller must hold the session lock.
func (s *Session) AppendTurn(speaker Speaker, text string, at time.Time) {
	s.turns = append(s.turns, Turn{Speaker: speaker, Text: text, Timestamp: at})
	s.lastActive = at
}

// Recent returns up to n trailing turns in order. Caller must hold the lock.
func (s *Session) Recent(n int) []Turn {
	if n <= 0 || n > len(s.turns) {
		n = len(s.turns)
	}
	out := make([]Turn, n)
	copy(out, s.turns[len(s.turns)-n:])
	return out
}

// AddGrounded records outcome data the session may later refer to without it
// counting as a hallucination. Caller must hold the lock.
func (s *Session) AddGrounded(fact string) {
	if fact == "" {
		return
	}
	s.grounded = append(s.grounded, fact)
}

// Grounded returns a copy of the grounded outcome corpus. Caller must hold the lock.
func (s *Session) Grounded() []string {
	out := make([]string, len(s.grounded))
	copy(out, s.grounded)
	return out
}

// TurnCount reports the transcript length. Caller must hold the lock.
func (s *Session) TurnCount() int {
	return len(s.turns)
}

// SessionStore keeps per-conversation state in process memory. Sessions are
// created lazily on first use, keyed by a caller-supplied identifier, and
// evicted once idle past the TTL.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	ttl    time.Duration
	now    func() time.Time
	logger *logging.Logger
}

func NewSessionStore(ttl time.Duration, logger *logging.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// GetOrCreate returns the session for the identifier, creating it with the
// given role on first sight. The role is fixed for the session's lifetime; a
// later call with a different role fails with ErrRoleConflict. The lookup
// counts as activity, so a session handed out here cannot be reaped before
// the caller takes its lock.
func (st *SessionStore) GetOrCreate(sessionID string, role Role) (*Session, error) {
	st.mu.RLock()
	sess, ok := st.sessions[sessionID]
	st.mu.RUnlock()
	if ok {
		if sess.Role != role {
			return nil, fmt.Errorf("%w: session %s is %s, request says %s", ErrRoleConflict, sessionID, sess.Role, role)
		}
		st.touch(sess)
		return sess, nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok := st.sessions[sessionID]; ok {
		if sess.Role != role {
			return nil, fmt.Errorf("%w: session %s is %s, request says %s", ErrRoleConflict, sessionID, sess.Role, role)
		}
		st.touch(sess)
		return sess, nil
	}

	sess = &Session{
		ID:         sessionID,
		Role:       role,
		lastActive: st.now(),
	}
	st.sessions[sessionID] = sess
	return sess, nil
}

func (st *SessionStore) touch(sess *Session) {
	sess.mu.Lock()
	sess.lastActive = st.now()
	sess.mu.Unlock()
}

// Len reports how many sessions are live.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Reap removes sessions idle past the TTL and returns how many were evicted.
// It takes each session's own lock first, so a session mid-turn is never
// removed under the pipeline's feet.
func (st *SessionStore) Reap() int {
	st.mu.RLock()
	candidates := make([]*Session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		candidates = append(candidates, sess)
	}
	st.mu.RUnlock()

	cutoff := st.now().Add(-st.ttl)
	evicted := 0
	for _, sess := range candidates {
		sess.mu.Lock()
		idle := sess.lastActive.Before(cutoff)
		sess.mu.Unlock()
		if !idle {
			continue
		}

		st.mu.Lock()
		// Re-check under the write lock; the session may have been touched.
		if current, ok := st.sessions[sess.ID]; ok && current == sess {
			sess.mu.Lock()
			if sess.lastActive.Before(cutoff) {
				delete(st.sessions, sess.ID)
				evicted++
			}
			sess.mu.Unlock()
		}
		st.mu.Unlock()
	}

	if evicted > 0 {
		st.logger.Debug("reaped idle sessions", "count", evicted)
	}
	return evicted
}

// StartReaper runs Reap on the given interval until ctx is canceled.
func (st *SessionStore) StartReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.Reap()
			}
		}
	}()
}
