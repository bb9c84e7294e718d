// File: internal/usecase/session.go
package usecase

import (
	"context"
	"sync"
	"time"

	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/adapter"
)

// SessionState is the buyer-facing state of one checkout attempt.
type SessionState string

const (
	StateForm          SessionState = "FORM"
	StateChargeCreated SessionState = "CHARGE_CREATED" // awaiting payment
	StatePaid          SessionState = "PAID"
	StateExpired       SessionState = "EXPIRED"
	StateError         SessionState = "ERROR"
)

var sessionTransitions = map[SessionState][]SessionState{
	StateForm:          {StateChargeCreated, StateError},
	StateError:         {StateForm},
	StateChargeCreated: {StatePaid, StateExpired},
}

func (s SessionState) canMoveTo(next SessionState) bool {
	for _, n := range sessionTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Terminal reports whether polling has nothing left to wait for.
func (s SessionState) Terminal() bool {
	return s == StatePaid || s == StateExpired
}

// Session tracks one charge from issue to settlement. The snapshot and charge
// are set once, before the session is published, and never change afterwards.
type Session struct {
	mu        sync.Mutex
	state     SessionState
	snapshot  model.ChargeSnapshot
	charge    adapter.Charge
	orderID   string
	redirect  string
	lastErr   string
	updatedAt time.Time

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(now time.Time) *Session {
	return &Session{state: StateForm, updatedAt: now, done: make(chan struct{})}
}

// attach records the issued charge and moves FORM -> CHARGE_CREATED.
func (s *Session) attach(snap model.ChargeSnapshot, ch adapter.Charge, orderID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.canMoveTo(StateChargeCreated) {
		return false
	}
	s.snapshot = snap
	s.charge = ch
	s.orderID = orderID
	s.state = StateChargeCreated
	s.updatedAt = now
	return true
}

func (s *Session) fail(err error, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.canMoveTo(StateError) {
		s.state = StateError
		s.lastErr = err.Error()
		s.updatedAt = now
	}
}

// transition is a compare-and-set on the session state.
func (s *Session) transition(from, to SessionState, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from || !from.canMoveTo(to) {
		return false
	}
	s.state = to
	s.updatedAt = now
	return true
}

func (s *Session) setRedirect(url string) {
	s.mu.Lock()
	s.redirect = url
	s.mu.Unlock()
}

func (s *Session) CorrelationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.CorrelationID
}

func (s *Session) OrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderID
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Redirect() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redirect
}

// Snapshot returns the frozen charge inputs.
func (s *Session) Snapshot() model.ChargeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// SessionView is what the checkout page renders.
type SessionView struct {
	CorrelationID string       `json:"correlationId"`
	OrderID       string       `json:"orderId,omitempty"`
	State         SessionState `json:"state"`
	Amount        int64        `json:"amount"`
	BRCode        string       `json:"brCode,omitempty"`
	QRCodeImage   string       `json:"qrCodeImage,omitempty"`
	Redirect      string       `json:"redirect,omitempty"`
	Error         string       `json:"error,omitempty"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionView{
		CorrelationID: s.snapshot.CorrelationID,
		OrderID:       s.orderID,
		State:         s.state,
		Amount:        s.snapshot.Amount,
		BRCode:        s.charge.BRCode,
		QRCodeImage:   s.charge.QRCodeImage,
		Redirect:      s.redirect,
		Error:         s.lastErr,
		UpdatedAt:     s.updatedAt,
	}
}

// Close stops polling. Safe to call more than once and before Watch.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed when the polling goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) finish() {
	s.closeOnce.Do(func() { close(s.done) })
}

// SessionRegistry indexes live sessions by correlation id.
type SessionRegistry struct {
	mu sync.RWMutex
	m  map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{m: make(map[string]*Session)}
}

func (r *SessionRegistry) Put(s *Session) {
	r.mu.Lock()
	r.m[s.CorrelationID()] = s
	r.mu.Unlock()
}

func (r *SessionRegistry) Get(correlationID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.m[correlationID]
	return s, ok
}

// Remove deletes the entry only if it still points at s.
func (r *SessionRegistry) Remove(s *Session) {
	id := s.CorrelationID()
	r.mu.Lock()
	if cur, ok := r.m[id]; ok && cur == s {
		delete(r.m, id)
	}
	r.mu.Unlock()
}

func (r *SessionRegistry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.m))
	for _, s := range r.m {
		out = append(out, s)
	}
	return out
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}
