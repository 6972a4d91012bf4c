package wallet

import (
	"sync"

	"github.com/google/uuid"
)

// SubscriptionID identifies an observer registration.
type SubscriptionID string

type subscription struct {
	id       SubscriptionID
	observer Observer
}

// Store holds a State and is its only mutation path. Updates are merged
// immediately under the store lock; the resulting notifications are queued
// and delivered by a single dispatcher in merge order. An Apply made while a
// dispatch is running (from an observer or another goroutine) is merged at
// once but notified after the current batch, so observers never see a
// later state before an earlier one.
type Store struct {
	mu          sync.Mutex
	state       State
	subs        []subscription
	queue       []Event
	dispatching bool
	logger      Logger
}

// NewStore creates a store holding initial.
func NewStore(initial State, logger Logger) *Store {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Store{state: initial, logger: logger}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Apply merges u into the state and notifies observers. Merges that leave the
// state unchanged produce no notification unless u reports an error.
func (s *Store) Apply(u Update) State {
	s.mu.Lock()
	next := s.mergeLocked(u)
	s.mu.Unlock()

	s.dispatch()
	return next
}

// ApplyIf merges u only when pred holds for the current state. The check and
// the merge happen under the same lock.
func (s *Store) ApplyIf(pred func(State) bool, u Update) bool {
	_, ok := s.ApplyFunc(func(cur State) (Update, bool) {
		return u, pred(cur)
	})
	return ok
}

// ApplyFunc merges the update fn derives from the current state. fn runs
// under the store lock and must not call back into the store; it reports
// false to leave the state untouched. ApplyFunc returns the resulting state.
func (s *Store) ApplyFunc(fn func(State) (Update, bool)) (State, bool) {
	s.mu.Lock()
	u, ok := fn(s.state)
	if !ok {
		cur := s.state
		s.mu.Unlock()
		return cur, false
	}
	next := s.mergeLocked(u)
	s.mu.Unlock()

	s.dispatch()
	return next, true
}

func (s *Store) mergeLocked(u Update) State {
	prev := s.state
	next := prev.Merge(u)
	reported := u.LastError != nil && *u.LastError != ""
	if next == prev && !reported {
		return next
	}
	s.state = next
	s.queue = append(s.queue, deriveEvents(prev, next, reported)...)
	return next
}

// dispatch delivers queued events unless another call is already doing so.
func (s *Store) dispatch() {
	s.mu.Lock()
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true

	for len(s.queue) > 0 {
		ev := s.queue[0]
		s.queue = s.queue[1:]
		subs := make([]subscription, len(s.subs))
		copy(subs, s.subs)
		s.mu.Unlock()

		for _, sub := range subs {
			s.deliver(sub, ev)
		}

		s.mu.Lock()
	}

	s.queue = nil
	s.dispatching = false
	s.mu.Unlock()
}

func (s *Store) deliver(sub subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("observer %s panicked on %s: %v", sub.id, ev.Type, r)
		}
	}()
	sub.observer.OnEvent(ev)
}

// Subscribe registers o and returns its subscription ID.
func (s *Store) Subscribe(o Observer) SubscriptionID {
	id := SubscriptionID(uuid.NewString())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, subscription{id: id, observer: o})
	return id
}

// Unsubscribe removes the observer registered under id.
func (s *Store) Unsubscribe(id SubscriptionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return true
		}
	}
	return false
}

// ClearObservers removes every observer.
func (s *Store) ClearObservers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = nil
}

// Logger is the interface for wallet logging.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
