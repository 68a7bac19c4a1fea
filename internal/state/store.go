// Package state holds the client-visible state of a session. Each feature
// (notifications, households, auth, messages, ui) has a pure reducer and a
// closed set of actions; a Store applies actions one at a time and
// publishes the resulting snapshots to subscribers.
package state

import (
	"sync"
)

// Reducer computes the next state from the current state and an action.
// Reducers must not perform I/O and must not mutate the slices or maps
// reachable from the state they receive.
type Reducer[S any, A any] func(S, A) S

// Store owns one feature's state. Dispatch is synchronous: when it
// returns, the action has been applied and subscribers have been offered
// the new snapshot.
type Store[S any, A any] struct {
	mu      sync.Mutex
	state   S
	reduce  Reducer[S, A]
	nextSub int
	subs    map[int]chan S
}

// NewStore creates a store with an initial state and its reducer.
func NewStore[S any, A any](initial S, reduce Reducer[S, A]) *Store[S, A] {
	return &Store[S, A]{
		state:  initial,
		reduce: reduce,
		subs:   make(map[int]chan S),
	}
}

// State returns the current snapshot.
func (s *Store[S, A]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies actions in order and returns the resulting state.
// Concurrent dispatchers are serialized; each action sees the state
// produced by the previous one.
func (s *Store[S, A]) Dispatch(actions ...A) S {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range actions {
		s.state = s.reduce(s.state, a)
	}
	s.publish(s.state)
	return s.state
}

// Subscribe returns a channel that receives the latest snapshot after
// every dispatch. Slow subscribers only ever see the newest state; older
// undelivered snapshots are replaced. The returned function unsubscribes
// and closes the channel.
func (s *Store[S, A]) Subscribe() (<-chan S, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan S, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// publish must be called with mu held so snapshots reach each
// subscriber in dispatch order.
func (s *Store[S, A]) publish(state S) {
	for _, ch := range s.subs {
		select {
		case ch <- state:
		default:
			// Drop the stale snapshot and deliver the newest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- state:
			default:
			}
		}
	}
}
