// Package observer implements the cross-boundary data-sink pattern used
// everywhere this SDK needs to stream events to a caller without the
// caller blocking the producer: SOCKS tunnel reads, hidden-service intake
// requests, wallet sync progress. It mirrors the
// Arc<RwLock<Option<DataObserver>>> slot from the original Rust SDK's
// hidden_service module, reimplemented as a mutex-guarded replaceable
// interface slot.
package observer

import (
	"errors"
	"sync"
)

// EOF is the sentinel string carried by ErrEOF, and is what callers compare
// against after unwrapping an OnError delivery to recognize a clean stream
// close rather than a genuine error.
const EOF = "EOF"

// ErrEOF is delivered to OnError, never OnData, when the producer side of a
// stream closes cleanly. Consumers distinguish it from a genuine failure
// with errors.Is(err, observer.ErrEOF).
var ErrEOF = errors.New(EOF)

// DataObserver receives events from a single stream. OnError is called with
// ErrEOF exactly once, as the final call, when the stream closes without a
// genuine error. Implementations must not block; slow consumers should
// buffer internally.
type DataObserver interface {
	OnData(data string)
	OnError(err error)
}

// Slot is a replaceable, concurrency-safe holder for a single DataObserver.
// It lets a long-lived stream (a tunnel, an intake listener) be wired up to
// a callback after the stream has already started, and re-wired or cleared
// at any point without the producer needing to coordinate.
type Slot struct {
	mtx      sync.RWMutex
	observer DataObserver
}

// Set installs obs as the current observer, replacing any previous one.
// Passing nil clears the slot.
func (s *Slot) Set(obs DataObserver) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.observer = obs
}

// Emit forwards data to the current observer, if any. It is a no-op when
// the slot is empty, so producers never need to nil-check before calling.
func (s *Slot) Emit(data string) {
	s.mtx.RLock()
	obs := s.observer
	s.mtx.RUnlock()
	if obs != nil {
		obs.OnData(data)
	}
}

// EmitEOF forwards the EOF sentinel to the current observer's OnError, if
// any. A clean stream close is reported on the error channel, not the data
// channel, so consumers can select on a single callback for end-of-stream.
func (s *Slot) EmitEOF() {
	s.EmitError(ErrEOF)
}

// EmitError forwards err to the current observer, if any.
func (s *Slot) EmitError(err error) {
	s.mtx.RLock()
	obs := s.observer
	s.mtx.RUnlock()
	if obs != nil {
		obs.OnError(err)
	}
}

// Get returns the currently installed observer, or nil.
func (s *Slot) Get() DataObserver {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.observer
}

// FuncObserver adapts two plain functions into a DataObserver, for callers
// that don't need a dedicated type.
type FuncObserver struct {
	Data  func(string)
	Error func(error)
}

func (f FuncObserver) OnData(data string) {
	if f.Data != nil {
		f.Data(data)
	}
}

func (f FuncObserver) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}
