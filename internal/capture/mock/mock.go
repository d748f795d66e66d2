// Package mock provides a scriptable capture.Source for tests.
package mock

import (
	"context"
	"sync"

	"github.com/wrenvoice/wren/internal/capture"
	"github.com/wrenvoice/wren/pkg/audio"
)

var _ capture.Source = (*Source)(nil)

// Source is a test double for [capture.Source]. After Start, tests drive it
// with [Source.Feed] and [Source.Fail], which invoke the registered
// callbacks the way a real driver would.
type Source struct {
	mu      sync.Mutex
	started bool
	stopped int
	cfg     audio.StreamConfig
	onFrame func(audio.Frame)
	onErr   func(error)

	// StartErr, when set, is returned by Start.
	StartErr error

	// StopErr, when set, is returned by Stop.
	StopErr error
}

// Start records the stream config and callbacks. It never delivers frames on
// its own; tests call Feed.
func (s *Source) Start(_ context.Context, cfg audio.StreamConfig, onFrame func(audio.Frame), onErr func(error)) error {
	if s.StartErr != nil {
		return s.StartErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.cfg = cfg
	s.onFrame = onFrame
	s.onErr = onErr
	return nil
}

// Stop marks the stream closed. Frames fed after Stop are discarded.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	s.onFrame = nil
	s.onErr = nil
	return s.StopErr
}

// Feed delivers one frame through the producer callback, as the driver
// would. It is a no-op before Start or after Stop.
func (s *Source) Feed(frame audio.Frame) {
	s.mu.Lock()
	cb := s.onFrame
	s.mu.Unlock()
	if cb != nil {
		cb(frame)
	}
}

// Fail reports a driver fault through the error callback.
func (s *Source) Fail(err error) {
	s.mu.Lock()
	cb := s.onErr
	s.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// Started reports whether Start was called successfully.
func (s *Source) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// StopCalls returns how many times Stop was called.
func (s *Source) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// StreamConfig returns the config passed to Start.
func (s *Source) StreamConfig() audio.StreamConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}
