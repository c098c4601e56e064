/*
 * Copyright 2024 The Wireflow Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package scheduler provides the cancellable timer primitives behind the
// time-based node behaviors: one-shot and periodic callbacks with a hard
// cancel-then-no-further-fire guarantee.
package scheduler

import (
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wireflow/wireflow/api/types"
)

// MaxInterval is the largest accepted delay or interval. Values above it are
// rejected when the timer is scheduled rather than silently wrapping.
const MaxInterval = time.Duration(math.MaxInt32) * time.Millisecond

var (
	ErrSchedulerClosed = errors.New("scheduler: closed")
	ErrIntervalTooBig  = fmt.Errorf("scheduler: interval exceeds maximum %v", MaxInterval)
	ErrInvalidInterval = errors.New("scheduler: interval must be positive")
)

// Scheduler owns a set of timer handles. Closing it cancels every handle it
// still tracks.
type Scheduler struct {
	logger  types.Logger
	handles map[*Handle]struct{}
	closed  bool
	mu      sync.Mutex
}

// New creates a scheduler. logger receives callback panics; nil falls back to
// the default logger.
func New(logger types.Logger) *Scheduler {
	return &Scheduler{
		logger:  types.NewLogger(logger),
		handles: make(map[*Handle]struct{}),
	}
}

// Once arms a one-shot callback after delay. The returned handle is owned by
// the caller and must be cancelled if the callback should not run.
func (s *Scheduler) Once(delay time.Duration, f func()) (*Handle, error) {
	if delay < 0 {
		delay = 0
	}
	if delay > MaxInterval {
		return nil, ErrIntervalTooBig
	}
	return s.schedule(delay, 0, f)
}

// Repeat arms a periodic callback firing every interval until cancelled.
func (s *Scheduler) Repeat(interval time.Duration, f func()) (*Handle, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if interval > MaxInterval {
		return nil, ErrIntervalTooBig
	}
	return s.schedule(interval, interval, f)
}

// OnceThenRepeat arms a callback after delay and then every interval, the
// discipline used by periodic source nodes. interval 0 degrades to Once.
func (s *Scheduler) OnceThenRepeat(delay, interval time.Duration, f func()) (*Handle, error) {
	if interval == 0 {
		return s.Once(delay, f)
	}
	if delay < 0 {
		delay = 0
	}
	if delay > MaxInterval || interval > MaxInterval {
		return nil, ErrIntervalTooBig
	}
	if interval < 0 {
		return nil, ErrInvalidInterval
	}
	return s.schedule(delay, interval, f)
}

func (s *Scheduler) schedule(delay, repeat time.Duration, f func()) (*Handle, error) {
	h := &Handle{s: s, repeat: repeat, f: f}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSchedulerClosed
	}
	s.handles[h] = struct{}{}
	s.mu.Unlock()

	// The handle lock makes the fire path wait until the timer field is set.
	h.mu.Lock()
	h.timer = time.AfterFunc(delay, h.fire)
	h.mu.Unlock()
	return h, nil
}

// Close cancels every tracked handle. Blocks until in-flight callbacks have
// returned.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := make([]*Handle, 0, len(s.handles))
	for h := range s.handles {
		pending = append(pending, h)
	}
	s.mu.Unlock()
	for _, h := range pending {
		h.Cancel()
	}
}

func (s *Scheduler) remove(h *Handle) {
	s.mu.Lock()
	delete(s.handles, h)
	s.mu.Unlock()
}

// Handle is one scheduled callback. It is owned exclusively by the caller
// that created it.
type Handle struct {
	s         *Scheduler
	timer     *time.Timer
	f         func()
	repeat    time.Duration
	cancelled bool
	finished  atomic.Bool
	mu        sync.Mutex
}

var _ types.TimerHandle = (*Handle)(nil)

// Cancel stops the timer. Once Cancel returns, the callback is guaranteed not
// to fire again; if the callback is running, Cancel waits for it to finish.
// Cancel must not be called from the handle's own callback; a one-shot
// callback simply returns, cancellation from inside a periodic callback
// should be done by cancelling the handle from another goroutine.
func (h *Handle) Cancel() {
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		return
	}
	h.cancelled = true
	h.finished.Store(true)
	if h.timer != nil {
		h.timer.Stop()
	}
	h.mu.Unlock()
	h.s.remove(h)
}

// Done reports that the callback can no longer fire. It never blocks, so it
// is safe to call from another handle's callback.
func (h *Handle) Done() bool {
	return h.finished.Load()
}

// fire runs under the handle lock so that Cancel serializes against it.
func (h *Handle) fire() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return
	}
	h.invoke()
	if h.repeat > 0 {
		h.timer.Reset(h.repeat)
	} else {
		h.cancelled = true
		h.finished.Store(true)
		h.s.remove(h)
	}
}

func (h *Handle) invoke() {
	defer func() {
		if e := recover(); e != nil {
			h.s.logger.Printf("scheduler: timer callback panic: %v\n%s", e, debug.Stack())
		}
	}()
	h.f()
}
