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

package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/wireflow/wireflow/test/assert"
)

func TestOnce(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var fired int32
	_, err := s.Once(10*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})
	assert.Nil(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
}

func TestCancelThenNoFire(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var fired int32
	h, err := s.Once(20*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})
	assert.Nil(t, err)
	h.Cancel()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestCancelBlocksOnInFlightCallback(t *testing.T) {
	s := New(nil)
	defer s.Close()

	started := make(chan struct{})
	var finished int32
	h, err := s.Once(time.Millisecond, func() {
		close(started)
		time.Sleep(30 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
	})
	assert.Nil(t, err)

	<-started
	h.Cancel()
	// Cancel must not return while the callback is still running
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished))
}

func TestRepeat(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var fired int32
	h, err := s.Repeat(10*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})
	assert.Nil(t, err)

	time.Sleep(55 * time.Millisecond)
	h.Cancel()
	n := atomic.LoadInt32(&fired)
	assert.True(t, n >= 3, "expected at least 3 ticks, got", n)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, atomic.LoadInt32(&fired))
}

func TestOnceThenRepeat(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var fired int32
	h, err := s.OnceThenRepeat(5*time.Millisecond, 10*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})
	assert.Nil(t, err)

	time.Sleep(50 * time.Millisecond)
	h.Cancel()
	assert.True(t, atomic.LoadInt32(&fired) >= 3)
}

func TestIntervalCeiling(t *testing.T) {
	s := New(nil)
	defer s.Close()

	_, err := s.Once(MaxInterval+time.Millisecond, func() {})
	assert.Equal(t, ErrIntervalTooBig, err)

	_, err = s.Repeat(MaxInterval+time.Millisecond, func() {})
	assert.Equal(t, ErrIntervalTooBig, err)

	_, err = s.Repeat(0, func() {})
	assert.Equal(t, ErrInvalidInterval, err)
}

func TestCloseCancelsEverything(t *testing.T) {
	s := New(nil)

	var fired int32
	for i := 0; i < 5; i++ {
		_, err := s.Once(20*time.Millisecond, func() {
			atomic.AddInt32(&fired, 1)
		})
		assert.Nil(t, err)
	}
	s.Close()
	// idempotent
	s.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))

	_, err := s.Once(time.Millisecond, func() {})
	assert.Equal(t, ErrSchedulerClosed, err)
}

func TestCancelIdempotent(t *testing.T) {
	s := New(nil)
	defer s.Close()

	h, err := s.Once(5*time.Millisecond, func() {})
	assert.Nil(t, err)
	time.Sleep(20 * time.Millisecond)
	h.Cancel()
	h.Cancel()
}

func TestHandleDone(t *testing.T) {
	s := New(nil)
	defer s.Close()

	once, err := s.Once(time.Hour, func() {})
	assert.Nil(t, err)
	assert.False(t, once.Done())
	once.Cancel()
	assert.True(t, once.Done())

	var fired int32
	fast, err := s.Once(5*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	assert.Nil(t, err)
	for i := 0; i < 100 && !fast.Done(); i++ {
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, fast.Done())
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))

	repeat, err := s.Repeat(10*time.Millisecond, func() {})
	assert.Nil(t, err)
	time.Sleep(35 * time.Millisecond)
	assert.False(t, repeat.Done())
	repeat.Cancel()
	assert.True(t, repeat.Done())
}
