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

// Package correlation tracks in-flight message groups: splits awaiting a
// join, sequences awaiting a sort boundary. Each group moves through
// OPEN -> COMPLETE or OPEN -> TIMED_OUT and is removed the instant it
// terminates; a terminated group accepts no further contributions.
package correlation

import (
	"sort"
	"sync"
	"time"

	"github.com/wireflow/wireflow/api/types"
)

// TimerService arms the per-group deadlines. Satisfied by types.NodeContext,
// so deadlines owned by a node are cancelled with the node's other timers on
// close.
type TimerService interface {
	ScheduleOnce(delay time.Duration, f func()) (types.TimerHandle, error)
}

// Reason reports why a group was flushed.
type Reason int

const (
	// ReasonComplete: the expected count or threshold was reached.
	ReasonComplete Reason = iota
	// ReasonTimeout: the group deadline fired first; the flush carries
	// whatever contributions exist.
	ReasonTimeout
)

// How long a flushed group id is remembered for the drop-late policy.
const flushedRetention = time.Minute

// Options configures group completion for one engine instance.
type Options struct {
	// Count is the expected cardinality when known up front. Zero means the
	// count arrives on the messages themselves, or Threshold applies.
	Count int
	// Threshold drives completion for unbounded joins with no sequence
	// count: the group completes after this many contributions.
	Threshold int
	// Timeout is the per-group deadline. Zero disables it.
	Timeout time.Duration
	// DropLate drops contributions for an already-flushed group id instead
	// of opening a fresh group with them.
	DropLate bool
	// Kind is the default assembly kind when messages do not declare one.
	Kind string
	// Separator is the default string-kind separator.
	Separator string
}

// Contribution is one accumulated (index, payload) pair. Msg is the full
// message, kept for behaviors that re-emit rather than assemble. Key carries
// the object-kind nesting key when the originating split provided one.
type Contribution struct {
	Index   int
	Key     string
	Payload interface{}
	Msg     types.Message
}

// Group is the unit of engine state for one groupId.
type Group struct {
	Id string
	// Template is a copy of the first contribution's message, used to build
	// the output envelope.
	Template types.Message

	contributions map[int]Contribution
	count         int
	kind          string
	separator     string
	deadline      types.TimerHandle
	done          bool
	mu            sync.Mutex
}

// Kind returns the group's declared assembly kind.
func (g *Group) Kind() string { return g.kind }

// Separator returns the group's declared string separator.
func (g *Group) Separator() string { return g.separator }

// Size returns the number of distinct accumulated indices.
func (g *Group) Size() int { return len(g.contributions) }

// Contributions returns the accumulated contributions in ascending index
// order. Only valid once the group has been handed to the flush callback.
func (g *Group) Contributions() []Contribution {
	out := make([]Contribution, 0, len(g.contributions))
	for _, c := range g.contributions {
		out = append(out, c)
	}
	sortContributions(out)
	return out
}

// Engine tracks live groups keyed by group id. Operations on one group are
// mutually exclusive; distinct groups never block on each other.
type Engine struct {
	timers  TimerService
	opts    Options
	onFlush func(g *Group, reason Reason)

	groups  map[string]*Group
	flushed map[string]time.Time
	closed  bool
	mu      sync.Mutex
}

// New creates a correlation engine. onFlush is called synchronously with the
// contribution that completes a group, or from the deadline timer on timeout;
// the group is already removed from the live table when it runs.
func New(timers TimerService, opts Options, onFlush func(g *Group, reason Reason)) *Engine {
	return &Engine{
		timers:  timers,
		opts:    opts,
		onFlush: onFlush,
		groups:  make(map[string]*Group),
		flushed: make(map[string]time.Time),
	}
}

// Add accumulates one contribution. count, when positive, becomes the group's
// authoritative expected cardinality. Returns false when the contribution was
// dropped: duplicate index, late arrival under DropLate, or engine closed.
func (e *Engine) Add(groupId string, index int, count int, msg types.Message) bool {
	// a group can flush between the lookup and the group lock; one retry
	// re-runs the late-arrival policy against the fresh table
	for attempt := 0; attempt < 2; attempt++ {
		g, ok := e.lookupOrCreate(groupId, msg)
		if !ok {
			return false
		}
		accepted, stale := e.accumulate(g, index, count, msg)
		if !stale {
			return accepted
		}
	}
	return false
}

// accumulate adds one contribution to a resolved group. stale reports that
// the group terminated after the caller resolved it and the contribution was
// not examined.
func (e *Engine) accumulate(g *Group, index int, count int, msg types.Message) (accepted, stale bool) {
	g.mu.Lock()
	if g.done {
		g.mu.Unlock()
		return false, true
	}
	if _, dup := g.contributions[index]; dup {
		g.mu.Unlock()
		return false, false
	}
	contribution := Contribution{Index: index, Payload: msg.Payload, Msg: msg}
	if key, ok := msg.GetExtension("key"); ok {
		if s, ok := key.(string); ok {
			contribution.Key = s
		}
	}
	g.contributions[index] = contribution
	if count > 0 {
		g.count = count
	}
	// configured kind and separator win; sequence-carried values only fill
	// the gaps
	if seq := msg.Sequence; seq != nil {
		if g.kind == "" && seq.Kind != "" {
			g.kind = seq.Kind
		}
		if g.separator == "" && seq.Separator != "" {
			g.separator = seq.Separator
		}
	}
	complete := (g.count > 0 && len(g.contributions) >= g.count) ||
		(g.count == 0 && e.opts.Threshold > 0 && len(g.contributions) >= e.opts.Threshold)
	if !complete {
		g.mu.Unlock()
		return true, false
	}
	g.done = true
	deadline := g.deadline
	g.mu.Unlock()

	if deadline != nil {
		deadline.Cancel()
	}
	e.removeFlushed(g.Id)
	e.onFlush(g, ReasonComplete)
	return true, false
}

// Len returns the number of live groups.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.groups)
}

// Close discards every live group without flushing and cancels their
// deadlines. Idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	pending := make([]*Group, 0, len(e.groups))
	for _, g := range e.groups {
		pending = append(pending, g)
	}
	e.groups = make(map[string]*Group)
	e.mu.Unlock()

	for _, g := range pending {
		g.mu.Lock()
		g.done = true
		deadline := g.deadline
		g.mu.Unlock()
		if deadline != nil {
			deadline.Cancel()
		}
	}
}

func (e *Engine) lookupOrCreate(groupId string, msg types.Message) (*Group, bool) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, false
	}
	if g, ok := e.groups[groupId]; ok {
		e.mu.Unlock()
		return g, true
	}
	if e.opts.DropLate {
		if when, ok := e.flushed[groupId]; ok {
			if time.Since(when) < flushedRetention {
				e.mu.Unlock()
				return nil, false
			}
			delete(e.flushed, groupId)
		}
	}
	g := &Group{
		Id:            groupId,
		Template:      msg.Copy(),
		contributions: make(map[int]Contribution),
		count:         e.opts.Count,
		kind:          e.opts.Kind,
		separator:     e.opts.Separator,
	}
	e.groups[groupId] = g
	e.mu.Unlock()

	if e.opts.Timeout > 0 && e.timers != nil {
		handle, err := e.timers.ScheduleOnce(e.opts.Timeout, func() {
			e.timeout(g)
		})
		if err == nil {
			g.mu.Lock()
			if g.done {
				// completed before the deadline was armed
				g.mu.Unlock()
				handle.Cancel()
			} else {
				g.deadline = handle
				g.mu.Unlock()
			}
		}
	}
	return g, true
}

// timeout flushes the group best-effort from whatever contributions exist. No
// error is raised purely for timeout; surfacing a warning status is left to
// the owning node.
func (e *Engine) timeout(g *Group) {
	g.mu.Lock()
	if g.done {
		g.mu.Unlock()
		return
	}
	g.done = true
	g.mu.Unlock()

	e.removeFlushed(g.Id)
	e.onFlush(g, ReasonTimeout)
}

// removeFlushed takes a terminal group out of the live table and remembers
// its id for the drop-late policy.
func (e *Engine) removeFlushed(groupId string) {
	e.mu.Lock()
	delete(e.groups, groupId)
	if e.opts.DropLate {
		now := time.Now()
		for id, when := range e.flushed {
			if now.Sub(when) >= flushedRetention {
				delete(e.flushed, id)
			}
		}
		e.flushed[groupId] = now
	}
	e.mu.Unlock()
}

func sortContributions(list []Contribution) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].Index < list[j].Index
	})
}
