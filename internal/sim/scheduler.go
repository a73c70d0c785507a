package sim

import (
	"sort"
	"time"
)

// EventKind names the classes of scheduled simulation events.
type EventKind string

const (
	EventCooldown       EventKind = "cooldown"
	EventGlobalCooldown EventKind = "globalCooldown"
	EventCastResolve    EventKind = "castResolve"
	EventAnimation      EventKind = "animation"
	EventDespawn        EventKind = "despawn"
	EventRespawn        EventKind = "respawn"
	EventRevive         EventKind = "revive"
)

// eventKey identifies one scheduled event. Digit disambiguates per-slot
// cooldowns; other kinds use digit 0.
type eventKey struct {
	entityID string
	kind     EventKind
	digit    int
}

type event struct {
	key    eventKey
	fireAt time.Time
	seq    uint64 // schedule order, for stable firing of simultaneous events
	fn     func()
}

// Scheduler is the room's timed-event facility. Cooldowns, cast wind-ups,
// despawn countdowns, and respawns all run through it. It advances on the
// room clock rather than wall time, so tests can step it deterministically.
type Scheduler struct {
	now    time.Time
	nextSeq uint64
	events map[eventKey]*event
}

// NewScheduler creates a scheduler positioned at start.
func NewScheduler(start time.Time) *Scheduler {
	return &Scheduler{
		now:    start,
		events: make(map[eventKey]*event),
	}
}

// Now returns the scheduler's current simulation time.
func (s *Scheduler) Now() time.Time {
	return s.now
}

// Schedule registers fn to fire after delay. A pending event with the same
// (entity, kind, digit) key is replaced.
func (s *Scheduler) Schedule(entityID string, kind EventKind, digit int, delay time.Duration, fn func()) {
	key := eventKey{entityID: entityID, kind: kind, digit: digit}
	s.nextSeq++
	s.events[key] = &event{
		key:    key,
		fireAt: s.now.Add(delay),
		seq:    s.nextSeq,
		fn:     fn,
	}
}

// Cancel drops a pending event. Returns whether one was pending.
func (s *Scheduler) Cancel(entityID string, kind EventKind, digit int) bool {
	key := eventKey{entityID: entityID, kind: kind, digit: digit}
	if _, ok := s.events[key]; !ok {
		return false
	}
	delete(s.events, key)
	return true
}

// CancelEntity drops every pending event for an entity. Used when a record
// leaves the replicated tree.
func (s *Scheduler) CancelEntity(entityID string) {
	for key := range s.events {
		if key.entityID == entityID {
			delete(s.events, key)
		}
	}
}

// Pending reports whether an event with the given key is scheduled.
func (s *Scheduler) Pending(entityID string, kind EventKind, digit int) bool {
	_, ok := s.events[eventKey{entityID: entityID, kind: kind, digit: digit}]
	return ok
}

// Advance moves simulation time forward to now and fires every due event in
// chronological order. Callbacks may schedule or cancel further events.
func (s *Scheduler) Advance(now time.Time) {
	if now.Before(s.now) {
		return
	}
	s.now = now

	for {
		due := make([]*event, 0)
		for _, ev := range s.events {
			if !ev.fireAt.After(now) {
				due = append(due, ev)
			}
		}
		if len(due) == 0 {
			return
		}

		sort.Slice(due, func(i, j int) bool {
			if due[i].fireAt.Equal(due[j].fireAt) {
				return due[i].seq < due[j].seq
			}
			return due[i].fireAt.Before(due[j].fireAt)
		})

		for _, ev := range due {
			// A previous callback may have cancelled or replaced it.
			current, ok := s.events[ev.key]
			if !ok || current != ev {
				continue
			}
			delete(s.events, ev.key)
			ev.fn()
		}
	}
}
