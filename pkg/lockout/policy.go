// Package lockout decides when repeated login failures suspend an account.
//
// Everything here is a pure function of the failure counter, the lock deadline and
// the current time. Stores apply the same rule inside a single atomic update so that
// concurrent failures against one account cannot under-count.
package lockout

import (
	"math"
	"time"
)

// Defaults used when a Policy is left zero-valued.
const (
	DefaultThreshold = 5
	DefaultDuration  = 15 * time.Minute
)

// State is the lock state of an account: either unlocked or locked until a deadline.
// The zero value is Unlocked.
type State struct {
	until time.Time
}

// Unlocked returns the unlocked state.
func Unlocked() State {
	return State{}
}

// LockedUntil returns a state that blocks login until t.
func LockedUntil(t time.Time) State {
	return State{until: t}
}

// FromNullable builds a State from a nullable lock deadline column.
func FromNullable(t *time.Time) State {
	if t == nil {
		return Unlocked()
	}
	return LockedUntil(*t)
}

// Until returns the lock deadline and whether one is set.
func (s State) Until() (time.Time, bool) {
	return s.until, !s.until.IsZero()
}

// Nullable returns the deadline as a pointer, nil when unlocked.
func (s State) Nullable() *time.Time {
	if s.until.IsZero() {
		return nil
	}
	t := s.until
	return &t
}

// IsLocked reports whether login is blocked at now.
func (s State) IsLocked(now time.Time) bool {
	return !s.until.IsZero() && s.until.After(now)
}

// RemainingMinutes returns the remaining lock time rounded up to whole minutes.
// It is 0 when the state is not locked at now.
func (s State) RemainingMinutes(now time.Time) int {
	if !s.IsLocked(now) {
		return 0
	}
	return int(math.Ceil(s.until.Sub(now).Minutes()))
}

// Policy holds the failure threshold and the lock duration.
type Policy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultPolicy returns 5 failures / 15 minutes.
func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold, Duration: DefaultDuration}
}

// Normalize fills zero fields with defaults.
func (p Policy) Normalize() Policy {
	if p.Threshold <= 0 {
		p.Threshold = DefaultThreshold
	}
	if p.Duration <= 0 {
		p.Duration = DefaultDuration
	}
	return p
}

// Outcome is the result of recording one failed attempt.
type Outcome struct {
	Attempts int
	Lock     State
	Locked   bool // this failure tripped the lock
}

// RegisterFailure computes the counter and lock state after one more failure.
// Reaching the threshold locks the account and resets the counter to zero.
func (p Policy) RegisterFailure(attempts int, current State, now time.Time) Outcome {
	p = p.Normalize()
	next := attempts + 1
	if next >= p.Threshold {
		return Outcome{Attempts: 0, Lock: LockedUntil(now.Add(p.Duration)), Locked: true}
	}
	return Outcome{Attempts: next, Lock: current}
}

// LockDeadline returns the deadline a lock tripped at now would carry.
func (p Policy) LockDeadline(now time.Time) time.Time {
	return now.Add(p.Normalize().Duration)
}
