package extraction

import (
	"math"
	"math/rand/v2"
	"time"
)

type RetryState int

const (
	Attempting RetryState = iota
	BackingOff
	Exhausted
	Succeeded
)

func (s RetryState) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case BackingOff:
		return "backing_off"
	case Exhausted:
		return "exhausted"
	case Succeeded:
		return "succeeded"
	}
	return "unknown"
}

// Backoff is base^(attempt-1) seconds plus a uniform jitter.
type Backoff struct {
	Base      float64
	JitterMin time.Duration
	JitterMax time.Duration
}

func (b Backoff) delay(attempt int, jitter func(lo, hi time.Duration) time.Duration) time.Duration {
	exp := math.Pow(b.Base, float64(attempt-1))
	return time.Duration(exp*float64(time.Second)) + jitter(b.JitterMin, b.JitterMax)
}

// Retry tracks one rate-limited call: which attempt is running and how long
// to back off before the next one.
type Retry struct {
	State   RetryState
	Attempt int
	Max     int
	Delay   time.Duration

	backoff Backoff
	jitter  func(lo, hi time.Duration) time.Duration
}

func NewRetry(max int, b Backoff) *Retry {
	if max < 1 {
		max = 1
	}
	return &Retry{State: Attempting, Attempt: 1, Max: max, backoff: b, jitter: uniformJitter}
}

func (r *Retry) Succeed() {
	r.State, r.Delay = Succeeded, 0
}

// Fail records a retryable failure of the running attempt. The last
// attempt moves to Exhausted with no delay; any other to BackingOff.
func (r *Retry) Fail() RetryState {
	if r.Attempt >= r.Max {
		r.State, r.Delay = Exhausted, 0
		return r.State
	}
	r.State = BackingOff
	r.Delay = r.backoff.delay(r.Attempt, r.jitter)
	return r.State
}

// Next starts the following attempt once the back-off has been slept.
func (r *Retry) Next() {
	r.Attempt++
	r.State, r.Delay = Attempting, 0
}

func uniformJitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
}
