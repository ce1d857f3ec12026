package clock

import "time"

// Clock reads wall time.
type Clock struct{}

// NowUnix returns current unix seconds.
func (Clock) NowUnix() int64 {
	return time.Now().Unix()
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now()
}

// Fixed is a Clock pinned to a single instant. Useful in tests.
type Fixed struct {
	At time.Time
}

// NowUnix returns the pinned unix seconds.
func (f Fixed) NowUnix() int64 {
	return f.At.Unix()
}

// Now returns the pinned time.
func (f Fixed) Now() time.Time {
	return f.At
}
