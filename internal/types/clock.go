package types

import "time"

// Clock abstracts time for testability. Production code uses RealClock;
// tests substitute a fixed or stepped implementation.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}
