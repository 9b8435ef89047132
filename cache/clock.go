package cache

import "time"

// Clock supplies the current time to a Store.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }
