package changefeed

import "time"

const (
	time2s  = 2 * time.Second
	timeout = time.Second
	tick    = 5 * time.Millisecond
)
