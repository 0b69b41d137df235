package stream

import "time"

// nowFunc is overridable in tests.
var nowFunc = time.Now

func nowUTC() time.Time {
	return nowFunc().UTC()
}
