package crashtracker

import (
	"context"
	"time"
)

// CrashTrackerClient reports unexpected errors and panics from the watcher
// loop and the intake API. FlushEvents and Recover are deferred at daemon
// entry points so buffered reports survive a shutdown.
type CrashTrackerClient interface {
	LogAndReportErrors(ctx context.Context, err error, msg string)
	FlushEvents(waitTime time.Duration) bool
	Recover()
}
