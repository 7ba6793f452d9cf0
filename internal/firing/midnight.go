package firing

import (
	"context"
	"log"
	"time"
)

// RunMidnightRefresh invokes refresh shortly after each local midnight so
// the orchestrator re-evaluates display state (expired labels, auto-resume
// of paused-until reminders) even on days with no firings. The next
// trigger is recomputed after each run. Blocks until ctx is cancelled.
func RunMidnightRefresh(ctx context.Context, loc *time.Location, refresh func()) {
	if loc == nil {
		loc = time.Local
	}
	for {
		now := time.Now().In(loc)
		next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 5, 0, loc)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			log.Println("Midnight refresh")
			refresh()
		}
	}
}
