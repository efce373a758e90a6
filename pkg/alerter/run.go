package alerter

import (
	"context"
	"log"
	"time"
)

// RunLoopConfig tunes the ticking and error-escalation behavior around
// repeated Update calls.
type RunLoopConfig struct {
	UpdateInterval          time.Duration
	ErrorsInARowBeforeAlert uint32
}

// Run ticks Update on UpdateInterval until ctx is cancelled, logging update
// errors as warnings until ErrorsInARowBeforeAlert consecutive failures have
// happened, at which point it logs at error level and resets the streak —
// matching the source loop's escalate-then-reset behavior so a persistently
// broken integration doesn't spam at error level forever.
func Run(ctx context.Context, a *Alerter, config RunLoopConfig) {
	var errorsInARow uint32
	ticker := time.NewTicker(config.UpdateInterval)
	defer ticker.Stop()

	for {
		if err := a.Update(ctx); err != nil {
			if errorsInARow < config.ErrorsInARowBeforeAlert {
				errorsInARow++
				alertLog.Warnf("update error: %v", err)
			} else {
				errorsInARow = 0
				log.Printf("[alerter] ERROR update error (repeated): %v", err)
			}
		} else {
			errorsInARow = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
