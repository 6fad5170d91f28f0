package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

const uploadCleanerTimeout = 2 * time.Minute

// startUploadCleaner schedules removal of photos no listing references.
// It returns nil when no schedule is configured.
func startUploadCleaner(ctx context.Context, app *application) (*cron.Cron, error) {
	schedule := app.cfg.Cleaner.Schedule
	if schedule == "" {
		return nil, nil
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { app.sweepUploads(ctx) }); err != nil {
		return nil, err
	}
	c.Start()
	app.log.WithField("schedule", schedule).Info("upload cleaner started")
	return c, nil
}

func (app *application) sweepUploads(ctx context.Context) int {
	runCtx, cancel := context.WithTimeout(ctx, uploadCleanerTimeout)
	defer cancel()

	cutoff := time.Now().Add(-app.cfg.Cleaner.Grace)
	removed, err := app.listingService.SweepImages(runCtx, app.uploads, cutoff)
	if err != nil {
		app.log.WithError(err).Error("upload cleaner: failed to remove orphaned photos")
	}
	if removed > 0 {
		app.log.WithField("removed", removed).Info("upload cleaner: removed orphaned photos")
	}
	return removed
}
