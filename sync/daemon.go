// ABOUTME: Long-running sync loop with one goroutine per provider
// ABOUTME: Failures are recorded in sync state by the reconciler; the loop only stops on cancellation
package sync

import (
	"context"
	"errors"
	"time"

	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Daemon struct {
	rec       *Reconciler
	scope     models.Scope
	providers []Provider
	interval  time.Duration
	log       zerolog.Logger
}

func NewDaemon(rec *Reconciler, scope models.Scope, interval time.Duration, log zerolog.Logger, providers ...Provider) *Daemon {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Daemon{
		rec:       rec,
		scope:     scope,
		providers: providers,
		interval:  interval,
		log:       log.With().Str("component", "sync_daemon").Logger(),
	}
}

// Run blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range d.providers {
		g.Go(func() error { return d.loop(ctx, p) })
	}
	return g.Wait()
}

func (d *Daemon) loop(ctx context.Context, p Provider) error {
	log := d.log.With().Str("provider", p.Name()).Logger()
	log.Info().Dur("interval", d.interval).Msg("sync loop started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		d.once(ctx, p, log)
		select {
		case <-ctx.Done():
			log.Info().Msg("sync loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (d *Daemon) once(ctx context.Context, p Provider, log zerolog.Logger) {
	_, err := d.rec.Run(ctx, d.scope, p)
	switch {
	case err == nil, errors.Is(err, db.ErrClaimDeclined):
	case ctx.Err() != nil:
	default:
		log.Debug().Str("code", models.ErrorCode(err)).Msg("sync iteration failed")
	}
}
