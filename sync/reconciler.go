// ABOUTME: Per (owner, provider) sync reconciler with atomic run claims, three-way field comparison and backoff
// ABOUTME: Each remote record is applied in its own transaction; the cursor advances after each applied page
package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/rs/zerolog"
)

// Record actions, used for stats and the records_total metric.
const (
	actionCreated   = "created"
	actionUpdated   = "updated"
	actionUnchanged = "unchanged"
	actionConflict  = "conflict"
	actionSkipped   = "skipped"
)

// maxPagesPerRun bounds a single run against a provider that never stops paging.
const maxPagesPerRun = 10000

// Options tune a Reconciler. FailureThreshold is the number of consecutive
// failures tolerated; the one after it pauses the pair.
type Options struct {
	ProviderTimeout  time.Duration
	FailureThreshold int
	BackoffInitial   time.Duration
	BackoffMax       time.Duration
	// StaleAfter lets a run reclaim a pair left in syncing by a crashed process. Zero disables reclaiming.
	StaleAfter time.Duration
}

func DefaultOptions() Options {
	return Options{
		ProviderTimeout:  30 * time.Second,
		FailureThreshold: 5,
		BackoffInitial:   time.Minute,
		BackoffMax:       6 * time.Hour,
		StaleAfter:       time.Hour,
	}
}

type Reconciler struct {
	store *db.Store
	opts  Options
	log   zerolog.Logger
}

func NewReconciler(store *db.Store, opts Options, log zerolog.Logger) *Reconciler {
	def := DefaultOptions()
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = def.ProviderTimeout
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = def.FailureThreshold
	}
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = def.BackoffInitial
	}
	if opts.BackoffMax < opts.BackoffInitial {
		opts.BackoffMax = max(def.BackoffMax, opts.BackoffInitial)
	}
	return &Reconciler{store: store, opts: opts, log: log.With().Str("component", "reconciler").Logger()}
}

type recordOutcome struct {
	action    string
	conflicts int
}

// Run claims the pair and reconciles every remote change after the stored cursor.
// A declined claim returns an error matching db.ErrClaimDeclined and changes nothing.
func (r *Reconciler) Run(ctx context.Context, scope models.Scope, p Provider) (models.RunStats, error) {
	name := p.Name()
	log := r.log.With().Str("owner_id", scope.OwnerID.String()).Str("provider", name).Logger()

	st, err := r.store.ClaimRun(ctx, scope, name, r.opts.StaleAfter)
	if err != nil {
		if errors.Is(err, db.ErrClaimDeclined) {
			runsTotal.WithLabelValues(name, "declined").Inc()
			log.Debug().Msg("sync claim declined")
		}
		return models.RunStats{}, err
	}
	started := time.Now()
	defer func() { runDuration.WithLabelValues(name).Observe(time.Since(started).Seconds()) }()
	log.Info().Bool("full_sync", st.Cursor == "").Int("failure_count", st.FailureCount).Msg("sync run claimed")

	var stats models.RunStats
	cursor := st.Cursor
	for page := 0; ; page++ {
		if page >= maxPagesPerRun {
			return r.fail(ctx, scope, st, name, stats, &models.FatalConfigError{Provider: name, Reason: "unbounded_paging"})
		}
		res, err := callWithTimeout(ctx, r.opts.ProviderTimeout, func(c context.Context) (PullResult, error) {
			return p.Pull(c, cursor)
		})
		if err != nil {
			return r.fail(ctx, scope, st, name, stats, r.classify(ctx, name, err))
		}

		for _, rec := range res.Records {
			stats.Fetched++
			out, err := r.applyRecord(ctx, scope, name, rec)
			if err != nil {
				var ve *models.ValidationError
				if !errors.As(err, &ve) {
					return r.fail(ctx, scope, st, name, stats, err)
				}
				out = recordOutcome{action: actionSkipped}
				log.Warn().Str("code", models.ErrorCode(err)).Msg("remote record rejected")
			}
			countOutcome(&stats, out)
			recordsTotal.WithLabelValues(name, out.action).Inc()
			if out.conflicts > 0 {
				conflictsTotal.WithLabelValues(name).Add(float64(out.conflicts))
			}
		}

		cursor = res.NextCursor
		if err := r.store.SaveCursor(ctx, scope, name, cursor); err != nil {
			return r.fail(ctx, scope, st, name, stats, err)
		}
		if !res.HasMore {
			break
		}
	}

	if err := r.pushPending(ctx, scope, p, &stats); err != nil {
		return r.fail(ctx, scope, st, name, stats, err)
	}

	if err := r.store.CompleteRun(context.WithoutCancel(ctx), scope, name, stats); err != nil {
		return stats, err
	}
	runsTotal.WithLabelValues(name, "completed").Inc()
	log.Info().Int("fetched", stats.Fetched).Int("created", stats.Created).Int("updated", stats.Updated).
		Int("conflicts", stats.Conflicts).Int("skipped", stats.Skipped).Int("pushed", stats.Pushed).
		Msg("sync run completed")
	return stats, nil
}

func countOutcome(stats *models.RunStats, out recordOutcome) {
	switch out.action {
	case actionCreated:
		stats.Created++
	case actionUpdated:
		stats.Updated++
	case actionUnchanged:
		stats.Unchanged++
	case actionSkipped:
		stats.Skipped++
	}
	stats.Conflicts += out.conflicts
}

// fail records the failure, schedules the backoff and pauses the pair when
// the failure is fatal or the threshold is reached.
func (r *Reconciler) fail(ctx context.Context, scope models.Scope, st *models.SyncState, provider string, stats models.RunStats, cause error) (models.RunStats, error) {
	failures := st.FailureCount + 1
	code := models.ErrorCode(cause)
	cancelled := ctx.Err() != nil && !errors.Is(cause, models.ErrTransientProvider)
	if cancelled {
		code = "cancelled"
	}
	fatal := errors.Is(cause, models.ErrFatalConfig)
	pause := fatal || (!cancelled && failures > r.opts.FailureThreshold)
	next := r.store.Now().Add(r.backoffFor(failures))

	saved, err := r.store.FailRun(context.WithoutCancel(ctx), scope, provider, stats, code, next, pause)
	if err != nil {
		r.log.Error().Err(err).Str("owner_id", scope.OwnerID.String()).Str("provider", provider).Msg("failed to record sync failure")
		return stats, errors.Join(cause, err)
	}

	outcome := "failed"
	if saved.Status == models.SyncStatusPaused {
		outcome = "paused"
	}
	runsTotal.WithLabelValues(provider, outcome).Inc()
	r.log.Warn().Str("owner_id", scope.OwnerID.String()).Str("provider", provider).Str("code", code).
		Int("failure_count", saved.FailureCount).Str("status", saved.Status).Int("fetched", stats.Fetched).
		Msg("sync run failed")
	return stats, cause
}

// backoffFor returns the delay after the given number of consecutive failures.
func (r *Reconciler) backoffFor(failures int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.BackoffInitial
	b.MaxInterval = r.opts.BackoffMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.InitialInterval
	for i := 0; i < failures; i++ {
		d = b.NextBackOff()
	}
	return d
}

// classify maps provider errors onto the taxonomy. Unknown failures are retryable.
func (r *Reconciler) classify(ctx context.Context, provider string, err error) error {
	switch {
	case errors.Is(err, models.ErrFatalConfig), errors.Is(err, models.ErrTransientProvider):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return &models.TransientProviderError{Provider: provider, Err: fmt.Errorf("timed out after %s: %w", r.opts.ProviderTimeout, err)}
	}
	return &models.TransientProviderError{Provider: provider, Err: err}
}

// callWithTimeout bounds fn even when it ignores its context.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(cctx)
		done <- result{v, err}
	}()

	select {
	case res := <-done:
		return res.val, res.err
	case <-cctx.Done():
		var zero T
		return zero, cctx.Err()
	}
}

func (r *Reconciler) applyRecord(ctx context.Context, scope models.Scope, provider string, rec RemoteRecord) (recordOutcome, error) {
	if rec.ExternalID == "" {
		return recordOutcome{action: actionSkipped}, nil
	}
	var out recordOutcome
	err := r.store.InTx(ctx, func(tx *db.Tx) error {
		out = recordOutcome{}
		m, err := matchRecord(ctx, tx, scope, provider, rec)
		if err != nil {
			return err
		}
		switch {
		case m.ambiguous:
			out.action = actionSkipped
			return nil
		case rec.Deleted:
			return r.markDeleted(ctx, tx, scope, m, &out)
		case m.person == nil:
			return r.createFromRecord(ctx, tx, scope, provider, rec, &out)
		}
		return r.mergeRecord(ctx, tx, scope, provider, rec, m, &out)
	})
	return out, err
}

// markDeleted flags the identity; persons are never removed by sync.
func (r *Reconciler) markDeleted(ctx context.Context, tx *db.Tx, scope models.Scope, m match, out *recordOutcome) error {
	if m.identity == nil {
		out.action = actionSkipped
		return nil
	}
	if m.identity.Metadata == nil {
		m.identity.Metadata = map[string]string{}
	}
	m.identity.Metadata["remote_deleted"] = "true"
	out.action = actionUnchanged
	return tx.UpdateIdentity(ctx, scope, m.identity, []string{"metadata"})
}

func (r *Reconciler) createFromRecord(ctx context.Context, tx *db.Tx, scope models.Scope, provider string, rec RemoteRecord, out *recordOutcome) error {
	p := personFromRecord(rec)
	if p.Name == "" {
		out.action = actionSkipped
		return nil
	}
	if err := tx.CreatePerson(ctx, scope, p); err != nil {
		return err
	}
	now := r.store.Now()
	ident := &models.ExternalIdentity{
		PersonID:       p.ID,
		Provider:       provider,
		ExternalID:     rec.ExternalID,
		Metadata:       rec.Metadata,
		RemoteSnapshot: remoteSnapshot(rec),
		LastSyncedAt:   &now,
		SyncStatus:     models.IdentitySynced,
	}
	if err := tx.CreateIdentity(ctx, scope, ident); err != nil {
		return err
	}
	out.action = actionCreated
	return nil
}

// mergeRecord compares each synced field against the last-synced remote value.
// Remote changes apply only where the local value is untouched; a local edit
// facing a different remote value becomes a pending conflict and the local
// value is kept.
func (r *Reconciler) mergeRecord(ctx context.Context, tx *db.Tx, scope models.Scope, provider string, rec RemoteRecord, m match, out *recordOutcome) error {
	p := m.person
	base := map[string]string{}
	if m.identity != nil && m.identity.RemoteSnapshot != nil {
		base = m.identity.RemoteSnapshot
	}
	snapshot := make(map[string]string, len(base))
	for k, v := range base {
		snapshot[k] = v
	}

	var changed []string
	pushNeeded := false
	for _, f := range SyncedFields {
		remote, ok := rec.Fields[f]
		if !ok || !acceptRemote(f, remote) {
			continue
		}
		local := GetField(p, f)
		prev, hasBase := base[f]

		switch {
		case equalField(f, local, remote):
			snapshot[f] = remote
		case hasBase && equalField(f, local, prev), !hasBase && strings.TrimSpace(local) == "":
			SetField(p, f, strings.TrimSpace(remote))
			snapshot[f] = remote
			changed = append(changed, f)
		case hasBase && equalField(f, remote, prev):
			// local edit, remote unchanged: send it on the next push
			pushNeeded = true
		default:
			c := &models.SyncConflict{
				Provider:    provider,
				PersonID:    p.ID,
				ExternalID:  rec.ExternalID,
				Field:       f,
				LocalValue:  local,
				RemoteValue: remote,
				BaseValue:   prev,
			}
			created, err := tx.UpsertConflict(ctx, scope, c)
			if err != nil {
				return err
			}
			if created {
				out.conflicts++
			}
		}
	}

	if len(changed) > 0 && p.Title != "" && strings.TrimSpace(p.Company) == "" {
		// a title cannot outlive its company; a remote title waits for one
		if slices.Contains(changed, FieldTitle) {
			delete(snapshot, FieldTitle)
			changed = slices.DeleteFunc(changed, func(f string) bool { return f == FieldTitle })
		}
		p.Title = ""
		changed = append(changed, FieldTitle)
	}
	if len(changed) > 0 {
		upgradePlaceholder(p, changed)
		if err := tx.UpdatePerson(ctx, scope, p); err != nil {
			return err
		}
	}

	pending, err := tx.PendingConflictsFor(ctx, scope, provider, p.ID)
	if err != nil {
		return err
	}
	status := models.IdentitySynced
	switch {
	case len(pending) > 0:
		status = models.IdentityConflict
	case pushNeeded, m.identity != nil && m.identity.SyncStatus == models.IdentityPendingPush:
		status = models.IdentityPendingPush
	}

	now := r.store.Now()
	linked := m.identity == nil
	if linked {
		ident := &models.ExternalIdentity{
			PersonID:       p.ID,
			Provider:       provider,
			ExternalID:     rec.ExternalID,
			Metadata:       rec.Metadata,
			RemoteSnapshot: snapshot,
			LastSyncedAt:   &now,
			SyncStatus:     status,
		}
		if err := tx.CreateIdentity(ctx, scope, ident); err != nil {
			return err
		}
	} else {
		ident := m.identity
		if ident.Metadata == nil {
			ident.Metadata = map[string]string{}
		}
		for k, v := range rec.Metadata {
			ident.Metadata[k] = v
		}
		delete(ident.Metadata, "remote_deleted")
		ident.RemoteSnapshot = snapshot
		ident.LastSyncedAt = &now
		ident.SyncStatus = status
		if err := tx.UpdateIdentity(ctx, scope, ident, []string{"metadata", "remote_snapshot", "last_synced_at", "sync_status"}); err != nil {
			return err
		}
	}

	switch {
	case out.conflicts > 0:
		out.action = actionConflict
	case len(changed) > 0, linked:
		out.action = actionUpdated
	default:
		out.action = actionUnchanged
	}
	r.log.Debug().Str("owner_id", scope.OwnerID.String()).Str("person_id", p.ID.String()).
		Int("changed", len(changed)).Int("conflicts", out.conflicts).Str("status", status).Msg("merged remote record")
	return nil
}

// upgradePlaceholder clears placeholder flags once the provider supplies real contact data.
func upgradePlaceholder(p *models.Person, changed []string) {
	for _, f := range changed {
		if !isContactField(f) || GetField(p, f) == "" {
			continue
		}
		switch f {
		case FieldPersonalEmail, FieldWorkEmail:
			p.PlaceholderFlags.Email = false
		default:
			p.PlaceholderFlags.Phone = false
		}
		p.IsPlaceholder = false
	}
}

// pushPending sends locally-kept values to the provider.
func (r *Reconciler) pushPending(ctx context.Context, scope models.Scope, p Provider, stats *models.RunStats) error {
	name := p.Name()
	idents, err := r.store.PendingPushIdentities(ctx, scope, name)
	if err != nil {
		return err
	}
	for i := range idents {
		ident := &idents[i]
		person, err := r.store.GetPerson(ctx, scope, ident.PersonID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return err
		}

		rec := RemoteRecord{ExternalID: ident.ExternalID, Fields: recordFields(person), Metadata: ident.Metadata}
		res, err := callWithTimeout(ctx, r.opts.ProviderTimeout, func(c context.Context) (PushResult, error) {
			return p.Push(c, rec)
		})
		if err != nil {
			return r.classify(ctx, name, err)
		}

		now := r.store.Now()
		ident.RemoteSnapshot = rec.Fields
		ident.SyncStatus = models.IdentitySynced
		ident.LastSyncedAt = &now
		if res.RemoteID != "" && res.RemoteID != ident.ExternalID {
			if ident.Metadata == nil {
				ident.Metadata = map[string]string{}
			}
			ident.Metadata["remote_id"] = res.RemoteID
		}
		if err := r.store.UpdateIdentity(ctx, scope, ident, []string{"remote_snapshot", "sync_status", "last_synced_at"}); err != nil {
			return err
		}
		stats.Pushed++
	}
	return nil
}
