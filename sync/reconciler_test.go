// ABOUTME: Tests for the sync reconciler against a fake provider
// ABOUTME: Covers conflicts, idempotent reruns, claims, backoff, pausing, timeouts and pushes
package sync

import (
	"context"
	"errors"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu      stdsync.Mutex
	pull    func(ctx context.Context, cursor string) (PullResult, error)
	cursors []string
	pushed  []RemoteRecord
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Pull(ctx context.Context, cursor string) (PullResult, error) {
	f.mu.Lock()
	f.cursors = append(f.cursors, cursor)
	f.mu.Unlock()
	return f.pull(ctx, cursor)
}

func (f *fakeProvider) Push(_ context.Context, rec RemoteRecord) (PushResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, rec)
	return PushResult{RemoteID: rec.ExternalID}, nil
}

// records returns a provider serving one page with the given records.
func records(recs ...RemoteRecord) *fakeProvider {
	return &fakeProvider{pull: func(context.Context, string) (PullResult, error) {
		return PullResult{Records: recs, NextCursor: "done"}, nil
	}}
}

type harness struct {
	store *db.Store
	scope models.Scope
	rec   *Reconciler
	now   time.Time
}

func setupReconciler(t *testing.T, opts Options) *harness {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "kith.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{store: store, scope: models.NewScope(uuid.New(), "test"), now: testNow}
	store.SetClock(func() time.Time { return h.now })
	h.rec = NewReconciler(store, opts, zerolog.Nop())
	return h
}

func (h *harness) person(t *testing.T, p models.Person) *models.Person {
	t.Helper()
	require.NoError(t, h.store.CreatePerson(context.Background(), h.scope, &p))
	return &p
}

func (h *harness) state(t *testing.T) *models.SyncState {
	t.Helper()
	st, err := h.store.GetSyncState(context.Background(), h.scope, "fake")
	require.NoError(t, err)
	return st
}

func jamieRecord(city string) RemoteRecord {
	return RemoteRecord{
		ExternalID: "people/jamie",
		Fields: map[string]string{
			FieldName:          "Jamie",
			FieldPersonalEmail: "Jamie@Example.com",
			FieldCity:          city,
		},
	}
}

func TestRunLocalEditCreatesConflict(t *testing.T) {
	h := setupReconciler(t, DefaultOptions())
	ctx := context.Background()
	jamie := h.person(t, models.Person{Name: "Jamie", PersonalEmail: "jamie@example.com", City: "Chicago"})

	stats, err := h.rec.Run(ctx, h.scope, records(jamieRecord("Denver")))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Fetched)
	assert.Equal(t, 1, stats.Conflicts)
	assert.Equal(t, 0, stats.Created)

	got, err := h.store.GetPerson(ctx, h.scope, jamie.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chicago", got.City)

	conflicts, err := h.store.ListConflicts(ctx, h.scope, "", 0)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, FieldCity, conflicts[0].Field)
	assert.Equal(t, "Chicago", conflicts[0].LocalValue)
	assert.Equal(t, "Denver", conflicts[0].RemoteValue)
	assert.Equal(t, jamie.ID, conflicts[0].PersonID)

	idents, err := h.store.ListIdentities(ctx, h.scope, jamie.ID)
	require.NoError(t, err)
	require.Len(t, idents, 1)
	assert.Equal(t, models.IdentityConflict, idents[0].SyncStatus)
	assert.Equal(t, models.SyncStatusIdle, h.state(t).Status)
}

func TestRunIsIdempotent(t *testing.T) {
	h := setupReconciler(t, DefaultOptions())
	ctx := context.Background()
	h.person(t, models.Person{Name: "Jamie", PersonalEmail: "jamie@example.com", City: "Chicago"})
	p := records(jamieRecord("Denver"), RemoteRecord{ExternalID: "people/pat", Fields: map[string]string{FieldName: "Pat"}})

	first, err := h.rec.Run(ctx, h.scope, p)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)
	assert.Equal(t, 1, first.Conflicts)

	second, err := h.rec.Run(ctx, h.scope, p)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Conflicts)
	assert.Equal(t, 2, second.Unchanged)

	persons, err := h.store.ListPersons(ctx, h.scope, db.ListPersonsOptions{})
	require.NoError(t, err)
	assert.Len(t, persons, 2)

	conflicts, err := h.store.ListConflicts(ctx, h.scope, "", 0)
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)
}

func TestRunCreatesPlaceholderFromSparseRecord(t *testing.T) {
	h := setupReconciler(t, DefaultOptions())
	ctx := context.Background()

	stats, err := h.rec.Run(ctx, h.scope, records(
		RemoteRecord{ExternalID: "people/pat", Fields: map[string]string{FieldName: "Pat", FieldCompany: "Acme"}},
		RemoteRecord{ExternalID: "people/blank", Fields: map[string]string{FieldCity: "Nowhere"}},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.Skipped)

	persons, err := h.store.ListPersons(ctx, h.scope, db.ListPersonsOptions{})
	require.NoError(t, err)
	require.Len(t, persons, 1)
	assert.Equal(t, "Pat", persons[0].Name)
	assert.True(t, persons[0].IsPlaceholder)
	assert.False(t, persons[0].HasRealContact())
}

func TestRunKeepsRecordsThatFailLocalValidation(t *testing.T) {
	h := setupReconciler(t, DefaultOptions())
	ctx := context.Background()

	stats, err := h.rec.Run(ctx, h.scope, records(
		RemoteRecord{ExternalID: "people/riley", Fields: map[string]string{
			FieldName: "Riley", FieldPersonalEmail: "riley@example.com", FieldTitle: "Engineer", FieldNotes: "met at a conference",
		}},
		RemoteRecord{ExternalID: "people/quinn", Fields: map[string]string{
			FieldName: "Quinn", FieldWorkEmail: "quinn at example", FieldCity: "Austin",
		}},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Created)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, "done", h.state(t).Cursor)

	riley, err := h.store.FindByContact(ctx, h.scope, db.ContactEmail, "riley@example.com")
	require.NoError(t, err)
	require.Len(t, riley, 1)
	assert.Empty(t, riley[0].Title)
	assert.Equal(t, "met at a conference\nTitle: Engineer", riley[0].Notes)
	assert.False(t, riley[0].IsPlaceholder)

	persons, err := h.store.ListPersons(ctx, h.scope, db.ListPersonsOptions{})
	require.NoError(t, err)
	require.Len(t, persons, 2)
	var quinn *models.Person
	for i := range persons {
		if persons[i].Name == "Quinn" {
			quinn = &persons[i]
		}
	}
	require.NotNil(t, quinn)
	assert.Empty(t, quinn.WorkEmail)
	assert.Equal(t, "Austin", quinn.City)
	assert.True(t, quinn.IsPlaceholder)
}

func TestRunMergeIgnoresOrphanTitleAndBadEmail(t *testing.T) {
	h := setupReconciler(t, DefaultOptions())
	ctx := context.Background()
	jamie := h.person(t, models.Person{Name: "Jamie", PersonalEmail: "jamie@example.com"})

	rec := jamieRecord("Denver")
	rec.Fields[FieldTitle] = "Director"
	rec.Fields[FieldWorkEmail] = "not-an-email"
	stats, err := h.rec.Run(ctx, h.scope, records(rec))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Skipped)

	got, err := h.store.GetPerson(ctx, h.scope, jamie.ID)
	require.NoError(t, err)
	assert.Equal(t, "Denver", got.City)
	assert.Empty(t, got.Title)
	assert.Empty(t, got.WorkEmail)
}

func TestRunAppliesRemoteChangeToUntouchedField(t *testing.T) {
	h := setupReconciler(t, DefaultOptions())
	ctx := context.Background()
	jamie := h.person(t, models.Person{Name: "Jamie", PersonalEmail: "jamie@example.com"})

	_, err := h.rec.Run(ctx, h.scope, records(jamieRecord("Denver")))
	require.NoError(t, err)
	got, err := h.store.GetPerson(ctx, h.scope, jamie.ID)
	require.NoError(t, err)
	assert.Equal(t, "Denver", got.City)

	stats, err := h.rec.Run(ctx, h.scope, records(jamieRecord("Boulder")))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 0, stats.Conflicts)
	got, err = h.store.GetPerson(ctx, h.scope, jamie.ID)
	require.NoError(t, err)
	assert.Equal(t, "Boulder", got.City)
}

func TestRunPushesLocalEditWhenRemoteUnchanged(t *testing.T) {
	h := setupReconciler(t, DefaultOptions())
	ctx := context.Background()
	jamie := h.person(t, models.Person{Name: "Jamie", PersonalEmail: "jamie@example.com"})
	p := records(jamieRecord("Denver"))

	_, err := h.rec.Run(ctx, h.scope, p)
	require.NoError(t, err)

	got, err := h.store.GetPerson(ctx, h.scope, jamie.ID)
	require.NoError(t, err)
	got.City = "Austin"
	require.NoError(t, h.store.UpdatePerson(ctx, h.scope, got))

	stats, err := h.rec.Run(ctx, h.scope, p)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Conflicts)
	assert.Equal(t, 1, stats.Pushed)
	require.Len(t, p.pushed, 1)
	assert.Equal(t, "Austin", p.pushed[0].Fields[FieldCity])

	idents, err := h.store.ListIdentities(ctx, h.scope, jamie.ID)
	require.NoError(t, err)
	require.Len(t, idents, 1)
	assert.Equal(t, models.IdentitySynced, idents[0].SyncStatus)
	assert.Equal(t, "Austin", idents[0].RemoteSnapshot[FieldCity])
}

func TestRunSkipsAmbiguousContactMatch(t *testing.T) {
	h := setupReconciler(t, DefaultOptions())
	ctx := context.Background()
	h.person(t, models.Person{Name: "Sam One", PersonalEmail: "sam1@example.com"})
	h.person(t, models.Person{Name: "Sam Two", PersonalEmail: "sam2@example.com"})

	stats, err := h.rec.Run(ctx, h.scope, records(RemoteRecord{
		ExternalID: "people/sam",
		Fields:     map[string]string{FieldName: "Sam", FieldPersonalEmail: "sam1@example.com", FieldWorkEmail: "sam2@example.com"},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)

	persons, err := h.store.ListPersons(ctx, h.scope, db.ListPersonsOptions{})
	require.NoError(t, err)
	assert.Len(t, persons, 2)
}

func TestRunMarksRemoteDeletion(t *testing.T) {
	h := setupReconciler(t, DefaultOptions())
	ctx := context.Background()
	jamie := h.person(t, models.Person{Name: "Jamie", PersonalEmail: "jamie@example.com"})

	_, err := h.rec.Run(ctx, h.scope, records(jamieRecord("Denver")))
	require.NoError(t, err)
	_, err = h.rec.Run(ctx, h.scope, records(RemoteRecord{ExternalID: "people/jamie", Deleted: true}))
	require.NoError(t, err)

	got, err := h.store.GetPerson(ctx, h.scope, jamie.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
	idents, err := h.store.ListIdentities(ctx, h.scope, jamie.ID)
	require.NoError(t, err)
	require.Len(t, idents, 1)
	assert.Equal(t, "true", idents[0].Metadata["remote_deleted"])
}

func TestRunDeclinedWhileClaimed(t *testing.T) {
	h := setupReconciler(t, DefaultOptions())
	ctx := context.Background()

	_, err := h.store.ClaimRun(ctx, h.scope, "fake", time.Hour)
	require.NoError(t, err)

	p := records(jamieRecord("Denver"))
	_, err = h.rec.Run(ctx, h.scope, p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, db.ErrClaimDeclined))
	assert.Empty(t, p.cursors)
	assert.Equal(t, models.SyncStatusSyncing, h.state(t).Status)
}

func TestRunBacksOffThenPauses(t *testing.T) {
	h := setupReconciler(t, Options{FailureThreshold: 3, BackoffInitial: time.Minute, BackoffMax: time.Hour})
	ctx := context.Background()
	p := &fakeProvider{pull: func(context.Context, string) (PullResult, error) {
		return PullResult{}, errors.New("connection reset")
	}}

	_, err := h.rec.Run(ctx, h.scope, p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrTransientProvider))
	st := h.state(t)
	assert.Equal(t, models.SyncStatusFailed, st.Status)
	assert.Equal(t, 1, st.FailureCount)
	assert.Equal(t, "transient", st.LastErrorCode)
	require.NotNil(t, st.NextEligibleAt)
	assert.Equal(t, testNow.Add(time.Minute), *st.NextEligibleAt)

	// still backing off
	_, err = h.rec.Run(ctx, h.scope, p)
	assert.True(t, errors.Is(err, db.ErrClaimDeclined))
	assert.Len(t, p.cursors, 1)

	h.now = h.now.Add(time.Minute)
	_, err = h.rec.Run(ctx, h.scope, p)
	require.Error(t, err)
	st = h.state(t)
	assert.Equal(t, 2, st.FailureCount)
	assert.Equal(t, h.now.Add(2*time.Minute), *st.NextEligibleAt)

	// reaching the threshold still backs off
	h.now = h.now.Add(2 * time.Minute)
	_, err = h.rec.Run(ctx, h.scope, p)
	require.Error(t, err)
	st = h.state(t)
	assert.Equal(t, models.SyncStatusFailed, st.Status)
	assert.Equal(t, 3, st.FailureCount)
	assert.Equal(t, h.now.Add(4*time.Minute), *st.NextEligibleAt)

	// exceeding it pauses
	h.now = h.now.Add(4 * time.Minute)
	_, err = h.rec.Run(ctx, h.scope, p)
	require.Error(t, err)
	st = h.state(t)
	assert.Equal(t, models.SyncStatusPaused, st.Status)
	assert.Equal(t, 4, st.FailureCount)
	assert.Len(t, p.cursors, 4)

	h.now = h.now.Add(24 * time.Hour)
	_, err = h.rec.Run(ctx, h.scope, p)
	assert.True(t, errors.Is(err, db.ErrClaimDeclined))

	require.NoError(t, h.store.Resume(ctx, h.scope, "fake"))
	p.pull = func(context.Context, string) (PullResult, error) { return PullResult{NextCursor: "c"}, nil }
	_, err = h.rec.Run(ctx, h.scope, p)
	require.NoError(t, err)
	st = h.state(t)
	assert.Equal(t, models.SyncStatusIdle, st.Status)
	assert.Equal(t, 0, st.FailureCount)
}

func TestRunFatalErrorPausesImmediately(t *testing.T) {
	h := setupReconciler(t, DefaultOptions())
	p := &fakeProvider{pull: func(context.Context, string) (PullResult, error) {
		return PullResult{}, &models.FatalConfigError{Provider: "fake", Reason: "corrupt_cursor"}
	}}

	_, err := h.rec.Run(context.Background(), h.scope, p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFatalConfig))
	st := h.state(t)
	assert.Equal(t, models.SyncStatusPaused, st.Status)
	assert.Equal(t, "fatal:corrupt_cursor", st.LastErrorCode)
}

func TestRunProviderTimeout(t *testing.T) {
	h := setupReconciler(t, Options{ProviderTimeout: 50 * time.Millisecond})
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	p := &fakeProvider{pull: func(context.Context, string) (PullResult, error) {
		<-block // ignores its context
		return PullResult{}, nil
	}}

	start := time.Now()
	_, err := h.rec.Run(context.Background(), h.scope, p)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, errors.Is(err, models.ErrTransientProvider))
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, models.SyncStatusFailed, h.state(t).Status)
}

func TestRunCancelledDoesNotPause(t *testing.T) {
	h := setupReconciler(t, Options{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	p := &fakeProvider{pull: func(c context.Context, _ string) (PullResult, error) {
		cancel()
		<-c.Done()
		return PullResult{}, c.Err()
	}}

	_, err := h.rec.Run(ctx, h.scope, p)
	require.Error(t, err)
	st := h.state(t)
	assert.Equal(t, models.SyncStatusFailed, st.Status)
	assert.Equal(t, "cancelled", st.LastErrorCode)
}

func TestRunSavesCursorPerPage(t *testing.T) {
	h := setupReconciler(t, DefaultOptions())
	ctx := context.Background()
	failSecond := true
	p := &fakeProvider{}
	p.pull = func(_ context.Context, cursor string) (PullResult, error) {
		switch cursor {
		case "":
			return PullResult{
				Records:    []RemoteRecord{{ExternalID: "people/pat", Fields: map[string]string{FieldName: "Pat"}}},
				NextCursor: "page2",
				HasMore:    true,
			}, nil
		case "page2":
			if failSecond {
				return PullResult{}, errors.New("boom")
			}
			return PullResult{
				Records:    []RemoteRecord{{ExternalID: "people/lee", Fields: map[string]string{FieldName: "Lee"}}},
				NextCursor: "sync1",
			}, nil
		}
		return PullResult{NextCursor: cursor}, nil
	}

	_, err := h.rec.Run(ctx, h.scope, p)
	require.Error(t, err)
	assert.Equal(t, "page2", h.state(t).Cursor)

	failSecond = false
	h.now = h.now.Add(time.Hour)
	stats, err := h.rec.Run(ctx, h.scope, p)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, []string{"", "page2", "page2"}, p.cursors)
	assert.Equal(t, "sync1", h.state(t).Cursor)

	persons, err := h.store.ListPersons(ctx, h.scope, db.ListPersonsOptions{})
	require.NoError(t, err)
	assert.Len(t, persons, 2)
}

func TestBackoffForIsCapped(t *testing.T) {
	r := NewReconciler(nil, Options{BackoffInitial: time.Minute, BackoffMax: 10 * time.Minute}, zerolog.Nop())
	assert.Equal(t, time.Minute, r.backoffFor(1))
	assert.Equal(t, 2*time.Minute, r.backoffFor(2))
	assert.Equal(t, 8*time.Minute, r.backoffFor(4))
	assert.Equal(t, 10*time.Minute, r.backoffFor(9))
}
