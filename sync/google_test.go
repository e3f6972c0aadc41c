// ABOUTME: Tests for the Google People provider against a local HTTP server
// ABOUTME: Covers cursor encoding, paging, field conversion and error classification
package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harperreed/kith/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"
)

func newTestGoogleProvider(t *testing.T, h http.HandlerFunc) *GoogleProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	svc, err := people.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return NewGoogleProvider(svc)
}

func TestGoogleCursorRoundTrip(t *testing.T) {
	assert.Equal(t, "", encodeGoogleCursor(googleCursor{}))

	enc := encodeGoogleCursor(googleCursor{PageToken: "p", SyncToken: "s"})
	got, err := decodeGoogleCursor(enc)
	require.NoError(t, err)
	assert.Equal(t, googleCursor{PageToken: "p", SyncToken: "s"}, got)

	_, err = decodeGoogleCursor("%%%not-base64")
	assert.Error(t, err)
}

func TestGooglePullCorruptCursorIsFatal(t *testing.T) {
	g := newTestGoogleProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := g.Pull(context.Background(), "!!garbage!!")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFatalConfig))
	assert.Equal(t, "fatal:corrupt_cursor", models.ErrorCode(err))
}

func TestGooglePullPagesThenSyncToken(t *testing.T) {
	g := newTestGoogleProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/connections"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = fmt.Fprint(w, `{"connections":[{"resourceName":"people/c1","etag":"e1",
				"names":[{"displayName":"Jamie Doe"}],
				"emailAddresses":[{"value":"jamie@example.com","type":"home"},{"value":"jamie@work.example","type":"work"}],
				"addresses":[{"city":"Denver","region":"CO"}]}],
				"nextPageToken":"p2"}`)
			return
		}
		assert.Equal(t, "p2", r.URL.Query().Get("pageToken"))
		_, _ = fmt.Fprint(w, `{"connections":[{"resourceName":"people/c2","metadata":{"deleted":true}}],"nextSyncToken":"s1"}`)
	})

	first, err := g.Pull(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, first.Records, 1)
	assert.True(t, first.HasMore)
	rec := first.Records[0]
	assert.Equal(t, "people/c1", rec.ExternalID)
	assert.Equal(t, "Jamie Doe", rec.Fields[FieldName])
	assert.Equal(t, "jamie@example.com", rec.Fields[FieldPersonalEmail])
	assert.Equal(t, "jamie@work.example", rec.Fields[FieldWorkEmail])
	assert.Equal(t, "Denver", rec.Fields[FieldCity])
	assert.Equal(t, "CO", rec.Fields[FieldState])
	assert.Equal(t, "e1", rec.Metadata["etag"])

	second, err := g.Pull(context.Background(), first.NextCursor)
	require.NoError(t, err)
	assert.False(t, second.HasMore)
	require.Len(t, second.Records, 1)
	assert.True(t, second.Records[0].Deleted)

	c, err := decodeGoogleCursor(second.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, googleCursor{SyncToken: "s1"}, c)
}

func TestGooglePullErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		fatal  bool
		code   string
	}{
		{http.StatusGone, true, "fatal:expired_sync_token"},
		{http.StatusUnauthorized, true, "fatal:unauthorized"},
		{http.StatusTooManyRequests, false, "transient"},
		{http.StatusServiceUnavailable, false, "transient"},
		{http.StatusNotFound, true, "fatal:http_404"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			g := newTestGoogleProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"nope"}}`, tt.status)
			})
			_, err := g.Pull(context.Background(), "")
			require.Error(t, err)
			assert.Equal(t, tt.fatal, errors.Is(err, models.ErrFatalConfig))
			assert.Equal(t, tt.code, models.ErrorCode(err))
		})
	}
}

func TestClassifyGoogleErrorNonAPI(t *testing.T) {
	err := classifyGoogleError(errors.New("connection reset"))
	assert.True(t, errors.Is(err, models.ErrTransientProvider))

	err = classifyGoogleError(&googleapi.Error{Code: http.StatusBadRequest, Message: "Sync token is expired"})
	assert.Equal(t, "fatal:expired_sync_token", models.ErrorCode(err))
}

func TestGooglePushUpdatesContact(t *testing.T) {
	var gotPath, gotFields string
	g := newTestGoogleProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFields = r.URL.Query().Get("updatePersonFields")
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"resourceName":"people/c1","etag":"e2"}`)
	})

	res, err := g.Push(context.Background(), RemoteRecord{
		ExternalID: "people/c1",
		Fields:     map[string]string{FieldName: "Jamie Doe", FieldCity: "Chicago"},
		Metadata:   map[string]string{"etag": "e1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "people/c1", res.RemoteID)
	assert.True(t, strings.HasSuffix(gotPath, "people/c1:updateContact"))
	assert.Equal(t, googleUpdateFields, gotFields)
}

func TestToGooglePerson(t *testing.T) {
	p := toGooglePerson(RemoteRecord{
		ExternalID: "people/c9",
		Fields: map[string]string{
			FieldName: "Robin", FieldWorkPhone: "+1 555 0100", FieldCompany: "Acme", FieldNotes: "likes tea",
		},
	})
	require.Len(t, p.Names, 1)
	assert.Equal(t, "Robin", p.Names[0].UnstructuredName)
	require.Len(t, p.PhoneNumbers, 1)
	assert.Equal(t, "work", p.PhoneNumbers[0].Type)
	require.Len(t, p.Organizations, 1)
	assert.Equal(t, "Acme", p.Organizations[0].Name)
	assert.Nil(t, p.Addresses)
	require.Len(t, p.Biographies, 1)
}
