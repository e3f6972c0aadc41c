// ABOUTME: Google Contacts provider adapter over the People API
// ABOUTME: Cursor is base64 JSON {page_token, sync_token}; HTTP failures map to transient or fatal errors
package sync

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/harperreed/kith/models"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/people/v1"
)

// GoogleProviderName is the provider key stored in sync state and identities.
const GoogleProviderName = "google_contacts"

const (
	googlePageSize     = 500
	googlePersonFields = "names,emailAddresses,phoneNumbers,organizations,addresses,biographies,metadata"
	googleUpdateFields = "names,emailAddresses,phoneNumbers,organizations,addresses,biographies"
)

type googleCursor struct {
	PageToken string `json:"page_token,omitempty"`
	SyncToken string `json:"sync_token,omitempty"`
}

func encodeGoogleCursor(c googleCursor) string {
	if c == (googleCursor{}) {
		return ""
	}
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeGoogleCursor(s string) (googleCursor, error) {
	var c googleCursor
	if s == "" {
		return c, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, err
	}
	return c, nil
}

// GoogleProvider adapts a People API service to Provider.
type GoogleProvider struct {
	svc *people.Service
}

func NewGoogleProvider(svc *people.Service) *GoogleProvider {
	return &GoogleProvider{svc: svc}
}

func (g *GoogleProvider) Name() string { return GoogleProviderName }

func (g *GoogleProvider) Pull(ctx context.Context, cursor string) (PullResult, error) {
	c, err := decodeGoogleCursor(cursor)
	if err != nil {
		return PullResult{}, &models.FatalConfigError{Provider: GoogleProviderName, Reason: "corrupt_cursor", Err: err}
	}

	call := g.svc.People.Connections.List("people/me").
		PageSize(googlePageSize).
		PersonFields(googlePersonFields).
		RequestSyncToken(true)
	if c.SyncToken != "" {
		call = call.SyncToken(c.SyncToken)
	}
	if c.PageToken != "" {
		call = call.PageToken(c.PageToken)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return PullResult{}, classifyGoogleError(err)
	}

	out := PullResult{Records: make([]RemoteRecord, 0, len(resp.Connections))}
	for _, p := range resp.Connections {
		if p == nil || p.ResourceName == "" {
			continue
		}
		out.Records = append(out.Records, convertPerson(p))
	}
	if resp.NextPageToken != "" {
		out.NextCursor = encodeGoogleCursor(googleCursor{PageToken: resp.NextPageToken, SyncToken: c.SyncToken})
		out.HasMore = true
	} else {
		out.NextCursor = encodeGoogleCursor(googleCursor{SyncToken: resp.NextSyncToken})
	}
	return out, nil
}

func (g *GoogleProvider) Push(ctx context.Context, rec RemoteRecord) (PushResult, error) {
	p := toGooglePerson(rec)
	updated, err := g.svc.People.UpdateContact(rec.ExternalID, p).
		UpdatePersonFields(googleUpdateFields).
		Context(ctx).
		Do()
	if err != nil {
		return PushResult{}, classifyGoogleError(err)
	}
	return PushResult{RemoteID: updated.ResourceName}, nil
}

func fatal(reason string, err error) error {
	return &models.FatalConfigError{Provider: GoogleProviderName, Reason: reason, Err: err}
}

// classifyGoogleError maps API failures onto the sync error taxonomy.
func classifyGoogleError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return &models.TransientProviderError{Provider: GoogleProviderName, Err: err}
	}
	switch {
	case gerr.Code == http.StatusGone:
		return fatal("expired_sync_token", err)
	case gerr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(gerr.Message), "sync token"):
		return fatal("expired_sync_token", err)
	case gerr.Code == http.StatusUnauthorized, gerr.Code == http.StatusForbidden:
		return fatal("unauthorized", err)
	case gerr.Code == http.StatusTooManyRequests, gerr.Code >= 500:
		return &models.TransientProviderError{Provider: GoogleProviderName, Err: err}
	}
	return fatal(fmt.Sprintf("http_%d", gerr.Code), err)
}

// convertPerson maps a People API contact to a RemoteRecord.
func convertPerson(p *people.Person) RemoteRecord {
	rec := RemoteRecord{
		ExternalID: p.ResourceName,
		Fields:     map[string]string{},
		Metadata:   map[string]string{},
	}
	if p.Etag != "" {
		rec.Metadata["etag"] = p.Etag
	}
	if p.Metadata != nil && p.Metadata.Deleted {
		rec.Deleted = true
		return rec
	}

	if len(p.Names) > 0 && p.Names[0].DisplayName != "" {
		rec.Fields[FieldName] = p.Names[0].DisplayName
	}

	for _, e := range p.EmailAddresses {
		if e == nil || e.Value == "" {
			continue
		}
		field := FieldPersonalEmail
		if strings.EqualFold(e.Type, "work") {
			field = FieldWorkEmail
		}
		// prefer the primary value for each slot
		if _, taken := rec.Fields[field]; !taken || (e.Metadata != nil && e.Metadata.Primary) {
			rec.Fields[field] = e.Value
		}
	}

	for _, ph := range p.PhoneNumbers {
		if ph == nil || ph.Value == "" {
			continue
		}
		field := FieldPersonalPhone
		if strings.EqualFold(ph.Type, "work") {
			field = FieldWorkPhone
		}
		if _, taken := rec.Fields[field]; !taken || (ph.Metadata != nil && ph.Metadata.Primary) {
			rec.Fields[field] = ph.Value
		}
	}

	if len(p.Organizations) > 0 && p.Organizations[0] != nil {
		org := p.Organizations[0]
		if org.Name != "" {
			rec.Fields[FieldCompany] = org.Name
		}
		if org.Title != "" {
			rec.Fields[FieldTitle] = org.Title
		}
	}

	if len(p.Addresses) > 0 && p.Addresses[0] != nil {
		addr := p.Addresses[0]
		if addr.City != "" {
			rec.Fields[FieldCity] = addr.City
		}
		if addr.Region != "" {
			rec.Fields[FieldState] = addr.Region
		}
		if addr.Country != "" {
			rec.Fields[FieldCountry] = addr.Country
		}
	}

	if len(p.Biographies) > 0 && p.Biographies[0] != nil && p.Biographies[0].Value != "" {
		rec.Fields[FieldNotes] = p.Biographies[0].Value
	}
	return rec
}

func toGooglePerson(rec RemoteRecord) *people.Person {
	f := rec.Fields
	p := &people.Person{ResourceName: rec.ExternalID, Etag: rec.Metadata["etag"]}
	if f[FieldName] != "" {
		p.Names = []*people.Name{{UnstructuredName: f[FieldName]}}
	}
	if v := f[FieldPersonalEmail]; v != "" {
		p.EmailAddresses = append(p.EmailAddresses, &people.EmailAddress{Value: v, Type: "home"})
	}
	if v := f[FieldWorkEmail]; v != "" {
		p.EmailAddresses = append(p.EmailAddresses, &people.EmailAddress{Value: v, Type: "work"})
	}
	if v := f[FieldPersonalPhone]; v != "" {
		p.PhoneNumbers = append(p.PhoneNumbers, &people.PhoneNumber{Value: v, Type: "mobile"})
	}
	if v := f[FieldWorkPhone]; v != "" {
		p.PhoneNumbers = append(p.PhoneNumbers, &people.PhoneNumber{Value: v, Type: "work"})
	}
	if f[FieldCompany] != "" || f[FieldTitle] != "" {
		p.Organizations = []*people.Organization{{Name: f[FieldCompany], Title: f[FieldTitle]}}
	}
	if f[FieldCity] != "" || f[FieldState] != "" || f[FieldCountry] != "" {
		p.Addresses = []*people.Address{{City: f[FieldCity], Region: f[FieldState], Country: f[FieldCountry]}}
	}
	if f[FieldNotes] != "" {
		p.Biographies = []*people.Biography{{Value: f[FieldNotes], ContentType: "TEXT_PLAIN"}}
	}
	return p
}
