// ABOUTME: Provider contract the reconciler depends on: pull a page of changes, push one record
// ABOUTME: Adapters translate their remote model into RemoteRecord field maps
package sync

import "context"

// Provider is an already-implemented contact source such as Google Contacts.
type Provider interface {
	Name() string
	// Pull returns the changes after cursor. An empty cursor requests a full sync.
	Pull(ctx context.Context, cursor string) (PullResult, error)
	Push(ctx context.Context, record RemoteRecord) (PushResult, error)
}

// RemoteRecord is one contact as the provider sees it. Fields are keyed by
// the synced field names in fields.go; absent keys are not managed remotely.
type RemoteRecord struct {
	ExternalID string            `json:"external_id"`
	Fields     map[string]string `json:"fields"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Deleted    bool              `json:"deleted,omitempty"`
}

type PullResult struct {
	Records    []RemoteRecord `json:"records"`
	NextCursor string         `json:"next_cursor"`
	HasMore    bool           `json:"has_more"`
}

type PushResult struct {
	RemoteID string `json:"remote_id"`
}
