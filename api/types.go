package api

import (
	"context"
	"time"

	"school-planner/domain"
)

// Storage abstracts the state store for handlers.
type Storage interface {
	// LoadRaw returns the stored document JSON, or the default document when
	// nothing has been saved yet.
	LoadRaw(ctx context.Context) ([]byte, error)
	// SaveDocument normalizes and persists the document, returning the write
	// timestamp echoed back to the client.
	SaveDocument(ctx context.Context, doc domain.Document) (time.Time, error)
	Ping(ctx context.Context) error
}

// ChangeFeed is notified after every accepted write. Publishing is
// best-effort: a feed failure never fails the request.
type ChangeFeed interface {
	Publish(ctx context.Context, doc domain.Document, updatedAt time.Time) error
}
