package roast

import (
	"context"
	"io"
	"time"
)

// URLGate validates a raw URL syntactically and against SSRF-sensitive
// address ranges before any outbound call is made.
type URLGate interface {
	Check(ctx context.Context, rawURL string) error
}

// Capturer produces a compressed full-page screenshot of the given URL.
// Errors are already classified into one of the capture failure kinds.
type Capturer interface {
	Capture(ctx context.Context, url string) ([]byte, error)
}

// Critic turns screenshot bytes into a schema-validated Critique.
type Critic interface {
	Analyze(ctx context.Context, image []byte) (Critique, error)
}

// BlobStore persists an object and returns its public address.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// RecordStore is the append-only durable record capability.
type RecordStore interface {
	Insert(ctx context.Context, record Record) error
	Get(ctx context.Context, id string) (Record, error)
	ListRecent(ctx context.Context, limit int) ([]Record, error)
	ListByVisitor(ctx context.Context, visitorID string) ([]Record, error)
}

// IDGenerator mints record identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}
