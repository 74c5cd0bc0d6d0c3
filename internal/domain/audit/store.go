package audit

import "context"

// AuditStore persists audit records. Interface owned by domain per
// hexagonal architecture; the file-backed implementation lives in
// internal/adapter/outbound/audit.
type AuditStore interface {
	// Append stores audit records. Must be non-blocking from the caller's
	// perspective (no network round trip on the hot path).
	Append(ctx context.Context, records ...AuditRecord) error

	// Flush forces pending records to storage. Called during shutdown.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close() error
}
