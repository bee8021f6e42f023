package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicate indicates a record whose fingerprint is already stored
	// for the conversation. Re-ingestion is an expected no-op, not a failure.
	ErrDuplicate = errors.New("duplicate record")

	// ErrConversationDegraded indicates a conversation exceeded its retry
	// budget and is skipped for the current scheduling round.
	ErrConversationDegraded = errors.New("conversation degraded")

	// ErrIndexCommit indicates the search index failed to commit a batch.
	// Ingestion for the affected conversation pauses rather than dropping
	// documents; the cursor is not advanced.
	ErrIndexCommit = errors.New("index commit failed")

	// ErrIngestInProgress indicates an ingest round is already running.
	ErrIngestInProgress = errors.New("ingest in progress")
)

// FloodWaitError is a server-issued flood-control signal carrying an
// explicit wait duration. It is scoped backoff, not a failure.
type FloodWaitError struct {
	Scope string
	Wait  time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait %s on scope %q", e.Wait, e.Scope)
}

// TransientError wraps a network or protocol failure that is safe to retry
// with backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// DecodeError indicates a media blob could not be decoded. It isolates to
// the single MediaAsset; the owning message is still archived.
type DecodeError struct {
	Format string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("decode: %s", e.Reason)
	}
	return fmt.Sprintf("decode %s: %s", e.Format, e.Reason)
}

// OutOfOrderError reports a cursor advance that is not strictly greater
// than the stored position. It signals a race between workers on the same
// conversation; the iteration is abandoned and safely retried from the
// stored cursor.
type OutOfOrderError struct {
	ConversationID int64
	Stored         int64
	Proposed       int64
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("out-of-order cursor advance on conversation %d: stored %d, proposed %d",
		e.ConversationID, e.Stored, e.Proposed)
}

// IsFloodWait reports whether err carries a server-issued wait hint and
// returns it if so.
func IsFloodWait(err error) (*FloodWaitError, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw, true
	}
	return nil, false
}

// IsTransient reports whether err is retryable with backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
