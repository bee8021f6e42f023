package domain

import "time"

// RawRecord is one unprocessed item fetched from the remote source.
// It is transient: consumed immediately by an ingestion worker and never
// persisted as-is.
type RawRecord struct {
	// ConversationID is the remote chat the record belongs to.
	ConversationID int64

	// Position is the record's monotonic position within the conversation.
	Position int64

	// Author is the sender's display identifier.
	Author string

	// Timestamp is the remote send time.
	Timestamp time.Time

	// Text is the message body as delivered by the source.
	Text string

	// TopicID is the forum topic (thread) the record belongs to, or zero.
	TopicID int64

	// Edit marks the record as an edit of an earlier record at the same
	// position. Edits create a new Message version and retire the old one
	// from default query visibility.
	Edit bool

	// Media holds zero or more attached blobs.
	Media []RawMedia
}

// RawMedia is an attached blob plus the MIME type the source declared for
// it. The declared type is a hint only; the normalizer sniffs the actual
// format from content.
type RawMedia struct {
	Bytes    []byte
	MIMEHint string
}
