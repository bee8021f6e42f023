package domain

import "time"

// Message is the archived form of one unique record. Immutable after
// creation except for the SupersededBy link set when an edit is observed.
type Message struct {
	// ID is the stable internal identifier (UUID).
	ID string

	// ConversationID is the owning conversation.
	ConversationID int64

	// Position is the remote position the message was fetched at.
	Position int64

	// Author is the sender's display identifier.
	Author string

	// Timestamp is the remote send time.
	Timestamp time.Time

	// Text is the normalized message body.
	Text string

	// TopicID is the forum topic the message belongs to, or zero.
	TopicID int64

	// MediaRefs lists the IDs of referenced MediaAssets. The assets are
	// referenced, not owned; a shared sticker dedupes to one asset.
	MediaRefs []string

	// Fingerprint is the content-derived hash used for dedup.
	Fingerprint string

	// SupersededBy points at the message version that replaced this one
	// after an edit, or is empty for the current version. The link is
	// one-directional; visibility checks read this field, never a graph.
	SupersededBy string

	// CreatedAt is when the message was archived.
	CreatedAt time.Time
}

// Current reports whether this message version is visible to default
// queries.
func (m *Message) Current() bool {
	return m.SupersededBy == ""
}
