package domain

import "time"

// ConversationKind distinguishes the addressable channel types of the
// remote source.
type ConversationKind string

const (
	KindDirect  ConversationKind = "direct"
	KindGroup   ConversationKind = "group"
	KindChannel ConversationKind = "channel"
)

// Conversation is a distinct chat or channel mirrored from the remote
// source. Conversations are never deleted, only marked inactive.
type Conversation struct {
	// ID is the remote source's identifier for the chat.
	ID int64

	// Title is the display name.
	Title string

	// Kind classifies the channel type.
	Kind ConversationKind

	// Active controls whether the conversation is scheduled for ingestion.
	Active bool

	// CreatedAt is when the conversation was first registered.
	CreatedAt time.Time
}

// SyncCursor is the resumable watermark marking ingestion progress within
// a conversation. It is the sole resumption state after a restart.
type SyncCursor struct {
	ConversationID int64

	// Position is the last durably ingested remote position. Monotonic;
	// advanced only after the batch is committed to both the metadata
	// store and the search index.
	Position int64

	// LastSuccessAt is when the cursor last advanced. A degraded
	// conversation is reported as "behind" with this timestamp.
	LastSuccessAt time.Time
}

// SyncStatus describes ingestion health for one conversation.
type SyncStatus struct {
	ConversationID      int64
	Position            int64
	LastSuccessAt       time.Time
	ConsecutiveFailures int
	Degraded            bool
}
