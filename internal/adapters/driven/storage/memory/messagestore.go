package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/helian-labs/chatvault/internal/core/domain"
	"github.com/helian-labs/chatvault/internal/core/ports/driven"
)

// Ensure MessageStore implements the interface.
var _ driven.MessageStore = (*MessageStore)(nil)

// MessageStore is an in-memory implementation of driven.MessageStore. It
// shares asset storage with a MediaStore so SaveMessage remains the single
// write path for both, mirroring the transactional store.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[string]domain.Message
	media    *MediaStore
}

// NewMessageStore creates a new in-memory message store writing assets
// into media.
func NewMessageStore(media *MediaStore) *MessageStore {
	return &MessageStore{
		messages: make(map[string]domain.Message),
		media:    media,
	}
}

// SaveMessage stores a message and its media assets together.
func (s *MessageStore) SaveMessage(_ context.Context, msg *domain.Message, assets []domain.MediaAsset) error {
	if msg.ID == "" || msg.ConversationID == 0 || msg.Fingerprint == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ConversationID == msg.ConversationID && m.Fingerprint == msg.Fingerprint {
			return domain.ErrDuplicate
		}
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages[msg.ID] = *msg

	for _, a := range assets {
		s.media.putAsset(a)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *MessageStore) GetMessage(_ context.Context, id string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &msg, nil
}

// FindByFingerprint returns the message with the given fingerprint in the
// conversation.
func (s *MessageStore) FindByFingerprint(
	_ context.Context,
	conversationID int64,
	fingerprint string,
) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.ConversationID == conversationID && m.Fingerprint == fingerprint {
			return &m, nil
		}
	}
	return nil, domain.ErrNotFound
}

// FindCurrentAtPosition returns the current message version at a remote
// position.
func (s *MessageStore) FindCurrentAtPosition(
	_ context.Context,
	conversationID, position int64,
) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.ConversationID == conversationID && m.Position == position && m.Current() {
			return &m, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListCurrent pages through current messages by ascending position.
func (s *MessageStore) ListCurrent(
	_ context.Context,
	conversationID, afterPosition int64,
	limit int,
) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID && m.Position > afterPosition && m.Current() {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Supersede links an old message version to its replacement.
func (s *MessageStore) Supersede(_ context.Context, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[oldID]
	if !ok {
		return domain.ErrNotFound
	}
	msg.SupersededBy = newID
	s.messages[oldID] = msg
	return nil
}

// Count returns the number of stored messages. Test helper.
func (s *MessageStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
