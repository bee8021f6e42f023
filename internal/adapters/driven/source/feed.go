// Package source provides SourceClient implementations. The file feed
// client replays exported conversation spools from a local directory,
// which is also the transport the ingestion tests run against.
package source

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/helian-labs/chatvault/internal/core/domain"
	"github.com/helian-labs/chatvault/internal/core/ports/driven"
)

// Ensure FeedClient implements the interface.
var _ driven.SourceClient = (*FeedClient)(nil)

// FeedClient reads batches from a spool directory. The directory holds
// one append-only JSONL file per conversation, named <conversation-id>.jsonl,
// plus a conversations.json manifest.
type FeedClient struct {
	dir string
}

// NewFeedClient creates a feed client over dir.
func NewFeedClient(dir string) (*FeedClient, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening spool directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("spool path %s is not a directory", dir)
	}
	return &FeedClient{dir: dir}, nil
}

// feedRecord is the wire form of one spooled record.
type feedRecord struct {
	Position  int64       `json:"position"`
	Author    string      `json:"author"`
	Timestamp time.Time   `json:"timestamp"`
	Text      string      `json:"text"`
	TopicID   int64       `json:"topic_id,omitempty"`
	Edit      bool        `json:"edit,omitempty"`
	Media     []feedMedia `json:"media,omitempty"`
}

// feedMedia is an attachment, either inline base64 bytes or a path
// relative to the spool directory.
type feedMedia struct {
	Data     string `json:"data,omitempty"`
	Path     string `json:"path,omitempty"`
	MIMEHint string `json:"mime_hint,omitempty"`
}

// feedConversation is one manifest entry.
type feedConversation struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Kind   string `json:"kind"`
	Active bool   `json:"active"`
}

// Fetch returns up to limit records with positions strictly greater than
// afterPosition, in ascending position order. A conversation without a
// spool file has no records yet.
func (c *FeedClient) Fetch(
	ctx context.Context,
	conversationID, afterPosition int64,
	limit int,
) ([]domain.RawRecord, error) {
	path := filepath.Join(c.dir, strconv.FormatInt(conversationID, 10)+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &domain.TransientError{Err: fmt.Errorf("opening spool: %w", err)}
	}
	defer f.Close()

	var records []domain.RawRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 32<<20)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec feedRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decoding spool %s line %d: %w", path, line, err)
		}
		if rec.Position <= afterPosition {
			continue
		}

		record, err := c.toRaw(conversationID, rec)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, &domain.TransientError{Err: fmt.Errorf("reading spool: %w", err)}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Position < records[j].Position })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// toRaw converts a wire record, resolving media bytes.
func (c *FeedClient) toRaw(conversationID int64, rec feedRecord) (domain.RawRecord, error) {
	record := domain.RawRecord{
		ConversationID: conversationID,
		Position:       rec.Position,
		Author:         rec.Author,
		Timestamp:      rec.Timestamp,
		Text:           rec.Text,
		TopicID:        rec.TopicID,
		Edit:           rec.Edit,
	}
	for _, m := range rec.Media {
		var data []byte
		var err error
		switch {
		case m.Data != "":
			data, err = base64.StdEncoding.DecodeString(m.Data)
			if err != nil {
				return domain.RawRecord{}, fmt.Errorf("decoding inline media: %w", err)
			}
		case m.Path != "":
			data, err = os.ReadFile(filepath.Join(c.dir, filepath.Clean(m.Path)))
			if err != nil {
				return domain.RawRecord{}, &domain.TransientError{Err: fmt.Errorf("reading media file: %w", err)}
			}
		default:
			continue
		}
		record.Media = append(record.Media, domain.RawMedia{
			Bytes:    data,
			MIMEHint: m.MIMEHint,
		})
	}
	return record, nil
}

// Conversations reads the manifest.
func (c *FeedClient) Conversations(_ context.Context) ([]domain.Conversation, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, "conversations.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &domain.TransientError{Err: fmt.Errorf("reading manifest: %w", err)}
	}

	var entries []feedConversation
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}

	conversations := make([]domain.Conversation, 0, len(entries))
	for _, e := range entries {
		conversations = append(conversations, domain.Conversation{
			ID:     e.ID,
			Title:  e.Title,
			Kind:   domain.ConversationKind(e.Kind),
			Active: e.Active,
		})
	}
	return conversations, nil
}

// Close releases the session. The feed client holds no resources.
func (c *FeedClient) Close() error {
	return nil
}
