package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/helian-labs/chatvault/internal/core/domain"
	"github.com/helian-labs/chatvault/internal/core/ports/driven"
	"github.com/helian-labs/chatvault/internal/core/ports/driving"
	"github.com/helian-labs/chatvault/internal/ratelimit"
)

// Ensure Ingestor implements the interface.
var _ driving.Ingestor = (*Ingestor)(nil)

// credentialScope is the shared rate-limit scope used when per-conversation
// scoping is disabled.
const credentialScope = "credential"

// IngestorConfig tunes the ingestion orchestrator.
type IngestorConfig struct {
	// Workers bounds concurrent conversation syncs in a round.
	Workers int

	// BatchSize is the fetch window per source request.
	BatchSize int

	// FetchTimeout time-boxes one source fetch.
	FetchTimeout time.Duration

	// ScopePerConversation rate-limits each conversation independently.
	ScopePerConversation bool
}

// Ingestor coordinates ingestion rounds: it walks active conversations,
// pulls record batches through the rate limiter, archives and indexes
// them, and advances cursors only after both stores committed.
type Ingestor struct {
	source        driven.SourceClient
	conversations driven.ConversationStore
	messages      driven.MessageStore
	media         driven.MediaStore
	cursors       driven.CursorStore
	index         driven.SearchIndex
	normalizer    driven.MediaNormalizer
	limiter       *ratelimit.Limiter
	retry         *RetryPolicy
	cfg           IngestorConfig
	log           *zap.Logger

	mu       sync.Mutex
	running  bool
	failures map[int64]int
}

// NewIngestor creates an ingestion orchestrator. A nil retry policy uses
// DefaultRetryPolicy; a nil logger is replaced with a no-op one.
func NewIngestor(
	source driven.SourceClient,
	conversations driven.ConversationStore,
	messages driven.MessageStore,
	media driven.MediaStore,
	cursors driven.CursorStore,
	index driven.SearchIndex,
	normalizer driven.MediaNormalizer,
	limiter *ratelimit.Limiter,
	retry *RetryPolicy,
	cfg IngestorConfig,
	log *zap.Logger,
) *Ingestor {
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Ingestor{
		source:        source,
		conversations: conversations,
		messages:      messages,
		media:         media,
		cursors:       cursors,
		index:         index,
		normalizer:    normalizer,
		limiter:       limiter,
		retry:         retry,
		cfg:           cfg,
		log:           log,
		failures:      make(map[int64]int),
	}
}

// Round fetches and archives every active conversation once, in parallel
// up to the worker cap. New conversations visible to the credential are
// registered first; a degraded conversation is logged and skipped for the
// round, never aborting the others.
func (i *Ingestor) Round(ctx context.Context) error {
	if !i.beginRound() {
		return domain.ErrIngestInProgress
	}
	defer i.endRound()

	if err := i.discoverConversations(ctx); err != nil {
		// The stored set still syncs; discovery retries next round.
		i.log.Warn("conversation discovery failed", zap.Error(err))
	}

	active, err := i.conversations.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	workers := int64(i.cfg.Workers)
	sem := semaphore.NewWeighted(workers)
	for _, conv := range active {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		go func(conversationID int64) {
			defer sem.Release(1)
			if err := i.syncConversation(ctx, conversationID); err != nil {
				i.log.Warn("conversation sync incomplete",
					zap.Int64("conversation", conversationID),
					zap.Error(err))
			}
		}(conv.ID)
	}

	// Draining the full weight waits for every worker.
	if err := sem.Acquire(ctx, workers); err != nil {
		return err
	}
	sem.Release(workers)
	return nil
}

// SyncConversation ingests a single conversation until it is caught up or
// the context is cancelled. A conversation not yet registered is looked up
// in the source's listing first.
func (i *Ingestor) SyncConversation(ctx context.Context, conversationID int64) error {
	_, err := i.conversations.Get(ctx, conversationID)
	if errors.Is(err, domain.ErrNotFound) {
		if discErr := i.discoverConversations(ctx); discErr != nil {
			return fmt.Errorf("discovering conversations: %w", discErr)
		}
		_, err = i.conversations.Get(ctx, conversationID)
	}
	if err != nil {
		return fmt.Errorf("loading conversation %d: %w", conversationID, err)
	}
	return i.syncConversation(ctx, conversationID)
}

// discoverConversations registers conversations the credential can see but
// the store does not know yet. Known conversations are left untouched so a
// manual deactivation survives discovery.
func (i *Ingestor) discoverConversations(ctx context.Context) error {
	listed, err := i.source.Conversations(ctx)
	if err != nil {
		return fmt.Errorf("listing source conversations: %w", err)
	}

	registered := 0
	for idx := range listed {
		conv := listed[idx]
		if _, err := i.conversations.Get(ctx, conv.ID); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("checking conversation %d: %w", conv.ID, err)
		}

		conv.Active = true
		if conv.CreatedAt.IsZero() {
			conv.CreatedAt = time.Now().UTC()
		}
		if err := i.conversations.Save(ctx, &conv); err != nil {
			return fmt.Errorf("registering conversation %d: %w", conv.ID, err)
		}
		registered++
		i.log.Info("conversation registered",
			zap.Int64("conversation", conv.ID),
			zap.String("title", conv.Title),
			zap.String("kind", string(conv.Kind)))
	}

	if registered > 0 {
		i.log.Debug("discovery complete", zap.Int("registered", registered))
	}
	return nil
}

// Status reports ingestion health per active conversation.
func (i *Ingestor) Status(ctx context.Context) ([]domain.SyncStatus, error) {
	active, err := i.conversations.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	statuses := make([]domain.SyncStatus, 0, len(active))
	for _, conv := range active {
		cursor, err := i.cursors.Get(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("loading cursor %d: %w", conv.ID, err)
		}
		failures := i.failureCount(conv.ID)
		statuses = append(statuses, domain.SyncStatus{
			ConversationID:      conv.ID,
			Position:            cursor.Position,
			LastSuccessAt:       cursor.LastSuccessAt,
			ConsecutiveFailures: failures,
			Degraded:            failures >= i.retry.MaxAttempts,
		})
	}
	return statuses, nil
}

// syncConversation loops batches until the conversation is caught up.
// Flood waits pause the scope without counting as failures; transient
// failures burn the retry budget and degrade the conversation when it is
// exhausted.
func (i *Ingestor) syncConversation(ctx context.Context, conversationID int64) error {
	scope := i.scopeFor(conversationID)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := i.acquire(ctx, scope); err != nil {
			return err
		}

		cursor, err := i.cursors.Get(ctx, conversationID)
		if err != nil {
			return fmt.Errorf("loading cursor: %w", err)
		}

		records, err := i.fetch(ctx, conversationID, cursor.Position)
		if err != nil {
			if fw, ok := domain.IsFloodWait(err); ok {
				i.limiter.FloodWait(scope, fw.Wait)
				i.log.Info("flood wait",
					zap.Int64("conversation", conversationID),
					zap.String("scope", scope),
					zap.Duration("wait", fw.Wait))
				continue
			}
			if retryErr := i.noteFailure(ctx, conversationID, err); retryErr != nil {
				return retryErr
			}
			continue
		}

		if len(records) == 0 {
			i.clearFailures(conversationID)
			return nil
		}

		if err := i.archiveBatch(ctx, conversationID, records); err != nil {
			var outOfOrder *domain.OutOfOrderError
			if errors.As(err, &outOfOrder) {
				// Another worker advanced the cursor first; retry the
				// loop from the stored position.
				i.log.Debug("cursor race, re-reading", zap.Int64("conversation", conversationID))
				continue
			}
			if retryErr := i.noteFailure(ctx, conversationID, err); retryErr != nil {
				return retryErr
			}
			continue
		}

		i.clearFailures(conversationID)
		i.log.Debug("batch archived",
			zap.Int64("conversation", conversationID),
			zap.Int("records", len(records)),
			zap.Int64("position", records[len(records)-1].Position))
	}
}

// fetch runs one time-boxed source request. A fetch that only overran its
// own time box is a transient failure; the caller's context staying live
// distinguishes it from a real cancellation.
func (i *Ingestor) fetch(ctx context.Context, conversationID, afterPosition int64) ([]domain.RawRecord, error) {
	fetchCtx := ctx
	if i.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, i.cfg.FetchTimeout)
		defer cancel()
	}
	records, err := i.source.Fetch(fetchCtx, conversationID, afterPosition, i.cfg.BatchSize)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, &domain.TransientError{Err: fmt.Errorf("fetch timed out after %s", i.cfg.FetchTimeout)}
	}
	return records, err
}

// archiveBatch processes one fetched batch: every record is archived and
// submitted to the index, the index batch is committed, and only then
// does the cursor advance to the last record's position.
func (i *Ingestor) archiveBatch(ctx context.Context, conversationID int64, records []domain.RawRecord) error {
	for idx := range records {
		if err := i.archiveRecord(ctx, &records[idx]); err != nil {
			return fmt.Errorf("archiving record at %d: %w", records[idx].Position, err)
		}
	}

	if err := i.index.Commit(ctx); err != nil {
		return err
	}

	last := records[len(records)-1].Position
	if err := i.cursors.Advance(ctx, conversationID, last, time.Now().UTC()); err != nil {
		return err
	}
	return nil
}

// archiveRecord stores one raw record. A fingerprint already present in
// the conversation skips the store write but still resubmits the stored
// version to the index: a replay means the previous cursor advance never
// happened, so the index may have lost the uncommitted batch. A media
// decode failure isolates to the single asset and never drops the message.
func (i *Ingestor) archiveRecord(ctx context.Context, rec *domain.RawRecord) error {
	fingerprint := domain.Fingerprint(rec)

	if stored, err := i.messages.FindByFingerprint(ctx, rec.ConversationID, fingerprint); err == nil {
		return i.resubmit(ctx, stored)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("checking fingerprint: %w", err)
	}

	// An edit retires the current version at the same position.
	var superseded *domain.Message
	if rec.Edit {
		prev, err := i.messages.FindCurrentAtPosition(ctx, rec.ConversationID, rec.Position)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("finding edited message: %w", err)
		}
		superseded = prev
	}

	refs, newAssets, blobs, err := i.prepareMedia(ctx, rec.Media)
	if err != nil {
		return err
	}

	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: rec.ConversationID,
		Position:       rec.Position,
		Author:         rec.Author,
		Timestamp:      rec.Timestamp.UTC(),
		Text:           domain.NormalizeText(rec.Text),
		TopicID:        rec.TopicID,
		MediaRefs:      refs,
		Fingerprint:    fingerprint,
		CreatedAt:      time.Now().UTC(),
	}

	if err := i.messages.SaveMessage(ctx, msg, newAssets); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// Lost a race with a concurrent worker; make sure the winner's
			// version is in the index batch.
			stored, findErr := i.messages.FindByFingerprint(ctx, rec.ConversationID, fingerprint)
			if findErr != nil {
				return fmt.Errorf("loading duplicate message: %w", findErr)
			}
			return i.resubmit(ctx, stored)
		}
		return fmt.Errorf("saving message: %w", err)
	}

	for assetID, data := range blobs {
		if err := i.media.PutBytes(ctx, assetID, data); err != nil {
			return fmt.Errorf("storing media bytes: %w", err)
		}
	}

	if err := i.index.Submit(ctx, indexDocument(msg)); err != nil {
		return fmt.Errorf("submitting to index: %w", err)
	}

	if superseded != nil {
		if err := i.messages.Supersede(ctx, superseded.ID, msg.ID); err != nil {
			return fmt.Errorf("superseding message: %w", err)
		}
		if err := i.index.Tombstone(ctx, superseded.ID); err != nil {
			return fmt.Errorf("tombstoning superseded version: %w", err)
		}
	}
	return nil
}

// resubmit puts a stored message back into the index batch. Submissions
// are keyed by message ID, so re-indexing an already visible document is
// an overwrite, not a duplicate. Superseded versions stay tombstoned.
func (i *Ingestor) resubmit(ctx context.Context, msg *domain.Message) error {
	if !msg.Current() {
		return nil
	}
	if err := i.index.Submit(ctx, indexDocument(msg)); err != nil {
		return fmt.Errorf("resubmitting to index: %w", err)
	}
	return nil
}

// indexDocument projects a message into its index representation.
func indexDocument(msg *domain.Message) domain.IndexDocument {
	return domain.IndexDocument{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		TopicID:        msg.TopicID,
		Author:         msg.Author,
		Timestamp:      msg.Timestamp,
		Text:           msg.Text,
	}
}

// prepareMedia normalizes a record's attachments. Blobs already archived
// under the same digest are referenced, not duplicated. Returns the
// message's asset refs, the new asset rows, and the normalized bytes to
// store keyed by asset ID.
func (i *Ingestor) prepareMedia(
	ctx context.Context,
	media []domain.RawMedia,
) ([]string, []domain.MediaAsset, map[string][]byte, error) {
	if len(media) == 0 {
		return nil, nil, nil, nil
	}

	refs := make([]string, 0, len(media))
	var newAssets []domain.MediaAsset
	blobs := make(map[string][]byte)

	for _, m := range media {
		digest := domain.MediaDigest(m.Bytes)

		existing, err := i.media.FindByDigest(ctx, digest)
		if err == nil {
			refs = append(refs, existing.ID)
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, nil, nil, fmt.Errorf("checking media digest: %w", err)
		}

		asset, data, err := i.normalizer.Normalize(ctx, m.Bytes, m.MIMEHint)
		if err != nil {
			var decodeErr *domain.DecodeError
			if !errors.As(err, &decodeErr) {
				return nil, nil, nil, fmt.Errorf("normalizing media: %w", err)
			}
			i.log.Warn("media normalization failed",
				zap.String("format", decodeErr.Format),
				zap.String("reason", decodeErr.Reason))
		}
		if asset == nil {
			continue
		}

		if asset.ID == "" {
			asset.ID = uuid.NewString()
		}
		refs = append(refs, asset.ID)
		newAssets = append(newAssets, *asset)
		if asset.Status == domain.MediaNormalized && data != nil {
			blobs[asset.ID] = data
		}
	}
	return refs, newAssets, blobs, nil
}

// acquire blocks until the scope's bucket yields a token or ctx ends.
func (i *Ingestor) acquire(ctx context.Context, scope string) error {
	for {
		ok, wait := i.limiter.Acquire(scope)
		if ok {
			return nil
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

// noteFailure counts a batch failure and sleeps the backoff. Returns
// ErrConversationDegraded once the retry budget is exhausted, or a context
// error if cancelled mid-backoff.
func (i *Ingestor) noteFailure(ctx context.Context, conversationID int64, cause error) error {
	i.mu.Lock()
	i.failures[conversationID]++
	attempt := i.failures[conversationID]
	i.mu.Unlock()

	if !i.retry.Retryable(cause) || attempt >= i.retry.MaxAttempts {
		i.log.Warn("conversation degraded",
			zap.Int64("conversation", conversationID),
			zap.Int("failures", attempt),
			zap.Error(cause))
		return fmt.Errorf("%w: conversation %d: %v", domain.ErrConversationDegraded, conversationID, cause)
	}

	delay := i.retry.NextDelay(attempt)
	i.log.Debug("batch failed, backing off",
		zap.Int64("conversation", conversationID),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.Error(cause))
	return sleepCtx(ctx, delay)
}

func (i *Ingestor) clearFailures(conversationID int64) {
	i.mu.Lock()
	delete(i.failures, conversationID)
	i.mu.Unlock()
}

func (i *Ingestor) failureCount(conversationID int64) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.failures[conversationID]
}

func (i *Ingestor) beginRound() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.running {
		return false
	}
	i.running = true
	return true
}

func (i *Ingestor) endRound() {
	i.mu.Lock()
	i.running = false
	i.mu.Unlock()
}

// scopeFor returns the rate-limit scope key for a conversation.
func (i *Ingestor) scopeFor(conversationID int64) string {
	if i.cfg.ScopePerConversation {
		return "conversation/" + strconv.FormatInt(conversationID, 10)
	}
	return credentialScope
}

// sleepCtx sleeps for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
