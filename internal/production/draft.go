package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DraftVersion is the schema version of stored drafts. Drafts of any other version are
// discarded on load.
const DraftVersion = 2

// DefaultDraftTTL is how long an unsaved planner selection survives.
const DefaultDraftTTL = 24 * time.Hour

// Draft is the persisted planner state of one operator.
type Draft struct {
	Version   int        `json:"version"`
	SavedAt   time.Time  `json:"savedAt"`
	Selection Selections `json:"selection"`
}

// DraftStore keeps planner drafts in redis, one per operator.
type DraftStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewDraftStore constructs a DraftStore.
func NewDraftStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *DraftStore {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftStore{client: client, ttl: ttl, logger: logger, now: time.Now}
}

func draftKey(userID int64) string {
	return fmt.Sprintf("plati:production:draft:%d", userID)
}

// Load returns the operator's draft. Drafts that are expired, of another version or
// unreadable are deleted and reported as absent.
func (s *DraftStore) Load(ctx context.Context, userID int64) (Selections, bool, error) {
	data, err := s.client.Get(ctx, draftKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		s.logger.Warn("discarding unreadable production draft", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, false, s.Clear(ctx, userID)
	}
	if d.Version != DraftVersion || d.SavedAt.IsZero() || s.now().Sub(d.SavedAt) > s.ttl {
		return nil, false, s.Clear(ctx, userID)
	}
	return d.Selection, len(d.Selection) > 0, nil
}

// Save stores the selection. An empty selection clears the draft.
func (s *DraftStore) Save(ctx context.Context, userID int64, sel Selections) error {
	if len(sel) == 0 {
		return s.Clear(ctx, userID)
	}
	data, err := json.Marshal(Draft{Version: DraftVersion, SavedAt: s.now().UTC(), Selection: sel})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, draftKey(userID), data, s.ttl).Err()
}

// Clear deletes the draft.
func (s *DraftStore) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, draftKey(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
