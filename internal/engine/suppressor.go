package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sentinella/internal/logger"
	"sentinella/pkg/models"
)

// Suppressor decides whether a filter's forwarding should be skipped because
// identical text was already forwarded recently.
type Suppressor interface {
	// ShouldSuppress returns true when the message text was already seen for
	// this filter inside the suppression window. The first observation of a
	// text claims the window and returns false.
	ShouldSuppress(ctx context.Context, filter *models.Filter, msg *models.Message) bool
}

// redisSuppressor backs the unique-text window with Redis SETNX keys that
// expire on their own. A cache outage fails open: forwarding proceeds rather
// than silently dropping alerts.
type redisSuppressor struct {
	client     *redis.Client
	defaultTTL time.Duration
	logger     logger.Logger
}

func NewSuppressor(client *redis.Client, defaultTTL time.Duration, log logger.Logger) Suppressor {
	return &redisSuppressor{
		client:     client,
		defaultTTL: defaultTTL,
		logger:     log,
	}
}

func (s *redisSuppressor) ShouldSuppress(ctx context.Context, filter *models.Filter, msg *models.Message) bool {
	if !filter.UniqueText.Enabled || !msg.HasText() {
		return false
	}

	ttl := s.defaultTTL
	if filter.UniqueText.TimeWindowSeconds > 0 {
		ttl = time.Duration(filter.UniqueText.TimeWindowSeconds) * time.Second
	}

	key := suppressionKey(filter, msg.Content.Text)
	claimed, err := s.client.SetNX(ctx, key, msg.MessageID, ttl).Result()
	if err != nil {
		s.logger.WarnwCtx(ctx, "suppression cache unavailable, forwarding anyway",
			"filter", filter.Name, "error", err)
		return false
	}
	return !claimed
}

func suppressionKey(filter *models.Filter, text string) string {
	sum := sha256.Sum256([]byte(text))
	scope := filter.ID
	if filter.UniqueText.Tag != "" {
		scope = filter.UniqueText.Tag
	}
	return fmt.Sprintf("suppress:%s:%s", scope, hex.EncodeToString(sum[:]))
}

// nopSuppressor is used when no cache is configured; nothing is suppressed.
type nopSuppressor struct{}

func NewNopSuppressor() Suppressor { return nopSuppressor{} }

func (nopSuppressor) ShouldSuppress(context.Context, *models.Filter, *models.Message) bool {
	return false
}
