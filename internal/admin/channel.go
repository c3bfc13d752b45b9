// Package admin holds the static admin allow-list and fans notifications
// out to every admin.
package admin

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"psybot/internal/models"
)

// Sender delivers a reply to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, reply models.Reply) error
}

// Channel is the admin notification channel.
type Channel struct {
	ids    []int64
	set    map[int64]struct{}
	sender Sender
	logger *zap.Logger
}

// NewChannel creates an admin channel for the given Telegram IDs.
func NewChannel(ids []int64, sender Sender, logger *zap.Logger) *Channel {
	set := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := set[id]; dup {
			continue
		}
		set[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		logger.Warn("No admin IDs configured, moderation notifications are disabled")
	}
	return &Channel{ids: unique, set: set, sender: sender, logger: logger}
}

// IsAdmin reports whether userID is in the allow-list.
func (c *Channel) IsAdmin(userID int64) bool {
	_, ok := c.set[userID]
	return ok
}

// IDs returns the configured admins in configuration order.
func (c *Channel) IDs() []int64 {
	return append([]int64(nil), c.ids...)
}

// Notify sends reply to every admin concurrently. Failures are logged per
// admin and do not affect the others.
func (c *Channel) Notify(ctx context.Context, reply models.Reply) {
	var wg sync.WaitGroup
	for _, id := range c.ids {
		wg.Add(1)
		go func(adminID int64) {
			defer wg.Done()
			if err := c.sender.Send(ctx, adminID, reply); err != nil {
				c.logger.Error("Failed to notify admin",
					zap.Int64("admin_id", adminID),
					zap.Error(err))
			}
		}(id)
	}
	wg.Wait()
}
