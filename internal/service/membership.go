package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"filelinker/internal/config"
	"filelinker/internal/telegram"
)

// MemberStatusChecker queries a user's status in a chat.
type MemberStatusChecker interface {
	MemberStatus(ctx context.Context, chatID, userID int64) (string, error)
}

// MembershipGate checks that a requester belongs to every required channel.
// Only passing results are cached, so a user who joins after being turned
// away is re-checked on the next attempt.
type MembershipGate struct {
	checker  MemberStatusChecker
	channels []config.Channel
	passed   *expirable.LRU[int64, struct{}]
	logger   *log.Logger
}

// NewMembershipGate builds a gate over channels. A zero ttl or size disables caching.
func NewMembershipGate(checker MemberStatusChecker, channels []config.Channel, size int, ttl time.Duration, logger *log.Logger) *MembershipGate {
	g := &MembershipGate{
		checker:  checker,
		channels: channels,
		logger:   logger.With("component", "membership"),
	}
	if size > 0 && ttl > 0 {
		g.passed = expirable.NewLRU[int64, struct{}](size, nil, ttl)
	}
	return g
}

// Missing returns the channels userID has not joined, in configured order.
// Channels without a chat id cannot be queried and are skipped. A failed
// query counts as not joined.
func (g *MembershipGate) Missing(ctx context.Context, userID int64) []config.Channel {
	if g.passed != nil {
		if _, ok := g.passed.Get(userID); ok {
			return nil
		}
	}

	var missing []config.Channel
	for _, ch := range g.channels {
		if ch.ChatID == 0 {
			continue
		}
		status, err := g.checker.MemberStatus(ctx, ch.ChatID, userID)
		if err != nil {
			g.logger.Error("membership_check_failed", "user_id", userID, "chat_id", ch.ChatID, "err", err)
			missing = append(missing, ch)
			continue
		}
		if status == telegram.StatusLeft || status == telegram.StatusKicked {
			missing = append(missing, ch)
		}
	}

	if len(missing) == 0 && g.passed != nil {
		g.passed.Add(userID, struct{}{})
	}
	return missing
}
