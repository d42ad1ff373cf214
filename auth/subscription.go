package auth

import (
	"context"
	"time"

	"github.com/adamspd/DesignQuizBot/cache"
	"github.com/adamspd/DesignQuizBot/utils"
)

// MembershipChecker asks the chat platform whether userID belongs to channelID.
type MembershipChecker interface {
	IsChannelMember(ctx context.Context, channelID string, userID int64) (bool, error)
}

// SubscriptionGate decides whether a user may use the bot based on channel
// membership. Positive and negative answers are cached for the TTL; a failed
// check counts as not subscribed and is not cached.
type SubscriptionGate struct {
	channelID string
	checker   MembershipChecker
	cache     *cache.Cache[int64, bool]
}

// NewSubscriptionGate returns a gate for channelID. An empty channelID
// disables the gate and every user passes.
func NewSubscriptionGate(channelID string, checker MembershipChecker, ttl time.Duration) *SubscriptionGate {
	return &SubscriptionGate{
		channelID: channelID,
		checker:   checker,
		cache:     cache.New[int64, bool]("subscriptions", ttl),
	}
}

func (g *SubscriptionGate) Enabled() bool {
	return g.channelID != "" && g.checker != nil
}

// IsSubscribed reports membership, from cache unless force is set.
func (g *SubscriptionGate) IsSubscribed(ctx context.Context, userID int64, force bool) bool {
	if !g.Enabled() {
		return true
	}
	if force {
		g.cache.Invalidate(userID)
	}

	ok, err := g.cache.Get(ctx, userID, func(ctx context.Context) (bool, error) {
		return g.checker.IsChannelMember(ctx, g.channelID, userID)
	})
	if err != nil {
		utils.LogError("Subscription check for %d failed: %v", userID, err)
		return false
	}
	return ok
}

// Forget drops every cached answer.
func (g *SubscriptionGate) Forget() {
	g.cache.Clear()
}

func (g *SubscriptionGate) Sweep() int {
	return g.cache.Sweep()
}
