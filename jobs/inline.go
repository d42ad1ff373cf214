package jobs

import (
	"context"

	"github.com/adamspd/DesignQuizBot/bot"
	"github.com/adamspd/DesignQuizBot/utils"
	"golang.org/x/time/rate"
)

// DefaultSendRate stays under the chat platform's global send limit.
const DefaultSendRate = rate.Limit(25)

// InlineDispatcher delivers broadcasts in-process when no job queue is
// configured. Copies are sent one at a time through a rate limiter.
type InlineDispatcher struct {
	delivery Delivery
	limiter  *rate.Limiter
}

func NewInlineDispatcher(d Delivery, limit rate.Limit) *InlineDispatcher {
	return &InlineDispatcher{delivery: d, limiter: rate.NewLimiter(limit, 1)}
}

func (d *InlineDispatcher) Broadcast(ctx context.Context, req bot.BroadcastRequest) (bot.BroadcastReport, error) {
	report := bot.BroadcastReport{BatchID: req.BatchID, Total: len(req.Recipients)}

	for _, to := range req.Recipients {
		if err := d.limiter.Wait(ctx); err != nil {
			return report, err
		}
		if err := d.delivery.CopyBroadcast(ctx, to, req.FromChatID, req.MessageID); err != nil {
			utils.LogDebug("Broadcast %s to %d failed: %v", req.BatchID, to, err)
			report.Failed++
			continue
		}
		report.Delivered++
	}

	utils.LogJob("Broadcast %s finished: %d delivered, %d failed", req.BatchID, report.Delivered, report.Failed)
	return report, nil
}
