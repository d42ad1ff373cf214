package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/adamspd/DesignQuizBot/quiz"
	"github.com/adamspd/DesignQuizBot/utils"
)

// DeliverDaily sends the scheduled question of the day to one user. It
// reports false when the user was skipped: not subscribed, finished, or
// nothing to send.
func (b *Bot) DeliverDaily(ctx context.Context, userID int64) (bool, error) {
	if b.gate != nil && !b.gate.IsSubscribed(ctx, userID, false) {
		utils.LogDebug("Daily question skipped for %d: not subscribed", userID)
		return false, nil
	}

	plan, err := b.engine.DailyQuestion(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, quiz.ErrAllTopicsComplete),
			errors.Is(err, quiz.ErrNoQuestions),
			errors.Is(err, quiz.ErrTopicExhausted),
			errors.Is(err, quiz.ErrUnknownUser):
			utils.LogDebug("Daily question skipped for %d: %v", userID, err)
			return false, nil
		}
		return false, fmt.Errorf("plan daily question for %d: %w", userID, err)
	}

	b.announceAdvances(ctx, userID, plan.Advanced)
	if err := b.sendQuestion(ctx, userID, plan.QuestionIDs[0]); err != nil {
		return false, fmt.Errorf("send daily question to %d: %w", userID, err)
	}
	return true, nil
}

// CopyBroadcast copies one admin message into a recipient's chat.
func (b *Bot) CopyBroadcast(ctx context.Context, toChatID, fromChatID int64, messageID int) error {
	_, err := b.msg.CopyMessage(ctx, toChatID, fromChatID, messageID)
	return err
}

// SendHeartbeat tells an admin the bot is alive.
func (b *Bot) SendHeartbeat(ctx context.Context, adminID int64) error {
	_, err := b.msg.SendText(ctx, adminID, textHeartbeat, nil)
	return err
}

// ForgetSubscriptions drops cached membership answers before a daily run.
func (b *Bot) ForgetSubscriptions() {
	if b.gate != nil {
		b.gate.Forget()
	}
}
