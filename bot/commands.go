package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/adamspd/DesignQuizBot/models"
	"github.com/adamspd/DesignQuizBot/quiz"
	"github.com/adamspd/DesignQuizBot/utils"
)

func (b *Bot) handleStart(ctx context.Context, m Message) {
	sess := b.sessions.Get(m.UserID)

	username := m.Username
	if username == "" {
		username = m.FirstName
	}
	if _, err := b.engine.EnsureUser(ctx, m.UserID, username, sess.Role); err != nil {
		utils.LogError("Registering user %d failed: %v", m.UserID, err)
		b.send(ctx, m.ChatID, textGenericError, nil)
		return
	}

	if b.gate != nil && !b.gate.IsSubscribed(ctx, m.UserID, false) {
		greeting := fmt.Sprintf("🎨 Hi, %s!\n\n", firstNameOr(m.FirstName))
		b.send(ctx, m.ChatID, greeting+textSubscribeRequired, b.subscribeKeyboard())
		return
	}

	b.send(ctx, m.ChatID, welcomeText(m.FirstName, b.settings.DailyQuota, sess.IsAdmin()), nil)
}

func (b *Bot) handleStats(ctx context.Context, m Message) {
	if !b.requireSubscription(ctx, m) {
		return
	}
	b.deleteNow(ctx, m.ChatID, m.MessageID)

	text := textStatsUnavailable
	st, err := b.engine.Stats(ctx, m.UserID)
	switch {
	case err == nil:
		text = statsText(st, b.settings.DailyQuota)
	case errors.Is(err, quiz.ErrUnknownUser):
	default:
		utils.LogError("Stats for %d failed: %v", m.UserID, err)
	}

	ttl := longLived
	if sess, ok := b.sessions.Peek(m.UserID); ok && sess.Active {
		ttl = shortLived
	}
	b.sendTransient(ctx, m.ChatID, text, ttl)
}

func (b *Bot) handleResetPrompt(ctx context.Context, m Message) {
	if !b.requireSubscription(ctx, m) {
		return
	}
	b.deleteNow(ctx, m.ChatID, m.MessageID)

	kb := models.Keyboard{
		{{Text: "✅ Confirm", Data: fmt.Sprintf("%sconfirm_%d", callbackResetPrefix, m.UserID)}},
		{{Text: "❌ Cancel", Data: fmt.Sprintf("%scancel_%d", callbackResetPrefix, m.UserID)}},
	}
	id := b.send(ctx, m.ChatID, textResetPrompt, kb)
	b.sessions.Update(m.UserID, func(s *models.Session) { s.ResetPromptID = id })
}

func (b *Bot) handleResetDecision(ctx context.Context, cb Callback) {
	action, target, err := parseResetData(cb.Data)
	if err != nil {
		utils.LogError("Bad reset callback %q: %v", cb.Data, err)
		b.answerCallback(ctx, cb.ID, "", false)
		return
	}
	if cb.UserID != target {
		b.answerCallback(ctx, cb.ID, textResetNotYours, true)
		return
	}
	b.answerCallback(ctx, cb.ID, "", false)

	var promptID int
	b.sessions.Update(cb.UserID, func(s *models.Session) {
		promptID = s.ResetPromptID
		s.ResetPromptID = 0
	})

	switch action {
	case "confirm":
		if err := b.engine.Reset(ctx, cb.UserID); err != nil {
			utils.LogError("Reset for %d failed: %v", cb.UserID, err)
			b.sendTransient(ctx, cb.ChatID, textGenericError, resetLived)
			break
		}
		b.sessions.EndRun(cb.UserID)
		b.sendTransient(ctx, cb.ChatID, textResetDone, resetLived)
	case "cancel":
		b.sendTransient(ctx, cb.ChatID, textResetCancelled, resetLived)
	}

	if promptID != 0 && promptID != cb.MessageID {
		b.deleteNow(ctx, cb.ChatID, promptID)
	}
	b.deleteNow(ctx, cb.ChatID, cb.MessageID)
}

// parseResetData splits "reset_<action>_<user id>".
func parseResetData(data string) (action string, userID int64, err error) {
	parts := strings.Split(data, "_")
	if len(parts) != 3 || parts[0]+"_" != callbackResetPrefix {
		return "", 0, fmt.Errorf("expected reset_<action>_<id>")
	}
	if parts[1] != "confirm" && parts[1] != "cancel" {
		return "", 0, fmt.Errorf("unknown action %q", parts[1])
	}
	userID, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("user id: %w", err)
	}
	return parts[1], userID, nil
}

func (b *Bot) handleCheckSubscription(ctx context.Context, cb Callback) {
	if b.gate != nil && !b.gate.IsSubscribed(ctx, cb.UserID, true) {
		b.answerCallback(ctx, cb.ID, textNotSubscribedYet, true)
		return
	}
	b.answerCallback(ctx, cb.ID, "", false)
	b.deleteNow(ctx, cb.ChatID, cb.MessageID)
	b.send(ctx, cb.ChatID, textSubscribeThanks, nil)
}

func firstNameOr(name string) string {
	if name == "" {
		return "friend"
	}
	return name
}
