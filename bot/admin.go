package bot

import (
	"context"
	"fmt"

	"github.com/adamspd/DesignQuizBot/models"
	"github.com/adamspd/DesignQuizBot/utils"
	"github.com/google/uuid"
)

func (b *Bot) handleLetter(ctx context.Context, m Message) {
	b.deleteNow(ctx, m.ChatID, m.MessageID)

	sess := b.sessions.Get(m.UserID)
	if !sess.IsAdmin() {
		b.sendTransient(ctx, m.ChatID, textNoPermission, longLived)
		return
	}

	b.sessions.Update(m.UserID, func(s *models.Session) { s.Broadcasting = true })
	b.sendTransient(ctx, m.ChatID, textBroadcastOn, longLived)
}

func (b *Bot) handleOut(ctx context.Context, m Message) {
	b.deleteNow(ctx, m.ChatID, m.MessageID)

	sess := b.sessions.Get(m.UserID)
	if !sess.IsAdmin() {
		b.sendTransient(ctx, m.ChatID, textNoPermission, longLived)
		return
	}

	b.sessions.Update(m.UserID, func(s *models.Session) { s.Broadcasting = false })
	b.sendTransient(ctx, m.ChatID, textBroadcastOff, longLived)
}

// handleBroadcastMessage copies m to every registered user when its sender
// is an admin in broadcast mode. Broadcast mode covers exactly one message.
func (b *Bot) handleBroadcastMessage(ctx context.Context, m Message) {
	var armed bool
	b.sessions.Update(m.UserID, func(s *models.Session) {
		armed = s.Broadcasting && s.IsAdmin()
		s.Broadcasting = false
	})
	if !armed {
		return
	}

	users, err := b.engine.ListUsers(ctx)
	if err != nil {
		utils.LogError("Listing users for broadcast failed: %v", err)
		b.send(ctx, m.ChatID, fmt.Sprintf(textBroadcastFailed, err), nil)
		return
	}

	progressID := b.send(ctx, m.ChatID, fmt.Sprintf(textBroadcastStarting, len(users)), nil)
	req := BroadcastRequest{
		BatchID:    uuid.NewString(),
		FromChatID: m.ChatID,
		MessageID:  m.MessageID,
		Recipients: users,
	}
	utils.LogBot("Admin %d started broadcast %s to %d users", m.UserID, req.BatchID, len(users))

	report, err := b.dispatcher.Broadcast(ctx, req)
	text := broadcastReportText(report)
	if err != nil {
		utils.LogError("Broadcast %s failed: %v", req.BatchID, err)
		text = fmt.Sprintf(textBroadcastFailed, err)
	}

	if progressID != 0 {
		if err := b.msg.EditText(ctx, m.ChatID, progressID, text); err == nil {
			return
		}
	}
	b.send(ctx, m.ChatID, text, nil)
}
