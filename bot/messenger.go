package bot

import (
	"context"

	"github.com/adamspd/DesignQuizBot/models"
)

// Messenger is the delivery side of the chat platform. Message ids are the
// platform's ids within chatID.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, keyboard models.Keyboard) (int, error)
	SendQuestion(ctx context.Context, chatID int64, view models.QuestionView) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	ClearKeyboard(ctx context.Context, chatID int64, messageID int) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error)
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// Message is an inbound chat message.
type Message struct {
	ChatID    int64
	MessageID int
	UserID    int64
	Username  string
	FirstName string
	Text      string
	Private   bool
}

// Callback is an inbound inline-button press.
type Callback struct {
	ID        string
	ChatID    int64
	MessageID int
	UserID    int64
	Username  string
	Data      string
}

// BroadcastRequest asks for one message to be copied to every recipient.
type BroadcastRequest struct {
	BatchID    string
	FromChatID int64
	MessageID  int
	Recipients []int64
}

// BroadcastReport summarizes a fan-out. When the work is queued only Queued
// is known; inline delivery fills Delivered and Failed.
type BroadcastReport struct {
	BatchID   string
	Total     int
	Queued    int
	Delivered int
	Failed    int
}

// Finished reports whether every recipient has a known outcome.
func (r BroadcastReport) Finished() bool {
	return r.Delivered+r.Failed == r.Total
}

// Dispatcher fans a broadcast out to recipients.
type Dispatcher interface {
	Broadcast(ctx context.Context, req BroadcastRequest) (BroadcastReport, error)
}
