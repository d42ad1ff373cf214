package telegram

import (
	"testing"

	"github.com/adamspd/DesignQuizBot/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestMessageFromUpdate(t *testing.T) {
	upd := tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 5,
		From:      &tgbotapi.User{ID: 42, UserName: "ann", FirstName: "Ann"},
		Chat:      &tgbotapi.Chat{ID: 42, Type: "private"},
		Text:      "/today",
	}}

	m, ok := messageFromUpdate(upd)
	if !ok {
		t.Fatalf("expected a message")
	}
	if m.ChatID != 42 || m.UserID != 42 || m.MessageID != 5 || m.Text != "/today" || !m.Private {
		t.Fatalf("unexpected message %+v", m)
	}

	upd.Message.Chat.Type = "supergroup"
	if m, _ := messageFromUpdate(upd); m.Private {
		t.Fatalf("group message marked private")
	}

	if _, ok := messageFromUpdate(tgbotapi.Update{Message: &tgbotapi.Message{Text: "x"}}); ok {
		t.Fatalf("message without sender should be ignored")
	}
}

func TestCallbackFromUpdate(t *testing.T) {
	upd := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{MessageID: 9, Chat: &tgbotapi.Chat{ID: 70}},
		Data:    "answer_3_b",
	}}

	cb, ok := callbackFromUpdate(upd)
	if !ok || cb.ChatID != 70 || cb.MessageID != 9 || cb.UserID != 7 || cb.Data != "answer_3_b" {
		t.Fatalf("unexpected callback %+v", cb)
	}

	upd.CallbackQuery.Message = nil
	cb, _ = callbackFromUpdate(upd)
	if cb.ChatID != 7 {
		t.Fatalf("callback without message should fall back to the user chat, got %d", cb.ChatID)
	}
}

func TestInlineMarkup(t *testing.T) {
	if inlineMarkup(nil) != nil {
		t.Fatalf("empty keyboard should produce no markup")
	}

	markup := inlineMarkup(models.Keyboard{
		{{Text: "a", Data: "answer_1_a"}, {Text: "b", Data: "answer_1_b"}},
		{{Text: "Channel", URL: "https://t.me/x"}},
	})
	if len(markup.InlineKeyboard) != 2 || len(markup.InlineKeyboard[0]) != 2 {
		t.Fatalf("unexpected layout %+v", markup.InlineKeyboard)
	}
	if d := markup.InlineKeyboard[0][1].CallbackData; d == nil || *d != "answer_1_b" {
		t.Fatalf("callback data not carried")
	}
	if u := markup.InlineKeyboard[1][0].URL; u == nil || *u != "https://t.me/x" {
		t.Fatalf("url not carried")
	}
}

func TestChatWithUser(t *testing.T) {
	if c := chatWithUser("-1001234", 5); c.ChatID != -1001234 || c.SuperGroupUsername != "" {
		t.Fatalf("numeric id: %+v", c)
	}
	if c := chatWithUser("@design", 5); c.SuperGroupUsername != "@design" || c.UserID != 5 {
		t.Fatalf("username: %+v", c)
	}
}

func TestIsMemberStatus(t *testing.T) {
	tests := map[string]bool{
		"member":        true,
		"administrator": true,
		"creator":       true,
		"left":          false,
		"kicked":        false,
		"restricted":    false,
	}
	for status, want := range tests {
		if got := isMemberStatus(status); got != want {
			t.Fatalf("isMemberStatus(%q) = %t", status, got)
		}
	}
}
