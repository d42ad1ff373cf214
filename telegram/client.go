// Package telegram adapts the Telegram Bot API to the bot package's
// messaging contract.
package telegram

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/adamspd/DesignQuizBot/bot"
	"github.com/adamspd/DesignQuizBot/models"
	"github.com/adamspd/DesignQuizBot/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxCaption is the longest photo caption the API accepts.
const maxCaption = 1024

// Handler receives converted updates.
type Handler interface {
	HandleMessage(ctx context.Context, m bot.Message)
	HandleCallback(ctx context.Context, cb bot.Callback)
}

type Client struct {
	api *tgbotapi.BotAPI
	wg  sync.WaitGroup
}

func New(token string, debug bool) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	api.Debug = debug
	utils.LogStartup("Authorized on account @%s", api.Self.UserName)
	return &Client{api: api}, nil
}

func (c *Client) Username() string {
	return c.api.Self.UserName
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string, kb models.Keyboard) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if markup := inlineMarkup(kb); markup != nil {
		msg.ReplyMarkup = *markup
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// SendQuestion sends the question as a photo when its image exists and as
// plain text otherwise. Text too long for a caption follows the photo.
func (c *Client) SendQuestion(ctx context.Context, chatID int64, view models.QuestionView) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	kb := models.Keyboard{view.Options}
	text := view.Text()

	if view.MediaPath == "" {
		return c.SendText(ctx, chatID, text, kb)
	}
	if _, err := os.Stat(view.MediaPath); err != nil {
		utils.LogWarn("Image %s for question %d unavailable: %v", view.MediaPath, view.QuestionID, err)
		return c.SendText(ctx, chatID, text, kb)
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(view.MediaPath))
	if utf8.RuneCountInString(text) > maxCaption {
		if _, err := c.api.Send(photo); err != nil {
			return 0, fmt.Errorf("send photo to %d: %w", chatID, err)
		}
		return c.SendText(ctx, chatID, text, kb)
	}

	photo.Caption = text
	if markup := inlineMarkup(kb); markup != nil {
		photo.ReplyMarkup = *markup
	}
	sent, err := c.api.Send(photo)
	if err != nil {
		utils.LogError("Photo for question %d failed, falling back to text: %v", view.QuestionID, err)
		return c.SendText(ctx, chatID, text, kb)
	}
	return sent.MessageID, nil
}

// EditText replaces the text of a message. Photo messages have their caption
// replaced instead.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		if _, capErr := c.api.Request(tgbotapi.NewEditMessageCaption(chatID, messageID, text)); capErr != nil {
			return fmt.Errorf("edit message %d/%d: %w", chatID, messageID, err)
		}
	}
	return nil
}

func (c *Client) ClearKeyboard(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	empty := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	if _, err := c.api.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, empty)); err != nil {
		return fmt.Errorf("clear keyboard %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

func (c *Client) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	id, err := c.api.CopyMessage(tgbotapi.NewCopyMessage(toChatID, fromChatID, messageID))
	if err != nil {
		return 0, fmt.Errorf("copy message to %d: %w", toChatID, err)
	}
	return id.MessageID, nil
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	if _, err := c.api.Request(cb); err != nil {
		return fmt.Errorf("answer callback %s: %w", callbackID, err)
	}
	return nil
}

// IsChannelMember reports whether userID is a member, administrator or
// creator of channelID, given as "@name" or a numeric chat id.
func (c *Client) IsChannelMember(ctx context.Context, channelID string, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: chatWithUser(channelID, userID),
	})
	if err != nil {
		return false, fmt.Errorf("get chat member %d in %s: %w", userID, channelID, err)
	}
	return isMemberStatus(member.Status), nil
}

// Run polls for updates until ctx is cancelled, handling each update in its
// own goroutine. It returns once in-flight handlers have finished.
func (c *Client) Run(ctx context.Context, h Handler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.api.GetUpdatesChan(u)
	utils.LogStartup("Polling for updates...")

	defer func() {
		c.api.StopReceivingUpdates()
		c.wg.Wait()
		utils.LogShutdown("Update polling stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			c.wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer c.wg.Done()
				dispatch(ctx, h, upd)
			}(upd)
		}
	}
}

func dispatch(ctx context.Context, h Handler, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			utils.LogError("Panic while handling update %d: %v", upd.UpdateID, r)
		}
	}()

	if m, ok := messageFromUpdate(upd); ok {
		h.HandleMessage(ctx, m)
		return
	}
	if cb, ok := callbackFromUpdate(upd); ok {
		h.HandleCallback(ctx, cb)
	}
}

func messageFromUpdate(upd tgbotapi.Update) (bot.Message, bool) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return bot.Message{}, false
	}
	return bot.Message{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		UserID:    msg.From.ID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		Text:      msg.Text,
		Private:   msg.Chat.IsPrivate(),
	}, true
}

func callbackFromUpdate(upd tgbotapi.Update) (bot.Callback, bool) {
	q := upd.CallbackQuery
	if q == nil || q.From == nil {
		return bot.Callback{}, false
	}
	cb := bot.Callback{
		ID:       q.ID,
		UserID:   q.From.ID,
		Username: q.From.UserName,
		Data:     q.Data,
	}
	if q.Message != nil && q.Message.Chat != nil {
		cb.ChatID = q.Message.Chat.ID
		cb.MessageID = q.Message.MessageID
	} else {
		cb.ChatID = q.From.ID
	}
	return cb, true
}

func inlineMarkup(kb models.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range kb {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		if len(buttons) > 0 {
			rows = append(rows, buttons)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func chatWithUser(channelID string, userID int64) tgbotapi.ChatConfigWithUser {
	if id, err := strconv.ParseInt(channelID, 10, 64); err == nil {
		return tgbotapi.ChatConfigWithUser{ChatID: id, UserID: userID}
	}
	return tgbotapi.ChatConfigWithUser{SuperGroupUsername: channelID, UserID: userID}
}

func isMemberStatus(status string) bool {
	switch status {
	case "member", "administrator", "creator":
		return true
	}
	return false
}
