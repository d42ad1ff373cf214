package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/adamspd/DesignQuizBot/auth"
	"github.com/adamspd/DesignQuizBot/models"
	"github.com/adamspd/DesignQuizBot/quiz"
	"github.com/adamspd/DesignQuizBot/utils"
)

const (
	shortLived = 10 * time.Second
	longLived  = 60 * time.Second
	resetLived = 5 * time.Second

	callbackCheckSubscription = "check_subscription"
	callbackResetPrefix       = "reset_"
)

type Settings struct {
	ChannelURL        string
	DailyQuota        int
	NextQuestionDelay time.Duration
}

// Bot turns chat updates into engine calls and engine results into messages.
type Bot struct {
	msg        Messenger
	engine     *quiz.Engine
	sessions   *auth.SessionStore
	gate       *auth.SubscriptionGate
	dispatcher Dispatcher
	settings   Settings

	ctx context.Context
	wg  sync.WaitGroup
	// schedule runs fn after d. Replaced in tests.
	schedule func(d time.Duration, fn func(ctx context.Context))
}

// New creates a bot. Delayed work (message cleanup, the pause before the next
// question) is bound to ctx and dropped when it is cancelled.
func New(ctx context.Context, msg Messenger, engine *quiz.Engine, sessions *auth.SessionStore,
	gate *auth.SubscriptionGate, dispatcher Dispatcher, settings Settings) *Bot {
	if settings.DailyQuota <= 0 {
		settings.DailyQuota = engine.Quota().Limit()
	}
	b := &Bot{
		msg:        msg,
		engine:     engine,
		sessions:   sessions,
		gate:       gate,
		dispatcher: dispatcher,
		settings:   settings,
		ctx:        ctx,
	}
	b.schedule = b.runAfter
	return b
}

// SetDispatcher replaces the broadcast dispatcher.
func (b *Bot) SetDispatcher(d Dispatcher) {
	b.dispatcher = d
}

// Wait blocks until delayed work has finished or been dropped.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// HandleMessage routes a text message.
func (b *Bot) HandleMessage(ctx context.Context, m Message) {
	cmd := command(m.Text)
	utils.LogBot("Message from %d: command=%q", m.UserID, cmd)

	switch cmd {
	case "/start":
		b.handleStart(ctx, m)
	case "/stats":
		b.handleStats(ctx, m)
	case "/today":
		b.handleToday(ctx, m)
	case "/reset_progress":
		b.handleResetPrompt(ctx, m)
	case "/letter":
		b.handleLetter(ctx, m)
	case "/out":
		b.handleOut(ctx, m)
	default:
		if m.Private {
			b.handleBroadcastMessage(ctx, m)
		}
	}
}

// HandleCallback routes an inline-button press.
func (b *Bot) HandleCallback(ctx context.Context, cb Callback) {
	utils.LogBot("Callback from %d: %s", cb.UserID, cb.Data)

	switch {
	case quiz.IsAnswerData(cb.Data):
		b.handleAnswer(ctx, cb)
	case cb.Data == callbackCheckSubscription:
		b.handleCheckSubscription(ctx, cb)
	case strings.HasPrefix(cb.Data, callbackResetPrefix):
		b.handleResetDecision(ctx, cb)
	default:
		b.answerCallback(ctx, cb.ID, "", false)
	}
}

// command extracts "/name" from text, dropping any "@botname" suffix.
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(name)
}

func (b *Bot) subscribeKeyboard() models.Keyboard {
	var kb models.Keyboard
	if b.settings.ChannelURL != "" {
		kb = append(kb, []models.Button{{Text: "📢 Subscribe to the channel", URL: b.settings.ChannelURL}})
	}
	kb = append(kb, []models.Button{{Text: "✅ Check subscription", Data: callbackCheckSubscription}})
	return kb
}

// requireSubscription asks the user to subscribe and returns false when the
// gate refuses them.
func (b *Bot) requireSubscription(ctx context.Context, m Message) bool {
	if b.gate == nil || b.gate.IsSubscribed(ctx, m.UserID, false) {
		return true
	}
	b.send(ctx, m.ChatID, textSubscribeRequired, b.subscribeKeyboard())
	return false
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, kb models.Keyboard) int {
	id, err := b.msg.SendText(ctx, chatID, text, kb)
	if err != nil {
		utils.LogError("Send to %d failed: %v", chatID, err)
		return 0
	}
	return id
}

// sendTransient sends text and deletes it after ttl.
func (b *Bot) sendTransient(ctx context.Context, chatID int64, text string, ttl time.Duration) {
	if id := b.send(ctx, chatID, text, nil); id != 0 {
		b.deleteAfter(chatID, id, ttl)
	}
}

func (b *Bot) deleteNow(ctx context.Context, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if err := b.msg.Delete(ctx, chatID, messageID); err != nil {
		utils.LogDebug("Delete %d/%d failed: %v", chatID, messageID, err)
	}
}

func (b *Bot) deleteAfter(chatID int64, messageID int, d time.Duration) {
	b.schedule(d, func(ctx context.Context) {
		b.deleteNow(ctx, chatID, messageID)
	})
}

func (b *Bot) answerCallback(ctx context.Context, id, text string, alert bool) {
	if err := b.msg.AnswerCallback(ctx, id, text, alert); err != nil {
		utils.LogDebug("Answer callback %s failed: %v", id, err)
	}
}

func (b *Bot) runAfter(d time.Duration, fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-b.ctx.Done():
		case <-timer.C:
			fn(b.ctx)
		}
	}()
}
