package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adamspd/DesignQuizBot/auth"
	"github.com/adamspd/DesignQuizBot/db"
	"github.com/adamspd/DesignQuizBot/models"
	"github.com/adamspd/DesignQuizBot/quiz"
)

type sent struct {
	ChatID   int64
	ID       int
	Text     string
	Keyboard models.Keyboard
	View     *models.QuestionView
}

type fakeMessenger struct {
	mu        sync.Mutex
	nextID    int
	sent      []sent
	deleted   []int
	edited    map[int]string
	cleared   []int
	copies    []int64
	callbacks []string
	failCopy  map[int64]bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{nextID: 100, edited: map[int]string{}, failCopy: map[int64]bool{}}
}

func (f *fakeMessenger) SendText(ctx context.Context, chatID int64, text string, kb models.Keyboard) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, sent{ChatID: chatID, ID: f.nextID, Text: text, Keyboard: kb})
	return f.nextID, nil
}

func (f *fakeMessenger) SendQuestion(ctx context.Context, chatID int64, view models.QuestionView) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	v := view
	f.sent = append(f.sent, sent{ChatID: chatID, ID: f.nextID, Text: view.Text(), View: &v})
	return f.nextID, nil
}

func (f *fakeMessenger) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited[messageID] = text
	return nil
}

func (f *fakeMessenger) ClearKeyboard(ctx context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, messageID)
	return nil
}

func (f *fakeMessenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeMessenger) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCopy[toChatID] {
		return 0, errors.New("blocked by user")
	}
	f.copies = append(f.copies, toChatID)
	return 1, nil
}

func (f *fakeMessenger) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, text)
	return nil
}

func (f *fakeMessenger) questions() []models.QuestionView {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.QuestionView
	for _, s := range f.sent {
		if s.View != nil {
			out = append(out, *s.View)
		}
	}
	return out
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if s.View == nil {
			out = append(out, s.Text)
		}
	}
	return out
}

func (f *fakeMessenger) sawText(substr string) bool {
	for _, t := range f.texts() {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}

type inlineDispatcher struct {
	msg *fakeMessenger
}

func (d inlineDispatcher) Broadcast(ctx context.Context, req BroadcastRequest) (BroadcastReport, error) {
	r := BroadcastReport{BatchID: req.BatchID, Total: len(req.Recipients)}
	for _, to := range req.Recipients {
		if _, err := d.msg.CopyMessage(ctx, to, req.FromChatID, req.MessageID); err != nil {
			r.Failed++
			continue
		}
		r.Delivered++
	}
	return r, nil
}

type memberChecker struct {
	members map[int64]bool
}

func (c *memberChecker) IsChannelMember(ctx context.Context, channelID string, userID int64) (bool, error) {
	return c.members[userID], nil
}

type harness struct {
	bot      *Bot
	msg      *fakeMessenger
	db       *db.DB
	engine   *quiz.Engine
	sessions *auth.SessionStore
	checker  *memberChecker
}

const adminID = int64(1)

func newHarness(t *testing.T, pool map[models.Topic]int) *harness {
	t.Helper()
	ctx := context.Background()

	database, err := db.InitDB(filepath.Join(t.TempDir(), "quiz.db"))
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	var qs []models.Question
	for _, topic := range quiz.Topics() {
		for i := 0; i < pool[topic]; i++ {
			qs = append(qs, models.Question{
				Topic: topic, Body: "Question", ButtonCount: 2, CorrectOption: "a", Explanation: "Because.",
			})
		}
	}
	if err := database.InTx(ctx, func(q db.Querier) error {
		_, err := q.ReplaceQuestions(ctx, qs)
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	engine := quiz.NewEngine(database, quiz.Options{DailyQuota: 5, Location: time.UTC, CacheTTL: time.Minute})
	roles := auth.NewRoleResolver([]int64{adminID})
	sessions := auth.NewSessionStore(roles, time.Hour)
	checker := &memberChecker{members: map[int64]bool{}}
	gate := auth.NewSubscriptionGate("@channel", checker, time.Minute)
	msg := newFakeMessenger()

	b := New(ctx, msg, engine, sessions, gate, inlineDispatcher{msg: msg}, Settings{
		ChannelURL:        "https://t.me/channel",
		DailyQuota:        5,
		NextQuestionDelay: 10 * time.Second,
	})
	b.schedule = func(d time.Duration, fn func(ctx context.Context)) { fn(ctx) }

	return &harness{bot: b, msg: msg, db: database, engine: engine, sessions: sessions, checker: checker}
}

func (h *harness) subscribe(ids ...int64) {
	for _, id := range ids {
		h.checker.members[id] = true
	}
}

func (h *harness) message(userID int64, text string) {
	h.bot.HandleMessage(context.Background(), Message{
		ChatID: userID, MessageID: 1, UserID: userID, FirstName: "Ann", Text: text, Private: true,
	})
}

func (h *harness) press(userID int64, data string) {
	h.bot.HandleCallback(context.Background(), Callback{
		ID: "cb", ChatID: userID, MessageID: 2, UserID: userID, Data: data,
	})
}

func TestStartAsksForSubscription(t *testing.T) {
	h := newHarness(t, map[models.Topic]int{models.TopicTypography: 1})

	h.message(5, "/start")
	texts := h.msg.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "subscribe") {
		t.Fatalf("expected subscription prompt, got %v", texts)
	}
	if kb := h.msg.sent[0].Keyboard; len(kb) != 2 || kb[0][0].URL == "" || kb[1][0].Data != "check_subscription" {
		t.Fatalf("unexpected keyboard %+v", kb)
	}
	if _, err := h.db.GetUser(context.Background(), 5); err != nil {
		t.Fatalf("user should be registered even before subscribing: %v", err)
	}
}

func TestStartGreetsSubscribedAdmin(t *testing.T) {
	h := newHarness(t, map[models.Topic]int{models.TopicTypography: 1})
	h.subscribe(adminID)

	h.message(adminID, "/start@DesignQuizBot")
	if !h.msg.sawText("/letter") {
		t.Fatalf("admin greeting should list admin commands: %v", h.msg.texts())
	}
	u, _ := h.db.GetUser(context.Background(), adminID)
	if u.Role != models.RoleAdmin {
		t.Fatalf("admin role not stored: %s", u.Role)
	}
}

func TestTodayRunsThroughQuestions(t *testing.T) {
	h := newHarness(t, map[models.Topic]int{models.TopicTypography: 2, models.TopicColoristics: 5})
	h.subscribe(7)
	h.message(7, "/start")

	h.message(7, "/today")
	qs := h.msg.questions()
	if len(qs) != 1 {
		t.Fatalf("expected first question, got %d", len(qs))
	}
	if qs[0].Caption != "// Typography" || len(qs[0].Options) != 2 {
		t.Fatalf("unexpected view %+v", qs[0])
	}

	h.message(7, "/today")
	if !h.msg.sawText("already going through") {
		t.Fatalf("second /today should be refused while a run is active")
	}

	for i := 0; i < 5; i++ {
		qs = h.msg.questions()
		h.press(7, qs[len(qs)-1].Options[0].Data)
	}

	if got := len(h.msg.questions()); got != 5 {
		t.Fatalf("expected 5 questions delivered over the run, got %d", got)
	}
	if !h.msg.sawText("Moving on to the next topic: Coloristics") {
		t.Fatalf("topic advance notice missing: %v", h.msg.texts())
	}
	if !h.msg.sawText("answered all 5 questions") {
		t.Fatalf("end of run message missing: %v", h.msg.texts())
	}
	if s, _ := h.sessions.Peek(7); s.Active {
		t.Fatalf("run should be over")
	}

	st, _ := h.engine.Stats(context.Background(), 7)
	if st.TotalCorrect != 5 || st.AnsweredToday != 5 || st.CurrentTopic != models.TopicColoristics {
		t.Fatalf("unexpected stats %+v", st)
	}

	h.message(7, "/today")
	if !h.msg.sawText("already answered 5 questions today") {
		t.Fatalf("quota message missing")
	}
}

func TestAnswerFeedbackTrimsToExplanation(t *testing.T) {
	h := newHarness(t, map[models.Topic]int{models.TopicTypography: 3})
	h.subscribe(8)
	h.message(8, "/start")
	h.message(8, "/today")

	q := h.msg.questions()[0]
	h.press(8, q.Options[1].Data)

	if !h.msg.sawText("❌ Incorrect\nCorrect answer: a)") {
		t.Fatalf("incorrect feedback missing: %v", h.msg.texts())
	}
	trimmed := false
	for _, text := range h.msg.edited {
		if text == "Because." {
			trimmed = true
		}
	}
	if !trimmed {
		t.Fatalf("feedback was not trimmed to the explanation: %v", h.msg.edited)
	}

	h.press(8, q.Options[0].Data)
	if !h.msg.sawText("already answered this question") {
		t.Fatalf("duplicate answer should be reported")
	}
}

func TestStatsCommand(t *testing.T) {
	h := newHarness(t, map[models.Topic]int{models.TopicTypography: 4})
	h.subscribe(9)

	h.message(9, "/stats")
	if !h.msg.sawText("Stats are not available") {
		t.Fatalf("unregistered user should get the unavailable text")
	}

	h.message(9, "/start")
	h.message(9, "/stats")
	if !h.msg.sawText("Current topic: Typography") || !h.msg.sawText("Questions today: 0/5") {
		t.Fatalf("stats text missing: %v", h.msg.texts())
	}
}

func TestResetFlow(t *testing.T) {
	h := newHarness(t, map[models.Topic]int{models.TopicTypography: 3})
	h.subscribe(10, 11)
	h.message(10, "/start")
	h.message(10, "/today")
	h.press(10, h.msg.questions()[0].Options[0].Data)

	h.message(10, "/reset_progress")
	if !h.msg.sawText("reset all your progress") {
		t.Fatalf("reset prompt missing")
	}

	h.press(11, "reset_confirm_10")
	if h.msg.callbacks[len(h.msg.callbacks)-1] != textResetNotYours {
		t.Fatalf("foreign confirmation should be refused, got %v", h.msg.callbacks)
	}
	if st, _ := h.engine.Stats(context.Background(), 10); st.TotalCorrect != 1 {
		t.Fatalf("foreign confirmation must not reset, stats %+v", st)
	}

	h.press(10, "reset_confirm_10")
	st, _ := h.engine.Stats(context.Background(), 10)
	if st.TotalCorrect != 0 || st.AnsweredToday != 0 {
		t.Fatalf("reset did not clear stats: %+v", st)
	}
	if s, _ := h.sessions.Peek(10); s.Active || s.ResetPromptID != 0 {
		t.Fatalf("reset left session state behind: %+v", s)
	}
}

func TestBroadcastMode(t *testing.T) {
	h := newHarness(t, map[models.Topic]int{models.TopicTypography: 1})
	h.subscribe(adminID, 20, 21)
	for _, id := range []int64{adminID, 20, 21} {
		h.message(id, "/start")
	}
	h.msg.failCopy[21] = true

	h.message(20, "/letter")
	if !h.msg.sawText("do not have permission") {
		t.Fatalf("non-admin must be refused")
	}

	h.message(adminID, "/letter")
	h.message(adminID, "Hello everyone")

	if len(h.msg.copies) != 2 {
		t.Fatalf("expected 2 successful copies, got %v", h.msg.copies)
	}
	found := false
	for _, text := range h.msg.edited {
		if strings.Contains(text, "Delivered: 2") && strings.Contains(text, "Failed: 1") {
			found = true
		}
	}
	if !found {
		t.Fatalf("final report missing: %v", h.msg.edited)
	}

	h.message(adminID, "Second message")
	if len(h.msg.copies) != 2 {
		t.Fatalf("broadcast mode must cover one message only")
	}
}

func TestCheckSubscriptionCallback(t *testing.T) {
	h := newHarness(t, map[models.Topic]int{models.TopicTypography: 1})

	h.press(30, "check_subscription")
	if h.msg.callbacks[0] != textNotSubscribedYet {
		t.Fatalf("expected not-subscribed alert, got %v", h.msg.callbacks)
	}

	h.subscribe(30)
	h.press(30, "check_subscription")
	if !h.msg.sawText("Thanks for subscribing") {
		t.Fatalf("thanks message missing")
	}
}

func TestDeliverDaily(t *testing.T) {
	h := newHarness(t, map[models.Topic]int{models.TopicTypography: 2})
	ctx := context.Background()
	h.subscribe(40)
	h.message(40, "/start")
	h.message(41, "/start")

	ok, err := h.bot.DeliverDaily(ctx, 40)
	if err != nil || !ok {
		t.Fatalf("DeliverDaily(40) = %t, %v", ok, err)
	}
	if len(h.msg.questions()) != 1 {
		t.Fatalf("expected one daily question")
	}

	ok, err = h.bot.DeliverDaily(ctx, 41)
	if err != nil || ok {
		t.Fatalf("unsubscribed user must be skipped, got %t, %v", ok, err)
	}
	if err := h.bot.SendHeartbeat(ctx, adminID); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if !h.msg.sawText("All good") {
		t.Fatalf("heartbeat text missing")
	}
}

func TestCommandParsing(t *testing.T) {
	tests := map[string]string{
		"/start":             "/start",
		"/Stats@QuizBot":     "/stats",
		"  /today  now":      "/today",
		"hello":              "",
		"":                   "",
		"/reset_progress@ab": "/reset_progress",
	}
	for in, want := range tests {
		if got := command(in); got != want {
			t.Fatalf("command(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunContinuesPastQuestionAnsweredElsewhere(t *testing.T) {
	h := newHarness(t, map[models.Topic]int{models.TopicTypography: 4})
	ctx := context.Background()
	h.subscribe(50)
	h.message(50, "/start")
	h.message(50, "/today")

	first := h.msg.questions()[0]
	// Answered through the daily push before the run's button is pressed.
	if _, err := h.engine.SubmitAnswer(ctx, 50, first.QuestionID, "a"); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	h.press(50, first.Options[0].Data)
	if got := len(h.msg.questions()); got != 2 {
		t.Fatalf("run should move on to the next question, %d sent", got)
	}
	if !h.msg.sawText("already answered this question") {
		t.Fatalf("duplicate notice missing")
	}

	h.press(50, quiz.AnswerData(999999, "a"))
	if got := len(h.msg.questions()); got != 3 {
		t.Fatalf("missing question should not stall the run, %d sent", got)
	}
	if s, _ := h.sessions.Peek(50); !s.Active {
		t.Fatalf("run should still be active")
	}
}

func TestRunEndsOnStorageFailure(t *testing.T) {
	h := newHarness(t, map[models.Topic]int{models.TopicTypography: 3})
	h.subscribe(51)
	h.message(51, "/start")
	h.message(51, "/today")
	q := h.msg.questions()[0]

	_ = h.db.Close()
	h.press(51, q.Options[0].Data)

	if s, _ := h.sessions.Peek(51); s.Active {
		t.Fatalf("failed answer must not leave the run active")
	}
	if !h.msg.sawText("Something went wrong") {
		t.Fatalf("error notice missing: %v", h.msg.texts())
	}
}
