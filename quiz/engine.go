package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adamspd/DesignQuizBot/cache"
	"github.com/adamspd/DesignQuizBot/db"
	"github.com/adamspd/DesignQuizBot/models"
	"github.com/adamspd/DesignQuizBot/utils"
)

// Store is the persistence the engine needs: direct queries plus
// transactions. *db.DB satisfies it.
type Store interface {
	db.Querier
	InTx(ctx context.Context, fn func(q db.Querier) error) error
}

type Options struct {
	DailyQuota int
	Location   *time.Location
	CacheTTL   time.Duration
	// Now overrides the clock for the quota day and both caches.
	Now func() time.Time
}

type statsKey struct {
	UserID int64
	Day    string
}

// Engine owns the per-user progress state machine. Every mutation runs in a
// single transaction under the user's lock and evicts the user's cached stats
// after commit.
type Engine struct {
	store  Store
	quota  *QuotaGate
	stats  *cache.Cache[statsKey, models.Stats]
	counts *cache.Cache[models.Topic, int]
	locks  *userLocks

	rollMu     sync.Mutex
	rolledDate string
}

func NewEngine(store Store, opts Options) *Engine {
	if opts.DailyQuota <= 0 {
		opts.DailyQuota = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		store:  store,
		quota:  NewQuotaGate(opts.DailyQuota, opts.Location, now),
		stats:  cache.New[statsKey, models.Stats]("stats", opts.CacheTTL).WithClock(now),
		counts: cache.New[models.Topic, int]("topic-counts", opts.CacheTTL).WithClock(now),
		locks:  newUserLocks(),
	}
}

func (e *Engine) Quota() *QuotaGate {
	return e.quota
}

// SessionPlan is the outcome of starting a session or picking the daily question.
type SessionPlan struct {
	Topic       models.Topic
	QuestionIDs []int
	Remaining   int
	// Advanced lists topics the user moved into while the plan was built.
	Advanced []models.Topic
}

// AnswerResult describes a recorded answer.
type AnswerResult struct {
	Question       *models.Question
	Correct        bool
	Remaining      int
	TopicCompleted bool
	CompletedTopic models.Topic
	NextTopic      models.Topic
	AllComplete    bool
}

// EnsureUser registers the user on first contact and refreshes username and
// role afterwards.
func (e *Engine) EnsureUser(ctx context.Context, userID int64, username string, role models.Role) (bool, error) {
	created, err := e.store.EnsureUser(ctx, userID, username, role)
	if err != nil {
		return false, fmt.Errorf("ensure user %d: %w", userID, err)
	}
	e.invalidateUser(userID)
	if created {
		utils.LogInfo("New user %d (%s) registered as %s", userID, username, role)
	}
	return created, nil
}

// Stats returns the user's aggregate progress for today, read through the
// stats cache. Progress is clamped to the topic's question count.
func (e *Engine) Stats(ctx context.Context, userID int64) (models.Stats, error) {
	key := statsKey{UserID: userID, Day: e.quota.Today()}
	st, err := e.stats.Get(ctx, key, func(ctx context.Context) (models.Stats, error) {
		return e.loadStats(ctx, userID, key.Day)
	})
	if err != nil {
		return models.Stats{}, err
	}
	st.CompletedTopics = append([]models.Topic(nil), st.CompletedTopics...)
	return st, nil
}

func (e *Engine) loadStats(ctx context.Context, userID int64, day string) (models.Stats, error) {
	start := time.Now()

	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.Stats{}, fmt.Errorf("stats for %d: %w", userID, ErrUnknownUser)
		}
		return models.Stats{}, fmt.Errorf("stats for %d: %w", userID, err)
	}
	asked, err := e.store.GetDaily(ctx, userID, day)
	if err != nil {
		return models.Stats{}, fmt.Errorf("daily progress for %d: %w", userID, err)
	}
	count, err := e.TopicQuestionCount(ctx, u.CurrentTopic)
	if err != nil {
		return models.Stats{}, err
	}

	progress := u.CurrentTopicProgress
	if progress > count {
		progress = count
	}
	if progress < 0 {
		progress = 0
	}

	utils.LogDebug("Loaded stats for user %d in %v", userID, time.Since(start))
	return models.Stats{
		UserID:               u.UserID,
		TotalCorrect:         u.TotalCorrect,
		CurrentTopic:         u.CurrentTopic,
		CurrentTopicProgress: progress,
		CompletedTopics:      u.CompletedTopics,
		Role:                 u.Role,
		AnsweredToday:        asked,
		TopicQuestionCount:   count,
		AllComplete:          allComplete(u),
	}, nil
}

// TopicQuestionCount is the cached size of a topic's question pool.
func (e *Engine) TopicQuestionCount(ctx context.Context, topic models.Topic) (int, error) {
	return e.counts.Get(ctx, topic, func(ctx context.Context) (int, error) {
		n, err := e.store.CountQuestions(ctx, topic)
		if err != nil {
			return 0, fmt.Errorf("count questions in %s: %w", topic, err)
		}
		return n, nil
	})
}

// RemainingToday is the user's remaining answer allowance for today.
func (e *Engine) RemainingToday(ctx context.Context, userID int64) (int, error) {
	if err := e.ensureRolledOver(ctx); err != nil {
		return 0, err
	}
	return e.quota.Remaining(ctx, e.store, userID)
}

// StartSession plans a run of up to the remaining quota of unseen questions
// from the user's current topic, advancing through completed topics first.
func (e *Engine) StartSession(ctx context.Context, userID int64) (*SessionPlan, error) {
	return e.plan(ctx, userID, true)
}

// DailyQuestion picks one unseen question for the scheduled push. It does not
// consult the quota; answering the question does.
func (e *Engine) DailyQuestion(ctx context.Context, userID int64) (*SessionPlan, error) {
	return e.plan(ctx, userID, false)
}

func (e *Engine) plan(ctx context.Context, userID int64, useQuota bool) (*SessionPlan, error) {
	if err := e.ensureRolledOver(ctx); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(userID)
	defer unlock()

	var (
		plan    *SessionPlan
		changed bool
		outcome error
	)
	err := e.store.InTx(ctx, func(q db.Querier) error {
		plan, changed, outcome = nil, false, nil

		remaining, err := e.quota.Remaining(ctx, q, userID)
		if err != nil {
			return err
		}
		limit := 1
		if useQuota {
			if remaining <= 0 {
				return ErrQuotaExhausted
			}
			limit = remaining
		}

		u, err := loadUser(ctx, q, userID)
		if err != nil {
			return err
		}
		if !IsKnownTopic(u.CurrentTopic) {
			utils.LogWarn("User %d has unknown topic %q, restarting at %s", userID, u.CurrentTopic, FirstTopic())
			u.CurrentTopic = FirstTopic()
			u.CurrentTopicProgress = 0
			changed = true
		}

		p := &SessionPlan{Remaining: remaining}
		for attempt := 0; attempt <= len(topicOrder); attempt++ {
			if allComplete(u) {
				outcome = ErrAllTopicsComplete
				break
			}

			topic := u.CurrentTopic
			count, err := q.CountQuestions(ctx, topic)
			if err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("%s: %w", topic, ErrNoQuestions)
			}

			answered, err := q.CountAnswered(ctx, userID, topic)
			if err != nil {
				return err
			}
			if answered < count {
				ids, err := sampleUnseen(ctx, q, userID, topic, limit)
				if err == nil {
					p.Topic = topic
					p.QuestionIDs = ids
					plan = p
					break
				}
				if !errors.Is(err, ErrTopicExhausted) {
					return err
				}
				utils.LogWarn("User %d: %d/%d answered in %s but nothing unseen", userID, answered, count, topic)
			}

			changed = true
			if next, ok := completeTopic(u); ok {
				p.Advanced = append(p.Advanced, next)
			}
		}
		if plan == nil && outcome == nil {
			outcome = ErrTopicExhausted
		}

		if changed {
			return q.SaveUser(ctx, u)
		}
		return nil
	})
	if changed && err == nil {
		e.invalidateUser(userID)
	}
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		return nil, outcome
	}

	utils.LogDebug("Planned %d questions in %s for user %d", len(plan.QuestionIDs), plan.Topic, userID)
	return plan, nil
}

// SubmitAnswer records the user's answer to questionID and applies the
// resulting progress transition. A rejected submission changes nothing.
func (e *Engine) SubmitAnswer(ctx context.Context, userID int64, questionID int, letter string) (*AnswerResult, error) {
	if err := e.ensureRolledOver(ctx); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(userID)
	defer unlock()

	start := time.Now()
	var res *AnswerResult
	err := e.store.InTx(ctx, func(q db.Querier) error {
		remaining, err := e.quota.Remaining(ctx, q, userID)
		if err != nil {
			return err
		}
		if remaining <= 0 {
			return ErrQuotaExhausted
		}

		qu, err := q.GetQuestion(ctx, questionID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("question %d: %w", questionID, ErrQuestionNotFound)
			}
			return err
		}
		if idx := models.OptionIndex(letter); idx < 0 || idx >= qu.ButtonCount {
			return fmt.Errorf("option %q for question %d: %w", letter, questionID, ErrInvalidOption)
		}

		u, err := loadUser(ctx, q, userID)
		if err != nil {
			return err
		}

		inserted, err := q.RecordAnswer(ctx, userID, questionID)
		if err != nil {
			return err
		}
		if !inserted {
			return fmt.Errorf("question %d: %w", questionID, ErrAlreadyAnswered)
		}

		r := &AnswerResult{Question: qu, Correct: letter == qu.CorrectOption}
		if r.Correct {
			u.TotalCorrect++
		}
		u.CurrentTopicProgress++

		if r.Remaining, err = e.quota.RecordAnswer(ctx, q, userID); err != nil {
			return err
		}

		if IsKnownTopic(u.CurrentTopic) && !u.HasCompleted(u.CurrentTopic) {
			count, err := q.CountQuestions(ctx, u.CurrentTopic)
			if err != nil {
				return err
			}
			answered, err := q.CountAnswered(ctx, userID, u.CurrentTopic)
			if err != nil {
				return err
			}
			if count > 0 && answered >= count {
				r.TopicCompleted = true
				r.CompletedTopic = u.CurrentTopic
				if next, ok := completeTopic(u); ok {
					r.NextTopic = next
				} else {
					r.AllComplete = true
				}
			}
		}

		if err := q.SaveUser(ctx, u); err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.invalidateUser(userID)

	utils.LogInfo("User %d answered question %d (%s): correct=%t remaining=%d in %v",
		userID, questionID, res.Question.Topic, res.Correct, res.Remaining, time.Since(start))
	if res.TopicCompleted {
		utils.LogInfo("User %d completed %s, next=%q all=%t", userID, res.CompletedTopic, res.NextTopic, res.AllComplete)
	}
	return res, nil
}

// Question fetches one question for rendering.
func (e *Engine) Question(ctx context.Context, questionID int) (*models.Question, error) {
	qu, err := e.store.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("question %d: %w", questionID, ErrQuestionNotFound)
		}
		return nil, err
	}
	return qu, nil
}

// Reset zeroes the user's progress and drops their ledger and daily rows.
func (e *Engine) Reset(ctx context.Context, userID int64) error {
	unlock := e.locks.Lock(userID)
	defer unlock()

	err := e.store.InTx(ctx, func(q db.Querier) error {
		return q.ResetUser(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("reset %d: %w", userID, ErrUnknownUser)
		}
		return fmt.Errorf("reset %d: %w", userID, err)
	}
	e.invalidateUser(userID)
	utils.LogInfo("Progress reset for user %d", userID)
	return nil
}

// Rollover reclaims daily_progress rows for past dates and drops stats
// cached for other days. It is idempotent.
func (e *Engine) Rollover(ctx context.Context) (int64, error) {
	today := e.quota.Today()
	n, err := e.quota.Rollover(ctx, e.store)
	if err != nil {
		return 0, fmt.Errorf("rollover: %w", err)
	}

	e.rollMu.Lock()
	e.rolledDate = today
	e.rollMu.Unlock()

	e.stats.InvalidateFunc(func(k statsKey) bool { return k.Day != today })
	if n > 0 {
		utils.LogInfo("Rollover to %s removed %d daily rows", today, n)
	}
	return n, nil
}

// ensureRolledOver runs Rollover once per calendar day on the request path.
func (e *Engine) ensureRolledOver(ctx context.Context) error {
	today := e.quota.Today()
	e.rollMu.Lock()
	done := e.rolledDate == today
	e.rollMu.Unlock()
	if done {
		return nil
	}
	_, err := e.Rollover(ctx)
	return err
}

// InvalidateCatalog drops every cached value derived from the question pool.
func (e *Engine) InvalidateCatalog() {
	e.counts.Clear()
	e.stats.Clear()
}

// SweepCaches evicts expired cache entries.
func (e *Engine) SweepCaches() int {
	return e.stats.Sweep() + e.counts.Sweep()
}

// RunCacheSweeper sweeps both caches every interval until ctx is done.
func (e *Engine) RunCacheSweeper(ctx context.Context, every time.Duration) {
	go e.counts.Run(ctx, every)
	e.stats.Run(ctx, every)
}

func (e *Engine) ListUsers(ctx context.Context) ([]int64, error) {
	return e.store.ListUserIDs(ctx)
}

func (e *Engine) invalidateUser(userID int64) {
	e.stats.InvalidateFunc(func(k statsKey) bool { return k.UserID == userID })
	e.stats.Invalidate(statsKey{UserID: userID, Day: e.quota.Today()})
}

func loadUser(ctx context.Context, q db.Querier, userID int64) (*models.UserProgress, error) {
	u, err := q.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("user %d: %w", userID, ErrUnknownUser)
		}
		return nil, err
	}
	return u, nil
}

func sampleUnseen(ctx context.Context, q db.Querier, userID int64, topic models.Topic, n int) ([]int, error) {
	ids, err := q.SampleUnseen(ctx, userID, topic, n)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s: %w", topic, ErrTopicExhausted)
	}
	return ids, nil
}

// completeTopic marks the current topic completed and moves to the next one.
// On the last topic the user stays put and ok is false.
func completeTopic(u *models.UserProgress) (next models.Topic, ok bool) {
	u.MarkCompleted(u.CurrentTopic)
	next, ok = NextTopic(u.CurrentTopic)
	if ok {
		u.CurrentTopic = next
		u.CurrentTopicProgress = 0
	}
	return next, ok
}

func allComplete(u *models.UserProgress) bool {
	if !u.HasCompleted(u.CurrentTopic) {
		return false
	}
	_, hasNext := NextTopic(u.CurrentTopic)
	return !hasNext
}
