package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adamspd/DesignQuizBot/models"
	"github.com/adamspd/DesignQuizBot/quiz"
	"github.com/adamspd/DesignQuizBot/utils"
)

func (b *Bot) handleToday(ctx context.Context, m Message) {
	if !b.requireSubscription(ctx, m) {
		return
	}

	if sess, ok := b.sessions.Peek(m.UserID); ok && sess.Active {
		b.deleteNow(ctx, m.ChatID, m.MessageID)
		b.sendTransient(ctx, m.ChatID, textRunActive, shortLived)
		return
	}

	plan, err := b.engine.StartSession(ctx, m.UserID)
	if err != nil {
		if errors.Is(err, quiz.ErrQuotaExhausted) {
			b.deleteNow(ctx, m.ChatID, m.MessageID)
			b.sendTransient(ctx, m.ChatID, fmt.Sprintf(textQuotaReached, b.settings.DailyQuota), shortLived)
			return
		}
		b.reportPlanError(ctx, m.ChatID, m.UserID, err)
		return
	}

	b.announceAdvances(ctx, m.ChatID, plan.Advanced)
	if !b.sessions.StartRun(m.UserID, plan.QuestionIDs) {
		b.sendTransient(ctx, m.ChatID, textRunActive, shortLived)
		return
	}
	utils.LogBot("User %d started a run of %d questions in %s", m.UserID, len(plan.QuestionIDs), plan.Topic)
	b.sendNext(ctx, m.UserID, m.ChatID)
}

// sendNext delivers the next queued question of an active run. The quota is
// checked before every question so a run ends cleanly at the limit.
func (b *Bot) sendNext(ctx context.Context, userID, chatID int64) {
	remaining, err := b.engine.RemainingToday(ctx, userID)
	if err != nil {
		utils.LogError("Quota check for %d failed: %v", userID, err)
		b.sessions.EndRun(userID)
		b.send(ctx, chatID, textGenericError, nil)
		return
	}
	if remaining <= 0 {
		b.endRun(ctx, userID, chatID)
		return
	}

	id, ok := b.sessions.PopQuestion(userID)
	if !ok {
		plan, err := b.engine.StartSession(ctx, userID)
		if err != nil {
			if errors.Is(err, quiz.ErrQuotaExhausted) || errors.Is(err, quiz.ErrTopicExhausted) {
				b.endRun(ctx, userID, chatID)
				return
			}
			b.sessions.EndRun(userID)
			b.reportPlanError(ctx, chatID, userID, err)
			return
		}
		b.announceAdvances(ctx, chatID, plan.Advanced)
		id = plan.QuestionIDs[0]
		rest := plan.QuestionIDs[1:]
		b.sessions.Update(userID, func(s *models.Session) { s.Queue = append([]int(nil), rest...) })
	}

	if err := b.sendQuestion(ctx, chatID, id); err != nil {
		utils.LogError("Sending question %d to %d failed: %v", id, userID, err)
		b.sessions.EndRun(userID)
		b.send(ctx, chatID, textQuestionMissing, nil)
	}
}

func (b *Bot) sendQuestion(ctx context.Context, chatID int64, questionID int) error {
	q, err := b.engine.Question(ctx, questionID)
	if err != nil {
		return err
	}
	_, err = b.msg.SendQuestion(ctx, chatID, quiz.RenderQuestion(q))
	return err
}

func (b *Bot) endRun(ctx context.Context, userID, chatID int64) {
	b.sessions.EndRun(userID)
	b.sendTransient(ctx, chatID, fmt.Sprintf(textSessionDone, b.settings.DailyQuota), shortLived)
}

func (b *Bot) announceAdvances(ctx context.Context, chatID int64, topics []models.Topic) {
	for _, t := range topics {
		b.send(ctx, chatID, fmt.Sprintf(textTopicAdvanced, quiz.DisplayName(t)), nil)
	}
}

func (b *Bot) reportPlanError(ctx context.Context, chatID, userID int64, err error) {
	switch {
	case errors.Is(err, quiz.ErrAllTopicsComplete):
		b.send(ctx, chatID, textAllComplete, nil)
	case errors.Is(err, quiz.ErrNoQuestions):
		b.send(ctx, chatID, textNoQuestions, nil)
	case errors.Is(err, quiz.ErrTopicExhausted):
		b.send(ctx, chatID, textNothingNew, nil)
	case errors.Is(err, quiz.ErrUnknownUser):
		b.send(ctx, chatID, textStartFirst, nil)
	default:
		utils.LogError("Planning questions for %d failed: %v", userID, err)
		b.send(ctx, chatID, textGenericError, nil)
	}
}

func (b *Bot) handleAnswer(ctx context.Context, cb Callback) {
	b.answerCallback(ctx, cb.ID, "", false)

	questionID, letter, err := quiz.ParseAnswerData(cb.Data)
	if err != nil {
		utils.LogError("Bad answer callback from %d: %v", cb.UserID, err)
		return
	}

	res, err := b.engine.SubmitAnswer(ctx, cb.UserID, questionID, letter)
	if err != nil {
		switch {
		case errors.Is(err, quiz.ErrQuotaExhausted):
			b.endRun(ctx, cb.UserID, cb.ChatID)
		case errors.Is(err, quiz.ErrAlreadyAnswered):
			b.clearKeyboard(ctx, cb.ChatID, cb.MessageID)
			b.sendTransient(ctx, cb.ChatID, textAlreadyAnswered, shortLived)
			b.continueRun(ctx, cb.UserID, cb.ChatID)
		case errors.Is(err, quiz.ErrQuestionNotFound):
			b.clearKeyboard(ctx, cb.ChatID, cb.MessageID)
			b.sendTransient(ctx, cb.ChatID, textQuestionMissing, shortLived)
			b.continueRun(ctx, cb.UserID, cb.ChatID)
		case errors.Is(err, quiz.ErrUnknownUser):
			b.sessions.EndRun(cb.UserID)
			b.send(ctx, cb.ChatID, textStartFirst, nil)
		default:
			utils.LogError("Answer from %d to %d failed: %v", cb.UserID, questionID, err)
			b.sessions.EndRun(cb.UserID)
			b.sendTransient(ctx, cb.ChatID, textGenericError, shortLived)
		}
		return
	}

	b.clearKeyboard(ctx, cb.ChatID, cb.MessageID)
	resultID := b.send(ctx, cb.ChatID, answerText(res.Correct, res.Question), nil)

	if res.AllComplete {
		b.sessions.EndRun(cb.UserID)
		b.send(ctx, cb.ChatID, textAllComplete, nil)
		return
	}

	sess, _ := b.sessions.Peek(cb.UserID)
	if res.Remaining <= 0 {
		if sess.Active {
			b.endRun(ctx, cb.UserID, cb.ChatID)
		}
		if res.TopicCompleted {
			b.announceAdvances(ctx, cb.ChatID, []models.Topic{res.NextTopic})
		}
		return
	}
	if !sess.Active {
		if res.TopicCompleted {
			b.announceAdvances(ctx, cb.ChatID, []models.Topic{res.NextTopic})
		}
		return
	}

	delay := b.settings.NextQuestionDelay
	timerID := b.send(ctx, cb.ChatID, fmt.Sprintf(textNextQuestionIn, int(delay/time.Second)), nil)
	explanation := res.Question.Explanation

	b.schedule(delay, func(ctx context.Context) {
		b.deleteNow(ctx, cb.ChatID, timerID)
		if resultID != 0 && explanation != "" {
			if err := b.msg.EditText(ctx, cb.ChatID, resultID, explanation); err != nil {
				utils.LogDebug("Trimming answer message failed: %v", err)
			}
		}
		if res.TopicCompleted {
			b.announceAdvances(ctx, cb.ChatID, []models.Topic{res.NextTopic})
		}
		if s, ok := b.sessions.Peek(cb.UserID); ok && s.Active {
			b.sendNext(ctx, cb.UserID, cb.ChatID)
		}
	})
}

// continueRun moves an active run past a question that could not be
// recorded, so the run does not wait on an answer that will never count.
func (b *Bot) continueRun(ctx context.Context, userID, chatID int64) {
	if sess, ok := b.sessions.Peek(userID); ok && sess.Active {
		b.sendNext(ctx, userID, chatID)
	}
}

func (b *Bot) clearKeyboard(ctx context.Context, chatID int64, messageID int) {
	if err := b.msg.ClearKeyboard(ctx, chatID, messageID); err != nil {
		utils.LogDebug("Clearing keyboard on %d/%d failed: %v", chatID, messageID, err)
	}
}
