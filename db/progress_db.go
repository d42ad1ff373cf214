package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/adamspd/DesignQuizBot/models"
	"github.com/adamspd/DesignQuizBot/utils"
)

// RecordAnswer adds (userID, questionID) to the answered ledger. A duplicate
// pair is a no-op; the returned bool reports whether a row was inserted.
func (q *Queries) RecordAnswer(ctx context.Context, userID int64, questionID int) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_answered_questions (user_id, question_id) VALUES (?, ?)
	`, userID, questionID)
	if err != nil {
		utils.LogError("RecordAnswer(%d, %d) failed: %v", userID, questionID, err)
		return false, err
	}

	n, _ := res.RowsAffected()
	utils.LogDB("RecordAnswer(%d, %d): inserted=%t", userID, questionID, n > 0)
	return n > 0, nil
}

func (q *Queries) HasAnswered(ctx context.Context, userID int64, questionID int) (bool, error) {
	var one int
	err := q.q.QueryRowContext(ctx, `
		SELECT 1 FROM user_answered_questions WHERE user_id = ? AND question_id = ?
	`, userID, questionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountAnswered counts ledger rows for questions that still exist in topic.
func (q *Queries) CountAnswered(ctx context.Context, userID int64, topic models.Topic) (int, error) {
	var count int
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_answered_questions uaq
		JOIN questions q ON uaq.question_id = q.question_id
		WHERE uaq.user_id = ? AND q.category = ?
	`, userID, string(topic)).Scan(&count)
	if err != nil {
		utils.LogError("CountAnswered(%d, %s) failed: %v", userID, topic, err)
		return 0, err
	}
	return count, nil
}

func (q *Queries) GetDaily(ctx context.Context, userID int64, date string) (int, error) {
	var asked int
	err := q.q.QueryRowContext(ctx, `
		SELECT questions_asked FROM daily_progress WHERE user_id = ? AND date = ?
	`, userID, date).Scan(&asked)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		utils.LogError("GetDaily(%d, %s) failed: %v", userID, date, err)
		return 0, err
	}
	return asked, nil
}

// IncrementDaily adds delta to the user's counter for date, creating the row
// when absent, and returns the new value.
func (q *Queries) IncrementDaily(ctx context.Context, userID int64, date string, delta int) (int, error) {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO daily_progress (user_id, date, questions_asked) VALUES (?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET questions_asked = questions_asked + excluded.questions_asked
	`, userID, date, delta)
	if err != nil {
		utils.LogError("IncrementDaily(%d, %s) failed: %v", userID, date, err)
		return 0, err
	}
	return q.GetDaily(ctx, userID, date)
}

// DeleteDailyExcept removes every daily_progress row whose date is not keep.
func (q *Queries) DeleteDailyExcept(ctx context.Context, keep string) (int64, error) {
	start := time.Now()
	res, err := q.q.ExecContext(ctx, "DELETE FROM daily_progress WHERE date != ?", keep)
	if err != nil {
		utils.LogError("DeleteDailyExcept(%s) failed: %v", keep, err)
		return 0, err
	}
	n, _ := res.RowsAffected()
	utils.LogDB("Daily rollover kept %s, deleted %d rows in %v", keep, n, time.Since(start))
	return n, nil
}
