package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adamspd/DesignQuizBot/models"
	"github.com/adamspd/DesignQuizBot/utils"
)

func (q *Queries) GetQuestion(ctx context.Context, questionID int) (*models.Question, error) {
	utils.LogDB("Executing query: GetQuestion(%d)", questionID)
	start := time.Now()

	var qu models.Question
	var category string

	err := q.q.QueryRowContext(ctx, `
		SELECT question_id, category, question_text, image_path, buttons_count,
		       correct_option, explanation, source_file, created_at
		FROM questions WHERE question_id = ?
	`, questionID).Scan(&qu.ID, &category, &qu.Body, &qu.ImagePath, &qu.ButtonCount,
		&qu.CorrectOption, &qu.Explanation, &qu.SourceFile, &qu.CreatedAt)

	if err != nil {
		duration := time.Since(start)
		if errors.Is(err, sql.ErrNoRows) {
			utils.LogDB("Question ID %d not found (%v)", questionID, duration)
			return nil, fmt.Errorf("question %d: %w", questionID, ErrNotFound)
		}
		utils.LogError("GetQuestion(%d) failed: %v (%v)", questionID, err, duration)
		return nil, err
	}

	qu.Topic = models.Topic(category)
	return &qu, nil
}

func (q *Queries) CountQuestions(ctx context.Context, topic models.Topic) (int, error) {
	var count int
	err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM questions WHERE category = ?", string(topic)).Scan(&count)
	if err != nil {
		utils.LogError("CountQuestions(%s) failed: %v", topic, err)
		return 0, err
	}
	return count, nil
}

// SampleUnseen picks up to limit random question ids of topic that userID
// has not answered yet.
func (q *Queries) SampleUnseen(ctx context.Context, userID int64, topic models.Topic, limit int) ([]int, error) {
	if limit <= 0 {
		return nil, nil
	}
	start := time.Now()

	rows, err := q.q.QueryContext(ctx, `
		SELECT question_id FROM questions
		WHERE category = ?
		  AND question_id NOT IN (
			SELECT question_id FROM user_answered_questions WHERE user_id = ?
		  )
		ORDER BY RANDOM()
		LIMIT ?
	`, string(topic), userID, limit)
	if err != nil {
		utils.LogError("SampleUnseen(%d, %s) failed: %v", userID, topic, err)
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	utils.LogDB("SampleUnseen(%d, %s, %d): %d ids in %v", userID, topic, limit, len(ids), time.Since(start))
	return ids, nil
}

// ReplaceQuestions deletes the whole pool and inserts questions in order.
// Run it inside InTx so readers never see a half-loaded catalog.
func (q *Queries) ReplaceQuestions(ctx context.Context, questions []models.Question) (int, error) {
	utils.LogImport("Replacing question pool with %d questions", len(questions))
	start := time.Now()

	deleted, err := q.q.ExecContext(ctx, "DELETE FROM questions")
	if err != nil {
		return 0, fmt.Errorf("clear questions: %w", err)
	}
	old, _ := deleted.RowsAffected()
	utils.LogImport("Removed %d old questions", old)

	inserted := 0
	for i, qu := range questions {
		_, err := q.q.ExecContext(ctx, `
			INSERT INTO questions (category, question_text, image_path, buttons_count,
			                       correct_option, explanation, source_file)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, string(qu.Topic), qu.Body, qu.ImagePath, qu.ButtonCount, qu.CorrectOption, qu.Explanation, qu.SourceFile)
		if err != nil {
			return inserted, fmt.Errorf("insert question %d (%s): %w", i+1, qu.SourceFile, err)
		}
		inserted++
	}

	utils.LogImport("Inserted %d questions in %v", inserted, time.Since(start))
	return inserted, nil
}
