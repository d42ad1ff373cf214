package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adamspd/DesignQuizBot/models"
	"github.com/adamspd/DesignQuizBot/utils"
)

func (q *Queries) GetUser(ctx context.Context, userID int64) (*models.UserProgress, error) {
	utils.LogDB("Executing query: GetUser(%d)", userID)

	var u models.UserProgress
	var topic, role, completedJSON string

	err := q.q.QueryRowContext(ctx, `
		SELECT user_id, username, total_correct, current_topic, current_topic_progress,
		       completed_topics, role, created_at, updated_at
		FROM users WHERE user_id = ?
	`, userID).Scan(&u.UserID, &u.Username, &u.TotalCorrect, &topic, &u.CurrentTopicProgress,
		&completedJSON, &role, &u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		utils.LogError("GetUser(%d) failed: %v", userID, err)
		return nil, err
	}

	u.CurrentTopic = models.Topic(topic)
	u.Role = models.Role(role)
	u.CompletedTopics = decodeTopics(completedJSON)
	return &u, nil
}

// EnsureUser inserts the user on first contact. For an existing user the
// username and role are refreshed. It reports whether a row was created.
func (q *Queries) EnsureUser(ctx context.Context, userID int64, username string, role models.Role) (bool, error) {
	if role == "" {
		role = models.RoleUser
	}

	res, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (user_id, username, role) VALUES (?, ?, ?)
	`, userID, username, string(role))
	if err != nil {
		utils.LogError("EnsureUser(%d) insert failed: %v", userID, err)
		return false, err
	}

	created, _ := res.RowsAffected()
	if created > 0 {
		utils.LogDB("Registered user %d (%s) as %s", userID, username, role)
		return true, nil
	}

	_, err = q.q.ExecContext(ctx, `
		UPDATE users
		SET username = CASE WHEN ? = '' THEN username ELSE ? END,
		    role = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`, username, username, string(role), userID)
	if err != nil {
		utils.LogError("EnsureUser(%d) update failed: %v", userID, err)
		return false, err
	}
	return false, nil
}

// SaveUser writes every mutable progress field of u.
func (q *Queries) SaveUser(ctx context.Context, u *models.UserProgress) error {
	start := time.Now()

	completed, err := json.Marshal(topicStrings(u.CompletedTopics))
	if err != nil {
		return fmt.Errorf("encode completed topics: %w", err)
	}

	res, err := q.q.ExecContext(ctx, `
		UPDATE users
		SET total_correct = ?, current_topic = ?, current_topic_progress = ?,
		    completed_topics = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`, u.TotalCorrect, string(u.CurrentTopic), u.CurrentTopicProgress, string(completed), u.UserID)
	if err != nil {
		utils.LogError("SaveUser(%d) failed: %v (%v)", u.UserID, err, time.Since(start))
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", u.UserID, ErrNotFound)
	}

	utils.LogDB("SaveUser(%d): topic=%s progress=%d correct=%d completed=%d in %v",
		u.UserID, u.CurrentTopic, u.CurrentTopicProgress, u.TotalCorrect, len(u.CompletedTopics), time.Since(start))
	return nil
}

// ResetUser zeroes the user's progress and removes their ledger and daily rows.
// Call it inside a transaction so the three statements apply together.
func (q *Queries) ResetUser(ctx context.Context, userID int64) error {
	utils.LogDB("Resetting progress for user %d", userID)

	res, err := q.q.ExecContext(ctx, `
		UPDATE users
		SET total_correct = 0, current_topic = ?, current_topic_progress = 0,
		    completed_topics = '[]', updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`, string(models.TopicTypography), userID)
	if err != nil {
		return fmt.Errorf("reset user row: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}

	answers, err := q.q.ExecContext(ctx, "DELETE FROM user_answered_questions WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("reset answered questions: %w", err)
	}
	daily, err := q.q.ExecContext(ctx, "DELETE FROM daily_progress WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("reset daily progress: %w", err)
	}

	answersDeleted, _ := answers.RowsAffected()
	dailyDeleted, _ := daily.RowsAffected()
	utils.LogDB("Reset user %d: %d answered rows, %d daily rows deleted", userID, answersDeleted, dailyDeleted)
	return nil
}

func (q *Queries) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := q.q.QueryContext(ctx, "SELECT user_id FROM users ORDER BY user_id")
	if err != nil {
		utils.LogError("ListUserIDs failed: %v", err)
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func decodeTopics(raw string) []models.Topic {
	if raw == "" {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		utils.LogError("Failed to decode completed topics %q: %v", raw, err)
		return nil
	}
	topics := make([]models.Topic, 0, len(names))
	for _, n := range names {
		topics = append(topics, models.Topic(n))
	}
	return topics
}

func topicStrings(topics []models.Topic) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		out = append(out, string(t))
	}
	return out
}
