package models

import (
	"time"
)

// Topic is one of the fixed curriculum categories questions are partitioned into.
type Topic string

const (
	TopicTypography   Topic = "typography"
	TopicColoristics  Topic = "coloristics"
	TopicComposition  Topic = "composition"
	TopicUXPrinciples Topic = "ux_principles"
	TopicUIPatterns   Topic = "ui_patterns"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// UserProgress is the persisted per-user progress record.
type UserProgress struct {
	UserID               int64     `json:"user_id"`
	Username             string    `json:"username"`
	TotalCorrect         int       `json:"total_correct"`
	CurrentTopic         Topic     `json:"current_topic"`
	CurrentTopicProgress int       `json:"current_topic_progress"`
	CompletedTopics      []Topic   `json:"completed_topics"`
	Role                 Role      `json:"role"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// HasCompleted reports whether t is in the completed set.
func (u *UserProgress) HasCompleted(t Topic) bool {
	for _, c := range u.CompletedTopics {
		if c == t {
			return true
		}
	}
	return false
}

// MarkCompleted adds t to the completed set. It returns false if t was already there.
func (u *UserProgress) MarkCompleted(t Topic) bool {
	if u.HasCompleted(t) {
		return false
	}
	u.CompletedTopics = append(u.CompletedTopics, t)
	return true
}

// DailyProgress counts the questions a user answered on one calendar date.
type DailyProgress struct {
	UserID         int64  `json:"user_id"`
	Date           string `json:"date"`
	QuestionsAsked int    `json:"questions_asked"`
}

// Stats is the cached per-user aggregate shown by /stats and used by session checks.
type Stats struct {
	UserID               int64   `json:"user_id"`
	TotalCorrect         int     `json:"total_correct"`
	CurrentTopic         Topic   `json:"current_topic"`
	CurrentTopicProgress int     `json:"current_topic_progress"`
	CompletedTopics      []Topic `json:"completed_topics"`
	Role                 Role    `json:"role"`
	AnsweredToday        int     `json:"answered_today"`
	TopicQuestionCount   int     `json:"topic_question_count"`
	AllComplete          bool    `json:"all_complete"`
}

// ProgressPercent is the share of the current topic answered, 0..100.
func (s *Stats) ProgressPercent() int {
	if s.TopicQuestionCount <= 0 {
		return 0
	}
	p := s.CurrentTopicProgress * 100 / s.TopicQuestionCount
	if p > 100 {
		return 100
	}
	return p
}
