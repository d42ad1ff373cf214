package models

import "time"

// Config holds runtime configuration loaded from the environment.
type Config struct {
	BotToken  string
	ChannelID string
	// ChannelURL is shown on the subscribe button.
	ChannelURL string
	AdminIDs   []int64

	DBPath       string
	QuestionsDir string
	RedisURL     string

	TimeZone   string
	Location   *time.Location
	DailyQuota int
	CacheTTL   time.Duration

	DailyQuestionCron  string
	AdminHeartbeatCron string
	RolloverCron       string
	CacheSweepCron     string

	HTTPAddr     string
	OpsTokenHash string

	NextQuestionDelay time.Duration
	LogMode           string
}

// Session is the chat-side state for one user, resolved when the user first
// interacts with the bot in this process.
type Session struct {
	UserID    int64
	Role      Role
	CreatedAt time.Time
	ExpiresAt time.Time

	// Active is set while a /today run is in progress.
	Active bool
	// Queue holds question ids sampled for the active run, in send order.
	Queue []int
	// Broadcasting is set after an admin issues /letter.
	Broadcasting bool
	// ResetPromptID is the message id of a pending reset confirmation.
	ResetPromptID int
}

func (s *Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}
