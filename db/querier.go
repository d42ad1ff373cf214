package db

import (
	"context"

	"github.com/adamspd/DesignQuizBot/models"
)

// Querier is the persistence capability used by the quiz engine and the
// catalog loader. *Queries implements it for both the pooled handle and
// transactions.
type Querier interface {
	GetUser(ctx context.Context, userID int64) (*models.UserProgress, error)
	EnsureUser(ctx context.Context, userID int64, username string, role models.Role) (bool, error)
	SaveUser(ctx context.Context, u *models.UserProgress) error
	ResetUser(ctx context.Context, userID int64) error
	ListUserIDs(ctx context.Context) ([]int64, error)

	GetQuestion(ctx context.Context, questionID int) (*models.Question, error)
	CountQuestions(ctx context.Context, topic models.Topic) (int, error)
	SampleUnseen(ctx context.Context, userID int64, topic models.Topic, limit int) ([]int, error)
	ReplaceQuestions(ctx context.Context, questions []models.Question) (int, error)

	RecordAnswer(ctx context.Context, userID int64, questionID int) (bool, error)
	HasAnswered(ctx context.Context, userID int64, questionID int) (bool, error)
	CountAnswered(ctx context.Context, userID int64, topic models.Topic) (int, error)

	GetDaily(ctx context.Context, userID int64, date string) (int, error)
	IncrementDaily(ctx context.Context, userID int64, date string, delta int) (int, error)
	DeleteDailyExcept(ctx context.Context, date string) (int64, error)
}

var _ Querier = (*Queries)(nil)
