package quiz

import "errors"

var (
	ErrQuotaExhausted    = errors.New("daily quota exhausted")
	ErrNoQuestions       = errors.New("topic has no questions")
	ErrTopicExhausted    = errors.New("no unseen questions left in topic")
	ErrAllTopicsComplete = errors.New("all topics completed")
	ErrAlreadyAnswered   = errors.New("question already answered")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrInvalidOption     = errors.New("invalid answer option")
	ErrUnknownUser       = errors.New("user not registered")
)
