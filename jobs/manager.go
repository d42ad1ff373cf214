package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adamspd/DesignQuizBot/bot"
	"github.com/adamspd/DesignQuizBot/utils"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	TypeBroadcastCopy = "broadcast:copy"
	TypeDailyDeliver  = "daily:deliver"
)

// Delivery is the chat-side work a job ends up doing.
type Delivery interface {
	DeliverDaily(ctx context.Context, userID int64) (bool, error)
	CopyBroadcast(ctx context.Context, toChatID, fromChatID int64, messageID int) error
	SendHeartbeat(ctx context.Context, adminID int64) error
}

type JobManager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
}

type BroadcastPayload struct {
	BatchID    string `json:"batch_id"`
	ToChatID   int64  `json:"to_chat_id"`
	FromChatID int64  `json:"from_chat_id"`
	MessageID  int    `json:"message_id"`
}

type DailyPayload struct {
	UserID int64  `json:"user_id"`
	Date   string `json:"date"`
}

// NewJobManager connects to the Redis instance at redisURL and prepares the
// asynq client and worker. The connection is checked before returning.
func NewJobManager(ctx context.Context, redisURL string) (*JobManager, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"critical": 6, // Daily questions
			"default":  3, // Broadcast copies
			"low":      1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			utils.LogError("Job failed: type=%s error=%v", task.Type(), err)
		}),
		Logger: &AsynqLogger{},
	})

	utils.LogJob("Job queue connected to redis at %s", opts.Addr)
	return &JobManager{
		client: client,
		server: server,
		mux:    asynq.NewServeMux(),
	}, nil
}

func (jm *JobManager) RegisterHandlers(d Delivery) {
	jm.mux.HandleFunc(TypeBroadcastCopy, handleBroadcastCopy(d))
	jm.mux.HandleFunc(TypeDailyDeliver, handleDailyDeliver(d))
}

// Start runs the worker in the background.
func (jm *JobManager) Start() error {
	utils.LogStartup("Starting job queue worker...")
	return jm.server.Start(jm.mux)
}

func (jm *JobManager) Stop() {
	utils.LogShutdown("Stopping job queue...")
	jm.server.Stop()
	jm.server.Shutdown()
	if err := jm.client.Close(); err != nil {
		utils.LogError("Closing job client: %v", err)
	}
}

// Broadcast queues one copy task per recipient. The report carries queued
// counts; delivery outcomes are logged by the worker.
func (jm *JobManager) Broadcast(ctx context.Context, req bot.BroadcastRequest) (bot.BroadcastReport, error) {
	report := bot.BroadcastReport{BatchID: req.BatchID, Total: len(req.Recipients)}

	for _, to := range req.Recipients {
		task, err := newBroadcastTask(BroadcastPayload{
			BatchID:    req.BatchID,
			ToChatID:   to,
			FromChatID: req.FromChatID,
			MessageID:  req.MessageID,
		})
		if err != nil {
			return report, err
		}

		_, err = jm.client.EnqueueContext(ctx, task,
			asynq.Queue("default"),
			asynq.MaxRetry(2),
			asynq.Timeout(30*time.Second),
			asynq.TaskID(fmt.Sprintf("%s:%d", req.BatchID, to)),
		)
		if err != nil {
			utils.LogError("Queueing broadcast %s to %d failed: %v", req.BatchID, to, err)
			report.Failed++
			continue
		}
		report.Queued++
	}

	utils.LogJob("Queued broadcast %s: %d/%d tasks", req.BatchID, report.Queued, report.Total)
	return report, nil
}

// EnqueueDaily queues the daily question for one user. The task id is keyed
// on the date so a repeated run on the same day does not send twice.
func (jm *JobManager) EnqueueDaily(ctx context.Context, userID int64, date string) error {
	task, err := newDailyTask(DailyPayload{UserID: userID, Date: date})
	if err != nil {
		return err
	}

	info, err := jm.client.EnqueueContext(ctx, task,
		asynq.Queue("critical"),
		asynq.MaxRetry(3),
		asynq.Timeout(60*time.Second),
		asynq.TaskID(fmt.Sprintf("daily:%s:%d", date, userID)),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		utils.LogDebug("Daily task for %d on %s already queued", userID, date)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue daily task for %d: %w", userID, err)
	}

	utils.LogDebug("Queued daily job: ID=%s user=%d", info.ID, userID)
	return nil
}

func newBroadcastTask(p BroadcastPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal broadcast payload: %w", err)
	}
	return asynq.NewTask(TypeBroadcastCopy, b), nil
}

func newDailyTask(p DailyPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal daily payload: %w", err)
	}
	return asynq.NewTask(TypeDailyDeliver, b), nil
}

func handleBroadcastCopy(d Delivery) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var p BroadcastPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return fmt.Errorf("failed to unmarshal broadcast payload: %v: %w", err, asynq.SkipRetry)
		}

		if err := d.CopyBroadcast(ctx, p.ToChatID, p.FromChatID, p.MessageID); err != nil {
			return fmt.Errorf("broadcast %s to %d: %w", p.BatchID, p.ToChatID, err)
		}
		utils.LogJob("Broadcast %s delivered to %d", p.BatchID, p.ToChatID)
		return nil
	}
}

func handleDailyDeliver(d Delivery) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var p DailyPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return fmt.Errorf("failed to unmarshal daily payload: %v: %w", err, asynq.SkipRetry)
		}

		sent, err := d.DeliverDaily(ctx, p.UserID)
		if err != nil {
			return fmt.Errorf("daily question for %d on %s: %w", p.UserID, p.Date, err)
		}
		if sent {
			utils.LogJob("Daily question delivered to %d", p.UserID)
		}
		return nil
	}
}

// Custom logger that uses your existing logging
type AsynqLogger struct{}

func (l *AsynqLogger) Debug(args ...interface{}) {
	utils.LogDebug("%s", fmt.Sprint(args...))
}

func (l *AsynqLogger) Info(args ...interface{}) {
	utils.LogInfo("%s", fmt.Sprint(args...))
}

func (l *AsynqLogger) Warn(args ...interface{}) {
	utils.LogWarn("%s", fmt.Sprint(args...))
}

func (l *AsynqLogger) Error(args ...interface{}) {
	utils.LogError("%s", fmt.Sprint(args...))
}

func (l *AsynqLogger) Fatal(args ...interface{}) {
	utils.LogError("%s", fmt.Sprint(args...))
}
