package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/adamspd/DesignQuizBot/utils"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries runs the persistence operations against a connection or a transaction.
type Queries struct {
	q execer
}

type DB struct {
	*sql.DB
	*Queries
}

func InitDB(dbPath string) (*DB, error) {
	utils.LogStartup("Initializing database at: %s", dbPath)

	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		utils.LogError("Failed to open database: %v", err)
		return nil, err
	}

	// SQLite allows one writer; a single pooled connection keeps transactions
	// from failing with "database is locked" under concurrent handlers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		utils.LogError("Failed to ping database: %v", err)
		db.Close()
		return nil, err
	}

	utils.LogStartup("Database connection established")

	if err := createTables(db); err != nil {
		utils.LogError("Failed to create tables: %v", err)
		db.Close()
		return nil, err
	}

	utils.LogStartup("Database tables initialized successfully")
	return &DB{DB: db, Queries: &Queries{q: db}}, nil
}

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_foreign_keys=on"
}

// InTx runs fn inside a transaction. The transaction is rolled back unless fn
// returns nil and the commit succeeds.
func (db *DB) InTx(ctx context.Context, fn func(q Querier) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				utils.LogError("Rollback failed: %v", rbErr)
			}
		}
	}()

	if err = fn(&Queries{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id INTEGER PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			total_correct INTEGER NOT NULL DEFAULT 0,
			current_topic TEXT NOT NULL DEFAULT 'typography',
			current_topic_progress INTEGER NOT NULL DEFAULT 0,
			completed_topics TEXT NOT NULL DEFAULT '[]',
			role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS questions (
			question_id INTEGER PRIMARY KEY AUTOINCREMENT,
			category TEXT NOT NULL,
			question_text TEXT NOT NULL,
			image_path TEXT NOT NULL DEFAULT '',
			buttons_count INTEGER NOT NULL CHECK (buttons_count BETWEEN 1 AND 4),
			correct_option TEXT NOT NULL CHECK (correct_option IN ('a', 'b', 'c', 'd')),
			explanation TEXT NOT NULL DEFAULT '',
			source_file TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS daily_progress (
			user_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			questions_asked INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, date)
		)`,

		`CREATE TABLE IF NOT EXISTS user_answered_questions (
			user_id INTEGER NOT NULL,
			question_id INTEGER NOT NULL,
			answered_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, question_id)
		)`,
	}

	for i, query := range queries {
		utils.LogDB("Creating table %d/%d", i+1, len(queries))
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_questions_category ON questions(category)",
		"CREATE INDEX IF NOT EXISTS idx_answered_question_id ON user_answered_questions(question_id)",
		"CREATE INDEX IF NOT EXISTS idx_daily_progress_date ON daily_progress(date)",
	}

	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			utils.LogDB("Failed to create index (non-fatal): %v", err)
		}
	}

	return nil
}
