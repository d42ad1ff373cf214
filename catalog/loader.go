package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adamspd/DesignQuizBot/db"
	"github.com/adamspd/DesignQuizBot/models"
	"github.com/adamspd/DesignQuizBot/utils"
)

// ErrEmptyCatalog is returned when a load finds no valid question. The
// existing pool is kept in that case.
var ErrEmptyCatalog = errors.New("no valid questions found")

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

// Store runs the pool replacement in a transaction. *db.DB satisfies it.
type Store interface {
	InTx(ctx context.Context, fn func(q db.Querier) error) error
}

// Loader reads questions from <dir>/<topic>/*.txt and replaces the whole
// question pool with them.
type Loader struct {
	dir      string
	topics   []models.Topic
	store    Store
	onReload func()

	mu sync.Mutex
}

// NewLoader creates a loader for the given topic directories. onReload runs
// after every successful replace; pass nil when nothing is cached.
func NewLoader(dir string, topics []models.Topic, store Store, onReload func()) *Loader {
	return &Loader{dir: dir, topics: topics, store: store, onReload: onReload}
}

func (l *Loader) Dir() string {
	return l.dir
}

// Load parses the catalog and swaps it in atomically.
func (l *Loader) Load(ctx context.Context) (*models.ImportResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	utils.LogImport("Loading questions from %s", l.dir)

	questions, result, err := l.Parse()
	if err != nil {
		return result, err
	}
	if len(questions) == 0 {
		result.TimeTaken = time.Since(start).String()
		return result, fmt.Errorf("%s: %w", l.dir, ErrEmptyCatalog)
	}

	err = l.store.InTx(ctx, func(q db.Querier) error {
		n, err := q.ReplaceQuestions(ctx, questions)
		if err != nil {
			return err
		}
		result.ImportedQuestions = n
		return nil
	})
	if err != nil {
		utils.LogError("Question pool replace failed, keeping the old pool: %v", err)
		result.ImportedQuestions = 0
		result.TimeTaken = time.Since(start).String()
		return result, fmt.Errorf("replace questions: %w", err)
	}

	if l.onReload != nil {
		l.onReload()
	}

	result.TimeTaken = time.Since(start).String()
	utils.LogImport("Import completed: %d imported, %d skipped, %d images, %d errors in %s",
		result.ImportedQuestions, result.SkippedQuestions, result.ImagesAttached, len(result.Errors), result.TimeTaken)
	return result, nil
}

// Parse reads every topic directory without touching storage. Bad entries
// are counted as skipped and described in result.Errors.
func (l *Loader) Parse() ([]models.Question, *models.ImportResult, error) {
	result := &models.ImportResult{Errors: []string{}}

	info, err := os.Stat(l.dir)
	if err != nil {
		return nil, result, fmt.Errorf("questions dir: %w", err)
	}
	if !info.IsDir() {
		return nil, result, fmt.Errorf("questions dir %s is not a directory", l.dir)
	}

	var questions []models.Question
	for _, topic := range l.topics {
		topicDir := filepath.Join(l.dir, string(topic))
		entries, err := os.ReadDir(topicDir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				utils.LogImport("Topic directory %s not found, skipping", topicDir)
				continue
			}
			return nil, result, fmt.Errorf("read %s: %w", topicDir, err)
		}

		found := 0
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
				continue
			}
			found++
			result.TotalFiles++

			path := filepath.Join(topicDir, e.Name())
			q, err := parseFile(path, topic)
			if err != nil {
				result.SkippedQuestions++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
				utils.LogImport("Skipping %s: %v", path, err)
				continue
			}
			if q.ImagePath != "" {
				result.ImagesAttached++
			}
			questions = append(questions, q)
		}
		utils.LogImport("Topic %s: %d files", topic, found)
	}

	return questions, result, nil
}

func parseFile(path string, topic models.Topic) (models.Question, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.Question{}, err
	}

	q, err := ParseEntry(string(raw))
	if err != nil {
		return models.Question{}, err
	}
	q.Topic = topic
	q.SourceFile = path
	q.ImagePath = findImage(path)
	return q, nil
}

// ParseEntry decodes "block;button_count;correct_letter;explanation". The
// explanation is everything after the third separator.
func ParseEntry(content string) (models.Question, error) {
	parts := strings.SplitN(strings.TrimSpace(content), ";", 4)
	if len(parts) < 4 {
		return models.Question{}, fmt.Errorf("expected 4 fields separated by ';', got %d", len(parts))
	}

	body := strings.TrimSpace(parts[0])
	if body == "" {
		return models.Question{}, fmt.Errorf("empty question block")
	}

	buttons, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return models.Question{}, fmt.Errorf("button count %q is not a number", strings.TrimSpace(parts[1]))
	}
	if buttons < 1 || buttons > models.MaxButtons {
		return models.Question{}, fmt.Errorf("button count %d out of range 1..%d", buttons, models.MaxButtons)
	}

	correct := strings.ToLower(strings.TrimSpace(parts[2]))
	idx := models.OptionIndex(correct)
	if idx < 0 {
		return models.Question{}, fmt.Errorf("correct option %q must be one of a, b, c, d", correct)
	}
	if idx >= buttons {
		return models.Question{}, fmt.Errorf("correct option %q needs more than %d buttons", correct, buttons)
	}

	return models.Question{
		Body:          body,
		ButtonCount:   buttons,
		CorrectOption: correct,
		Explanation:   strings.TrimSpace(parts[3]),
	}, nil
}

func findImage(txtPath string) string {
	base := strings.TrimSuffix(txtPath, filepath.Ext(txtPath))
	for _, ext := range imageExtensions {
		candidate := base + ext
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate
		}
	}
	return ""
}
