package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adamspd/DesignQuizBot/db"
	"github.com/adamspd/DesignQuizBot/models"
)

var testTopics = []models.Topic{models.TopicTypography, models.TopicColoristics}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.InitDB(filepath.Join(t.TempDir(), "quiz.db"))
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
		want    models.Question
	}{
		{
			name:    "valid",
			content: "Which font?\na) Serif\nb) Sans;2;B;Sans reads better on screens.\n",
			want:    models.Question{Body: "Which font?\na) Serif\nb) Sans", ButtonCount: 2, CorrectOption: "b", Explanation: "Sans reads better on screens."},
		},
		{
			name:    "explanation keeps separators",
			content: "Q;3;c;First; second",
			want:    models.Question{Body: "Q", ButtonCount: 3, CorrectOption: "c", Explanation: "First; second"},
		},
		{name: "too few fields", content: "Q;2;a", wantErr: "expected 4 fields"},
		{name: "button count not a number", content: "Q;two;a;x", wantErr: "not a number"},
		{name: "button count too large", content: "Q;5;a;x", wantErr: "out of range"},
		{name: "button count zero", content: "Q;0;a;x", wantErr: "out of range"},
		{name: "letter outside a-d", content: "Q;4;e;x", wantErr: "must be one of"},
		{name: "letter beyond buttons", content: "Q;2;c;x", wantErr: "needs more than 2"},
		{name: "empty block", content: " ;2;a;x", wantErr: "empty question block"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEntry(tt.content)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLoadSkipsBadEntriesAndAttachesImages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "typography", "q1.txt"), "Kerning?;2;a;Spacing between letters.")
	writeFile(t, filepath.Join(dir, "typography", "q1.webp"), "img")
	writeFile(t, filepath.Join(dir, "typography", "q2.txt"), "Leading?;3;d;bad letter")
	writeFile(t, filepath.Join(dir, "typography", "notes.md"), "ignored")
	writeFile(t, filepath.Join(dir, "coloristics", "c1.txt"), "Hue?;4;c;Colour family.")
	writeFile(t, filepath.Join(dir, "coloristics", "c2.txt"), "broken")

	database := openTestDB(t)
	reloaded := 0
	loader := NewLoader(dir, testTopics, database, func() { reloaded++ })

	res, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.TotalFiles != 4 || res.ImportedQuestions != 2 || res.SkippedQuestions != 2 || res.ImagesAttached != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 diagnostics, got %v", res.Errors)
	}
	if reloaded != 1 {
		t.Fatalf("onReload called %d times", reloaded)
	}

	ctx := context.Background()
	ids, _ := database.SampleUnseen(ctx, 1, models.TopicTypography, 10)
	if len(ids) != 1 {
		t.Fatalf("expected 1 typography question, got %d", len(ids))
	}
	q, err := database.GetQuestion(ctx, ids[0])
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if !strings.HasSuffix(q.ImagePath, "q1.webp") || q.CorrectOption != "a" || q.ButtonCount != 2 {
		t.Fatalf("unexpected stored question %+v", q)
	}
	if n, _ := database.CountQuestions(ctx, models.TopicColoristics); n != 1 {
		t.Fatalf("coloristics count = %d", n)
	}
}

func TestLoadReplacesWholePool(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "typography", "a.txt"), "A;1;a;x")
	writeFile(t, filepath.Join(dir, "typography", "b.txt"), "B;1;a;x")

	database := openTestDB(t)
	loader := NewLoader(dir, testTopics, database, nil)
	ctx := context.Background()

	if _, err := loader.Load(ctx); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "typography", "b.txt")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	writeFile(t, filepath.Join(dir, "coloristics", "c.txt"), "C;1;a;x")

	if _, err := loader.Load(ctx); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if n, _ := database.CountQuestions(ctx, models.TopicTypography); n != 1 {
		t.Fatalf("typography count = %d after reload", n)
	}
	if n, _ := database.CountQuestions(ctx, models.TopicColoristics); n != 1 {
		t.Fatalf("coloristics count = %d after reload", n)
	}
}

func TestLoadKeepsPoolWhenNothingValid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "typography", "a.txt"), "A;1;a;x")

	database := openTestDB(t)
	ctx := context.Background()
	if _, err := NewLoader(dir, testTopics, database, nil).Load(ctx); err != nil {
		t.Fatalf("seed load: %v", err)
	}

	writeFile(t, filepath.Join(dir, "typography", "a.txt"), "garbage")
	_, err := NewLoader(dir, testTopics, database, nil).Load(ctx)
	if !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
	if n, _ := database.CountQuestions(ctx, models.TopicTypography); n != 1 {
		t.Fatalf("pool was wiped by an empty load: %d", n)
	}

	if _, err := NewLoader(filepath.Join(dir, "missing"), testTopics, database, nil).Load(ctx); err == nil {
		t.Fatalf("expected error for a missing directory")
	}
}
