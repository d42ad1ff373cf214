package models

import "time"

// OptionLetters are the answer labels in button order.
var OptionLetters = []string{"a", "b", "c", "d"}

// MaxButtons is the largest number of answer buttons a question can carry.
const MaxButtons = 4

// Question is an immutable quiz item loaded from the catalog source.
type Question struct {
	ID            int       `json:"id"`
	Topic         Topic     `json:"topic"`
	Body          string    `json:"body"`
	ImagePath     string    `json:"image_path,omitempty"`
	ButtonCount   int       `json:"button_count"`
	CorrectOption string    `json:"correct_option"`
	Explanation   string    `json:"explanation"`
	SourceFile    string    `json:"source_file,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Options returns the letters offered for this question.
func (q *Question) Options() []string {
	n := q.ButtonCount
	if n > len(OptionLetters) {
		n = len(OptionLetters)
	}
	if n < 0 {
		n = 0
	}
	return OptionLetters[:n]
}

// OptionIndex maps a letter to its button index, or -1.
func OptionIndex(letter string) int {
	for i, l := range OptionLetters {
		if l == letter {
			return i
		}
	}
	return -1
}

// ImportResult summarizes a catalog load.
type ImportResult struct {
	TotalFiles        int      `json:"total_files"`
	ImportedQuestions int      `json:"imported_questions"`
	SkippedQuestions  int      `json:"skipped_questions"`
	ImagesAttached    int      `json:"images_attached"`
	Errors            []string `json:"errors"`
	TimeTaken         string   `json:"time_taken"`
}

// QuestionView is the rendering contract handed to the messaging layer.
type QuestionView struct {
	QuestionID int      `json:"question_id"`
	Caption    string   `json:"caption"`
	Body       string   `json:"body"`
	Options    []Button `json:"options"`
	MediaPath  string   `json:"media_path,omitempty"`
}

// Text is the full message text: caption, blank line, body.
func (v QuestionView) Text() string {
	if v.Caption == "" {
		return v.Body
	}
	return v.Caption + "\n\n" + v.Body
}

// Button is an inline keyboard button. Exactly one of Data or URL is set.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Keyboard is a list of button rows.
type Keyboard [][]Button
