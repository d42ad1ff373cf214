package quiz

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/adamspd/DesignQuizBot/models"
)

const answerPrefix = "answer_"

// AnswerData is the callback payload for choosing letter on questionID.
func AnswerData(questionID int, letter string) string {
	return fmt.Sprintf("%s%d_%s", answerPrefix, questionID, letter)
}

// IsAnswerData reports whether data looks like an answer callback.
func IsAnswerData(data string) bool {
	return strings.HasPrefix(data, answerPrefix)
}

// ParseAnswerData splits "answer_<id>_<letter>".
func ParseAnswerData(data string) (questionID int, letter string, err error) {
	parts := strings.Split(data, "_")
	if len(parts) != 3 || parts[0]+"_" != answerPrefix {
		return 0, "", fmt.Errorf("malformed answer data %q", data)
	}
	questionID, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, "", fmt.Errorf("malformed question id in %q: %w", data, err)
	}
	if models.OptionIndex(parts[2]) < 0 {
		return 0, "", fmt.Errorf("option %q: %w", parts[2], ErrInvalidOption)
	}
	return questionID, parts[2], nil
}

// Caption is the header line shown above a question of topic.
func Caption(topic models.Topic) string {
	return "// " + DisplayName(topic)
}

// RenderQuestion builds the view the messaging layer delivers: the topic
// caption, the raw question block, one button per option and the image.
func RenderQuestion(q *models.Question) models.QuestionView {
	letters := q.Options()
	buttons := make([]models.Button, 0, len(letters))
	for _, l := range letters {
		buttons = append(buttons, models.Button{Text: l, Data: AnswerData(q.ID, l)})
	}

	return models.QuestionView{
		QuestionID: q.ID,
		Caption:    Caption(q.Topic),
		Body:       q.Body,
		Options:    buttons,
		MediaPath:  q.ImagePath,
	}
}
