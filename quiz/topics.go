package quiz

import (
	"strings"

	"github.com/adamspd/DesignQuizBot/models"
)

var topicOrder = []models.Topic{
	models.TopicTypography,
	models.TopicColoristics,
	models.TopicComposition,
	models.TopicUXPrinciples,
	models.TopicUIPatterns,
}

var topicNames = map[models.Topic]string{
	models.TopicTypography:   "Typography",
	models.TopicColoristics:  "Coloristics",
	models.TopicComposition:  "Composition",
	models.TopicUXPrinciples: "UX principles",
	models.TopicUIPatterns:   "UI patterns",
}

// Topics returns the curriculum in study order.
func Topics() []models.Topic {
	out := make([]models.Topic, len(topicOrder))
	copy(out, topicOrder)
	return out
}

func FirstTopic() models.Topic {
	return topicOrder[0]
}

func IsKnownTopic(t models.Topic) bool {
	_, ok := topicNames[t]
	return ok
}

// NextTopic returns the topic after t. ok is false once t is the last topic.
// A topic outside the curriculum counts as not started and yields the first.
func NextTopic(t models.Topic) (next models.Topic, ok bool) {
	for i, candidate := range topicOrder {
		if candidate != t {
			continue
		}
		if i+1 < len(topicOrder) {
			return topicOrder[i+1], true
		}
		return "", false
	}
	return topicOrder[0], true
}

// DisplayName is the human label for t.
func DisplayName(t models.Topic) string {
	if name, ok := topicNames[t]; ok {
		return name
	}
	s := strings.ReplaceAll(string(t), "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
