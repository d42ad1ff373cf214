package bot

import (
	"fmt"
	"strings"

	"github.com/adamspd/DesignQuizBot/models"
	"github.com/adamspd/DesignQuizBot/quiz"
)

const (
	textSubscribeRequired = "⚠️ You need to subscribe to our channel to use this bot.\n\n" +
		"After subscribing, press \"Check subscription\" below."
	textSubscribeThanks = "✅ Thanks for subscribing! All features are now available.\n\n" +
		"Use /start to begin."
	textNotSubscribedYet = "You have not subscribed to the channel yet. Please subscribe and try again."

	textStatsUnavailable = "Stats are not available yet. Use /start to begin."
	textStartFirst       = "Please use /start first."
	textQuotaReached     = "❌ You have already answered %d questions today. New questions will be available tomorrow."
	textRunActive        = "❌ You are already going through today's questions. Finish the current session first!"
	textSessionDone      = "🎉 You have answered all %d questions for today!\n\nNew questions are waiting for you tomorrow."
	textNoQuestions      = "❌ There are no questions for your current topic yet.\n\nThe administrator will add them soon."
	textNothingNew       = "❌ There are no new questions for you right now."
	textAllComplete      = "🎉 Congratulations! You have completed all topics!"
	textTopicAdvanced    = "🎉 Topic completed! Moving on to the next topic: %s"
	textQuestionMissing  = "❌ Could not load the question. Please try again later."
	textAlreadyAnswered  = "You have already answered this question."
	textGenericError     = "❌ Something went wrong. Please try again later."
	textNextQuestionIn   = "⏳ Next question in %d seconds..."

	textResetPrompt = "⚠️ Are you sure you want to reset all your progress?\n\n" +
		"This cannot be undone! You will lose:\n" +
		"• All correct answers\n" +
		"• Progress in the current topic\n" +
		"• Completed topics\n" +
		"• Answer history"
	textResetDone      = "✅ Your progress has been reset.\n\nYou are starting from the beginning."
	textResetCancelled = "❌ Progress reset cancelled."
	textResetNotYours  = "❌ You cannot confirm a reset for another user."

	textNoPermission      = "❌ You do not have permission to use this command."
	textBroadcastOn       = "✉️ Broadcast mode enabled. Send the message that should go to every user.\n\nUse /out to cancel."
	textBroadcastOff      = "❌ Broadcast mode cancelled."
	textBroadcastStarting = "✉️ Starting broadcast to %d users..."
	textBroadcastFailed   = "❌ Broadcast failed: %v"

	textHeartbeat = "All good! ✅"
)

func welcomeText(firstName string, quota int, admin bool) string {
	if firstName == "" {
		firstName = "friend"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎨 Hi, %s!\n\n", firstName)
	b.WriteString("I will help you learn the basics of design through daily practice.\n\n")
	fmt.Fprintf(&b, "Every day you can answer up to %d questions on one of these topics:\n", quota)
	for _, t := range quiz.Topics() {
		fmt.Fprintf(&b, "• %s\n", quiz.DisplayName(t))
	}
	b.WriteString("\nCommands:\n")
	b.WriteString("/stats - your statistics\n")
	b.WriteString("/today - get today's questions\n")
	b.WriteString("/reset_progress - reset your progress\n")
	if admin {
		b.WriteString("\n👑 Admin commands:\n")
		b.WriteString("/letter - send a message to every user\n")
		b.WriteString("/out - cancel the broadcast\n")
	}
	b.WriteString("\n💡 Keep the question messages, they are handy for review!")
	return b.String()
}

func statsText(st models.Stats, quota int) string {
	var b strings.Builder
	b.WriteString("📊 Your statistics:\n\n")
	fmt.Fprintf(&b, "• Current topic: %s\n", quiz.DisplayName(st.CurrentTopic))
	fmt.Fprintf(&b, "• Topic progress: %d%% (%d/%d)\n", st.ProgressPercent(), st.CurrentTopicProgress, st.TopicQuestionCount)
	fmt.Fprintf(&b, "• Topics completed: %d/%d\n", len(st.CompletedTopics), len(quiz.Topics()))
	if len(st.CompletedTopics) > 0 {
		names := make([]string, 0, len(st.CompletedTopics))
		for _, t := range st.CompletedTopics {
			names = append(names, quiz.DisplayName(t))
		}
		fmt.Fprintf(&b, "• Completed topics: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "• Correct answers: %d\n", st.TotalCorrect)
	fmt.Fprintf(&b, "• Questions today: %d/%d", st.AnsweredToday, quota)
	return b.String()
}

func answerText(correct bool, q *models.Question) string {
	if correct {
		return "✅ Correct\n\n" + q.Explanation
	}
	return fmt.Sprintf("❌ Incorrect\nCorrect answer: %s)\n\n%s", q.CorrectOption, q.Explanation)
}

func broadcastReportText(r BroadcastReport) string {
	if r.Finished() {
		return fmt.Sprintf("✅ Broadcast finished!\nTotal users: %d\nDelivered: %d\nFailed: %d",
			r.Total, r.Delivered, r.Failed)
	}
	return fmt.Sprintf("✅ Broadcast queued!\nTotal users: %d\nQueued: %d\nBatch: %s",
		r.Total, r.Queued, r.BatchID)
}
