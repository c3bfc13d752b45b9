package moderation

import (
	"fmt"
	"html"
	"strings"

	"psybot/internal/models"
)

// Callback data prefixes of the inline decision buttons.
const (
	CallbackApprove = "approve"
	CallbackReject  = "reject"
)

// PreviewLimit is how many characters of the map text admins see in lists.
const PreviewLimit = 500

// DecisionButtons is the inline keyboard attached to a pending submission.
func DecisionButtons(id string) [][]models.InlineButton {
	return [][]models.InlineButton{{
		{Text: "✅ Одобрить", Data: CallbackApprove + ":" + id},
		{Text: "❌ Отклонить", Data: CallbackReject + ":" + id},
	}}
}

// ParseCallback splits "approve:<id>" / "reject:<id>" into a decision and
// a submission id.
func ParseCallback(data string) (models.SubmissionStatus, string, bool) {
	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", false
	}
	switch parts[0] {
	case CallbackApprove:
		return models.StatusApproved, parts[1], true
	case CallbackReject:
		return models.StatusRejected, parts[1], true
	default:
		return "", "", false
	}
}

// SubmissionNotice is the HTML message admins receive for a new submission.
func SubmissionNotice(sub *models.Submission, username string) string {
	var b strings.Builder
	b.WriteString("🗺 <b>Новая психологическая карта на модерацию</b>\n")
	fmt.Fprintf(&b, "ID карты: <code>%s</code>\n", html.EscapeString(sub.ID))
	fmt.Fprintf(&b, "Пользователь: <code>%d</code>", sub.OwnerUserID)
	if u := strings.TrimPrefix(username, "@"); u != "" {
		fmt.Fprintf(&b, " @%s", html.EscapeString(u))
	}
	fmt.Fprintf(&b, "\nТип карты: %s\n", sub.Variant.Title())
	if sub.TopicTitle != "" {
		fmt.Fprintf(&b, "Тема: %s\n", html.EscapeString(sub.TopicTitle))
	}

	b.WriteString("\n<b>Вопросы и ответы:</b>\n")
	for i, q := range sub.Questions {
		fmt.Fprintf(&b, "<b>%d. %s</b>\n%s\n\n", i+1, html.EscapeString(q), html.EscapeString(sub.Answers[i]))
	}

	b.WriteString("<b>Сгенерированная карта:</b>\n")
	b.WriteString(html.EscapeString(Preview(sub.GeneratedText, PreviewLimit)))
	return b.String()
}

// PendingSummary is one entry of the /pending listing.
func PendingSummary(sub *models.Submission) string {
	return fmt.Sprintf("🗺 <b>Карта %s</b>\nПользователь: <code>%d</code>\nТип: %s\nСоздана: %s\n\n%s",
		html.EscapeString(sub.ID),
		sub.OwnerUserID,
		sub.Variant.Title(),
		sub.CreatedAt.Format("2006-01-02 15:04"),
		html.EscapeString(Preview(sub.GeneratedText, PreviewLimit)))
}

// DecisionSummary replaces the admin's message once a button was pressed.
func DecisionSummary(res Result, id string) string {
	switch res.Outcome {
	case OutcomeNotFound:
		return fmt.Sprintf("Карта %s не найдена.", id)
	case OutcomeAlreadyDecided:
		return fmt.Sprintf("Карта %s уже обработана (%s).", id, statusLabel(res.Submission.Status))
	}
	text := fmt.Sprintf("Карта %s: %s.", id, statusLabel(res.Submission.Status))
	if !res.Delivered {
		text += " Пользователю не удалось доставить уведомление."
	}
	return text
}

func statusLabel(s models.SubmissionStatus) string {
	switch s {
	case models.StatusApproved:
		return "одобрена ✅"
	case models.StatusRejected:
		return "отклонена ❌"
	default:
		return "ожидает модерации"
	}
}

// Preview cuts text to limit characters, marking the cut with an ellipsis.
func Preview(text string, limit int) string {
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit]) + "..."
}
