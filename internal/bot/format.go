package bot

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"worklog/internal/model"
	"worklog/internal/service"
	"worklog/internal/store"
)

func formatTask(rec model.TaskRecord, now time.Time) string {
	var b strings.Builder
	icon := iconDefault
	left, hasDeadline := model.DaysUntilDeadline(rec, now)
	switch {
	case model.IsOverdue(rec, now):
		icon = iconOverdue
	case hasDeadline && left >= 0 && left <= 2:
		icon = iconDue
	}
	b.WriteString(fmt.Sprintf("%s <code>%s</code> %s", icon, service.ShortID(rec.ID), escape(normalizeTitle(rec.Description))))
	if rec.Project != "" {
		b.WriteString(fmt.Sprintf(" <i>· %s</i>", escape(rec.Project)))
	}
	b.WriteByte('\n')

	b.WriteString(fmt.Sprintf("   %s", rec.Status))
	if rec.Progress != nil {
		b.WriteString(fmt.Sprintf(" · %d%%", *rec.Progress))
	}
	if hasDeadline {
		if left < 0 {
			b.WriteString(fmt.Sprintf(" · ⏰ %s — <b>overdue</b>", rec.Deadline))
		} else {
			b.WriteString(fmt.Sprintf(" · ⏰ %s · %d d left", rec.Deadline, left))
		}
	}
	b.WriteByte('\n')
	if rec.Note != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(rec.Note)))
	}
	return b.String()
}

// formatTaskList renders up to maxListed records with one "done" button per open record.
func formatTaskList(records []model.TaskRecord, now time.Time) (string, [][]tgbotapi.InlineKeyboardButton) {
	var builder strings.Builder
	var buttons [][]tgbotapi.InlineKeyboardButton
	for i, rec := range records {
		if i == maxListed {
			builder.WriteString(fmt.Sprintf("… and %d more\n", len(records)-maxListed))
			break
		}
		builder.WriteString(formatTask(rec, now))
		if rec.Status.Open() {
			label := fmt.Sprintf("✅ %s · %s", service.ShortID(rec.ID), shortTitle(rec.Description, 24))
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(label, cbDonePrefix+rec.ID),
			))
		}
	}
	return strings.TrimSpace(builder.String()), buttons
}

func formatSummary(sum store.Summary) string {
	names := make([]string, len(sum.Fields))
	for i, f := range sum.Fields {
		names[i] = string(f)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Summary by %s</b>\n", escape(strings.Join(names, " / "))))
	for _, g := range sum.Groups {
		key := make([]string, len(g.Key))
		for i, k := range g.Key {
			if k == "" {
				k = "—"
			}
			key[i] = escape(k)
		}
		b.WriteString(fmt.Sprintf("• %s: <b>%d</b>\n", strings.Join(key, " / "), g.Count))
	}
	b.WriteString(fmt.Sprintf("\nTotal: %d", sum.Total))
	return b.String()
}

// formatStatusBoard lists every status, zero counts included.
func formatStatusBoard(counts map[model.Status]int) string {
	var b strings.Builder
	b.WriteString("📊 <b>Tasks by status</b>\n")
	total := 0
	for _, st := range model.Statuses {
		b.WriteString(fmt.Sprintf("• %s: <b>%d</b>\n", st, counts[st]))
		total += counts[st]
	}
	b.WriteString(fmt.Sprintf("\nTotal: %d", total))
	return b.String()
}

func formatHistory(entries []model.ReminderLog) string {
	var b strings.Builder
	b.WriteString("🗂 <b>Delivered digests</b>\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("• %s at %s · %d overdue\n", e.Day, e.SentAt.Format("15:04"), e.Overdue))
	}
	return strings.TrimSpace(b.String())
}

func parseFields(args string) ([]model.GroupField, error) {
	if strings.TrimSpace(args) == "" {
		return []model.GroupField{model.GroupByStatus}, nil
	}
	var fields []model.GroupField
	for _, raw := range strings.FieldsFunc(args, func(r rune) bool { return r == ',' || unicode.IsSpace(r) }) {
		f, err := model.ParseGroupField(raw)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// parseAddArgs reads "project | description | deadline"; the deadline is optional.
func parseAddArgs(args string) (model.TaskInput, error) {
	parts := strings.Split(args, "|")
	if len(parts) < 2 || len(parts) > 3 {
		return model.TaskInput{}, fmt.Errorf("usage: /add project | description | 2024-06-30")
	}
	in := model.TaskInput{
		Project:     strings.TrimSpace(parts[0]),
		Description: strings.TrimSpace(parts[1]),
		Status:      string(model.StatusInProgress),
	}
	if in.Description == "" {
		return model.TaskInput{}, fmt.Errorf("description must not be empty")
	}
	if len(parts) == 3 {
		in.Deadline = strings.TrimSpace(parts[2])
	}
	return in, nil
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func escape(s string) string {
	return html.EscapeString(s)
}
