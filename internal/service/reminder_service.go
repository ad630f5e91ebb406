package service

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"worklog/internal/model"
)

// dueSoonDays is how far ahead a deadline counts as approaching.
const dueSoonDays = 2

// Digest is a rendered reminder message.
type Digest struct {
	Text    string
	Overdue int
	DueSoon int
	Review  int
}

// Empty reports whether the digest has nothing that needs attention.
func (d Digest) Empty() bool {
	return d.Overdue == 0 && d.DueSoon == 0 && d.Review == 0
}

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	store TaskStore
}

func NewReminderService(st TaskStore) *ReminderService {
	return &ReminderService{store: st}
}

// DailySummary renders overdue, approaching and review-pending work as Telegram HTML.
// A non-empty department restricts the digest to that department.
func (s *ReminderService) DailySummary(now time.Time, department string) Digest {
	f := model.Filter{Department: department}

	var overdue, dueSoon, review []model.TaskRecord
	counts := make(map[model.Status]int)
	for rec := range s.store.List(f) {
		counts[rec.Status]++
		switch {
		case model.IsOverdue(rec, now):
			overdue = append(overdue, rec)
		case rec.Status.Open() && dueWithin(rec, now, dueSoonDays):
			dueSoon = append(dueSoon, rec)
		}
		if rec.Status == model.StatusPendingReview {
			review = append(review, rec)
		}
	}
	sortByDeadline(overdue)
	sortByDeadline(dueSoon)

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily work report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format("02.01.2006")))
	if department != "" {
		builder.WriteString(fmt.Sprintf("🏢 %s\n", html.EscapeString(department)))
	}

	builder.WriteString("\n⚠️ <b>Overdue</b>\n")
	if len(overdue) == 0 {
		builder.WriteString("— nothing overdue\n")
	}
	for _, rec := range overdue {
		builder.WriteString(formatTask(rec, now))
	}
	if department == "" {
		if byDept := s.OverdueByDepartment(now); len(byDept) > 1 {
			builder.WriteString("\n🏢 <b>Overdue by department</b>\n")
			for _, dc := range byDept {
				name := dc.Department
				if name == "" {
					name = "no department"
				}
				builder.WriteString(fmt.Sprintf("• %s: %d\n", html.EscapeString(name), dc.Overdue))
			}
		}
	}

	builder.WriteString("\n⏳ <b>Due soon</b>\n")
	if len(dueSoon) == 0 {
		builder.WriteString("— no deadlines in the next two days\n")
	}
	for _, rec := range dueSoon {
		builder.WriteString(formatTask(rec, now))
	}

	if len(review) > 0 {
		builder.WriteString("\n🔎 <b>Waiting for review</b>\n")
		for _, rec := range review {
			builder.WriteString(fmt.Sprintf("• %s\n", taskTitle(rec)))
		}
	}

	builder.WriteString("\n📊 ")
	builder.WriteString(FormatStatusCounts(counts))

	return Digest{
		Text:    strings.TrimSpace(builder.String()),
		Overdue: len(overdue),
		DueSoon: len(dueSoon),
		Review:  len(review),
	}
}

// FormatStatusCounts renders counts in the fixed status order, skipping zeros.
func FormatStatusCounts(counts map[model.Status]int) string {
	var parts []string
	for _, st := range model.Statuses {
		if n := counts[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", st, n))
		}
	}
	if len(parts) == 0 {
		return "no tasks logged"
	}
	return strings.Join(parts, " · ")
}

func dueWithin(rec model.TaskRecord, now time.Time, days int) bool {
	left, ok := model.DaysUntilDeadline(rec, now)
	return ok && left >= 0 && left <= days
}

// ShortID is the id prefix shown to people.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func taskTitle(rec model.TaskRecord) string {
	title := strings.TrimSpace(rec.Description)
	if title == "" {
		title = "(no description)"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<code>%s</code> %s", ShortID(rec.ID), html.EscapeString(title)))
	var who []string
	for _, part := range []string{rec.Name, rec.Project} {
		if part = strings.TrimSpace(part); part != "" {
			who = append(who, html.EscapeString(part))
		}
	}
	if len(who) > 0 {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", strings.Join(who, ", ")))
	}
	return sb.String()
}

func formatTask(rec model.TaskRecord, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	left, hasDeadline := model.DaysUntilDeadline(rec, now)
	switch {
	case model.IsOverdue(rec, now):
		icon = "⚠️"
	case hasDeadline && left <= dueSoonDays:
		icon = "⏳"
	}
	sb.WriteString(fmt.Sprintf("%s %s", icon, taskTitle(rec)))

	if hasDeadline {
		if left < 0 {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s — <b>%d d overdue</b>", rec.Deadline, -left))
		} else {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · %d d left", rec.Deadline, left))
		}
	}
	if rec.Progress != nil {
		sb.WriteString(fmt.Sprintf(" · %d%%", *rec.Progress))
	}
	if rec.Note != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(rec.Note)))
	}

	sb.WriteByte('\n')
	return sb.String()
}

// OverdueByDepartment counts overdue records per department, sorted by name.
func (s *ReminderService) OverdueByDepartment(now time.Time) []DepartmentCount {
	counts := make(map[string]int)
	for rec := range s.store.List(model.Filter{}) {
		if model.IsOverdue(rec, now) {
			counts[rec.Department]++
		}
	}
	out := make([]DepartmentCount, 0, len(counts))
	for dept, n := range counts {
		out = append(out, DepartmentCount{Department: dept, Overdue: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	return out
}

// DepartmentCount pairs a department with its overdue count.
type DepartmentCount struct {
	Department string
	Overdue    int
}
