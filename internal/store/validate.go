package store

import (
	"strings"

	"worklog/internal/model"
)

func newRecord(in model.TaskInput) (model.TaskRecord, error) {
	rec := model.TaskRecord{
		Name:        strings.TrimSpace(in.Name),
		Department:  strings.TrimSpace(in.Department),
		Project:     strings.TrimSpace(in.Project),
		Category:    strings.TrimSpace(in.Category),
		Description: strings.TrimSpace(in.Description),
		Note:        strings.TrimSpace(in.Note),
		RepeatCount: in.RepeatCount,
	}

	var err error
	if rec.OccurredDate, err = requiredDate("date", in.OccurredDate); err != nil {
		return model.TaskRecord{}, err
	}
	if rec.StartTime, err = optionalTime(in.StartTime); err != nil {
		return model.TaskRecord{}, err
	}
	if err := checkRepeat(rec.RepeatCount); err != nil {
		return model.TaskRecord{}, err
	}
	if rec.Status, err = status(in.Status); err != nil {
		return model.TaskRecord{}, err
	}
	if rec.Deadline, err = optionalDate("deadline", in.Deadline); err != nil {
		return model.TaskRecord{}, err
	}
	if rec.FeedbackDate, err = optionalDate("feedback_date", in.FeedbackDate); err != nil {
		return model.TaskRecord{}, err
	}
	if rec.NextPlanDate, err = optionalDate("next_plan_date", in.NextPlanDate); err != nil {
		return model.TaskRecord{}, err
	}
	if in.Progress != nil {
		if err := checkProgress(*in.Progress); err != nil {
			return model.TaskRecord{}, err
		}
		p := *in.Progress
		rec.Progress = &p
	}
	return rec, nil
}

// applyPatch returns a patched copy of rec; rec itself is not modified.
func applyPatch(rec model.TaskRecord, p model.TaskPatch) (model.TaskRecord, error) {
	if p.IsEmpty() {
		return model.TaskRecord{}, invalid("patch", "no fields to update")
	}
	out := rec.Clone()

	text := []struct {
		src *string
		dst *string
	}{
		{p.Name, &out.Name},
		{p.Department, &out.Department},
		{p.Project, &out.Project},
		{p.Category, &out.Category},
		{p.Description, &out.Description},
		{p.Note, &out.Note},
	}
	for _, f := range text {
		if f.src != nil {
			*f.dst = strings.TrimSpace(*f.src)
		}
	}

	var err error
	if p.OccurredDate != nil {
		if out.OccurredDate, err = requiredDate("date", *p.OccurredDate); err != nil {
			return model.TaskRecord{}, err
		}
	}
	if p.StartTime != nil {
		if out.StartTime, err = optionalTime(*p.StartTime); err != nil {
			return model.TaskRecord{}, err
		}
	}
	if p.RepeatCount != nil {
		if err := checkRepeat(*p.RepeatCount); err != nil {
			return model.TaskRecord{}, err
		}
		out.RepeatCount = *p.RepeatCount
	}
	if p.Status != nil {
		if out.Status, err = status(*p.Status); err != nil {
			return model.TaskRecord{}, err
		}
	}

	dates := []struct {
		field string
		src   *string
		dst   *model.Date
	}{
		{"deadline", p.Deadline, &out.Deadline},
		{"feedback_date", p.FeedbackDate, &out.FeedbackDate},
		{"next_plan_date", p.NextPlanDate, &out.NextPlanDate},
	}
	for _, f := range dates {
		if f.src == nil {
			continue
		}
		if *f.dst, err = optionalDate(f.field, *f.src); err != nil {
			return model.TaskRecord{}, err
		}
	}

	switch {
	case p.ClearProgress && p.Progress != nil:
		return model.TaskRecord{}, invalid("progress", "cannot set and clear at once")
	case p.ClearProgress:
		out.Progress = nil
	case p.Progress != nil:
		if err := checkProgress(*p.Progress); err != nil {
			return model.TaskRecord{}, err
		}
		v := *p.Progress
		out.Progress = &v
	}
	return out, nil
}

// checkLoaded validates a record read from disk and normalizes legacy status labels.
// Optional dates are kept as written.
func checkLoaded(rec *model.TaskRecord) error {
	if _, ok := rec.OccurredDate.Time(); !ok {
		return invalid("date", "%q is not a calendar date", rec.OccurredDate)
	}
	st, err := model.ParseStatus(string(rec.Status))
	if err != nil {
		return invalid("status", "%v", err)
	}
	rec.Status = st
	if err := checkRepeat(rec.RepeatCount); err != nil {
		return err
	}
	if rec.Progress != nil {
		return checkProgress(*rec.Progress)
	}
	return nil
}

func requiredDate(field, raw string) (model.Date, error) {
	if strings.TrimSpace(raw) == "" {
		return "", invalid(field, "is required")
	}
	return optionalDate(field, raw)
}

func optionalDate(field, raw string) (model.Date, error) {
	d, err := model.ParseDate(raw)
	if err != nil {
		return "", invalid(field, "%v", err)
	}
	return d, nil
}

func optionalTime(raw string) (model.TimeOfDay, error) {
	t, err := model.ParseTimeOfDay(raw)
	if err != nil {
		return "", invalid("time", "%v", err)
	}
	return t, nil
}

func status(raw string) (model.Status, error) {
	st, err := model.ParseStatus(raw)
	if err != nil {
		return "", invalid("status", "must be one of %v", model.Statuses)
	}
	return st, nil
}

func checkRepeat(n int) error {
	if n < 1 {
		return invalid("repeat", "must be at least 1, got %d", n)
	}
	return nil
}

func checkProgress(n int) error {
	if n < 0 || n > 100 {
		return invalid("progress", "must be between 0 and 100, got %d", n)
	}
	return nil
}
