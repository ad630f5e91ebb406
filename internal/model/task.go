package model

import (
	"bytes"
	"encoding/json"
	"maps"
	"sort"
	"time"
)

// TaskRecord is one logged work item.
type TaskRecord struct {
	ID           string
	Name         string
	Department   string
	Project      string
	Category     string
	Description  string
	Note         string
	OccurredDate Date
	StartTime    TimeOfDay
	RepeatCount  int
	Status       Status
	Deadline     Date
	FeedbackDate Date
	NextPlanDate Date
	Progress     *int
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Extra holds keys this version does not know about; they are written back untouched.
	Extra map[string]json.RawMessage
}

// recordJSON fixes the on-disk key names and their order.
type recordJSON struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Department   string     `json:"department"`
	Project      string     `json:"project"`
	Category     string     `json:"category"`
	Description  string     `json:"task"`
	Note         string     `json:"note"`
	OccurredDate Date       `json:"date"`
	StartTime    TimeOfDay  `json:"time,omitempty"`
	RepeatCount  int        `json:"repeat"`
	Status       Status     `json:"status"`
	Deadline     Date       `json:"deadline,omitempty"`
	FeedbackDate Date       `json:"feedback_date,omitempty"`
	NextPlanDate Date       `json:"next_plan_date,omitempty"`
	Progress     *int       `json:"progress,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

var knownKeys = map[string]struct{}{
	"id": {}, "name": {}, "department": {}, "project": {}, "category": {}, "task": {},
	"note": {}, "date": {}, "time": {}, "repeat": {}, "status": {}, "deadline": {},
	"feedback_date": {}, "next_plan_date": {}, "progress": {}, "created_at": {}, "updated_at": {},
}

func (r TaskRecord) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ID:           r.ID,
		Name:         r.Name,
		Department:   r.Department,
		Project:      r.Project,
		Category:     r.Category,
		Description:  r.Description,
		Note:         r.Note,
		OccurredDate: r.OccurredDate,
		StartTime:    r.StartTime,
		RepeatCount:  r.RepeatCount,
		Status:       r.Status,
		Deadline:     r.Deadline,
		FeedbackDate: r.FeedbackDate,
		NextPlanDate: r.NextPlanDate,
		Progress:     r.Progress,
	}
	if !r.CreatedAt.IsZero() {
		out.CreatedAt = &r.CreatedAt
	}
	if !r.UpdatedAt.IsZero() {
		out.UpdatedAt = &r.UpdatedAt
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	body := bytes.TrimRight(buf.Bytes(), "\n")
	if len(r.Extra) == 0 {
		return body, nil
	}

	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		if _, known := knownKeys[k]; known {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Splice extras before the closing brace.
	body = body[:len(body)-1]
	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		body = append(body, ',')
		body = append(body, name...)
		body = append(body, ':')
		body = append(body, r.Extra[k]...)
	}
	return append(body, '}'), nil
}

func (r *TaskRecord) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = TaskRecord{
		ID:           in.ID,
		Name:         in.Name,
		Department:   in.Department,
		Project:      in.Project,
		Category:     in.Category,
		Description:  in.Description,
		Note:         in.Note,
		OccurredDate: in.OccurredDate,
		StartTime:    in.StartTime,
		RepeatCount:  in.RepeatCount,
		Status:       in.Status,
		Deadline:     in.Deadline,
		FeedbackDate: in.FeedbackDate,
		NextPlanDate: in.NextPlanDate,
		Progress:     in.Progress,
	}
	if in.CreatedAt != nil {
		r.CreatedAt = *in.CreatedAt
	}
	if in.UpdatedAt != nil {
		r.UpdatedAt = *in.UpdatedAt
	}
	for k, v := range raw {
		if _, known := knownKeys[k]; known {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]json.RawMessage)
		}
		r.Extra[k] = v
	}
	return nil
}

// Clone returns a copy that shares no mutable state with r.
func (r TaskRecord) Clone() TaskRecord {
	out := r
	if r.Progress != nil {
		p := *r.Progress
		out.Progress = &p
	}
	if r.Extra != nil {
		out.Extra = maps.Clone(r.Extra)
	}
	return out
}

// TaskInput carries the caller-supplied fields of a new record, as typed into a form.
type TaskInput struct {
	Name         string
	Department   string
	Project      string
	Category     string
	Description  string
	Note         string
	OccurredDate string
	StartTime    string
	RepeatCount  int
	Status       string
	Deadline     string
	FeedbackDate string
	NextPlanDate string
	Progress     *int
}

// TaskPatch is a partial update. Nil fields are left alone; an empty string clears
// an optional date or time.
type TaskPatch struct {
	Name          *string
	Department    *string
	Project       *string
	Category      *string
	Description   *string
	Note          *string
	OccurredDate  *string
	StartTime     *string
	RepeatCount   *int
	Status        *string
	Deadline      *string
	FeedbackDate  *string
	NextPlanDate  *string
	Progress      *int
	ClearProgress bool
}

// IsEmpty reports whether the patch would change nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Name == nil && p.Department == nil && p.Project == nil && p.Category == nil &&
		p.Description == nil && p.Note == nil && p.OccurredDate == nil && p.StartTime == nil &&
		p.RepeatCount == nil && p.Status == nil && p.Deadline == nil && p.FeedbackDate == nil &&
		p.NextPlanDate == nil && p.Progress == nil && !p.ClearProgress
}
