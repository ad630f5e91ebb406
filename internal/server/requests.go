package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"worklog/internal/model"
)

// createRequest uses the same keys as the stored file.
type createRequest struct {
	Name         string `json:"name"`
	Department   string `json:"department"`
	Project      string `json:"project"`
	Category     string `json:"category"`
	Description  string `json:"task"`
	Note         string `json:"note"`
	OccurredDate string `json:"date"`
	StartTime    string `json:"time"`
	RepeatCount  int    `json:"repeat"`
	Status       string `json:"status"`
	Deadline     string `json:"deadline"`
	FeedbackDate string `json:"feedback_date"`
	NextPlanDate string `json:"next_plan_date"`
	Progress     *int   `json:"progress"`
}

func (c createRequest) input() model.TaskInput {
	return model.TaskInput{
		Name:         c.Name,
		Department:   c.Department,
		Project:      c.Project,
		Category:     c.Category,
		Description:  c.Description,
		Note:         c.Note,
		OccurredDate: c.OccurredDate,
		StartTime:    c.StartTime,
		RepeatCount:  c.RepeatCount,
		Status:       c.Status,
		Deadline:     c.Deadline,
		FeedbackDate: c.FeedbackDate,
		NextPlanDate: c.NextPlanDate,
		Progress:     c.Progress,
	}
}

// patchRequest leaves absent keys alone; "progress": null clears progress.
type patchRequest struct {
	Name         *string         `json:"name"`
	Department   *string         `json:"department"`
	Project      *string         `json:"project"`
	Category     *string         `json:"category"`
	Description  *string         `json:"task"`
	Note         *string         `json:"note"`
	OccurredDate *string         `json:"date"`
	StartTime    *string         `json:"time"`
	RepeatCount  *int            `json:"repeat"`
	Status       *string         `json:"status"`
	Deadline     *string         `json:"deadline"`
	FeedbackDate *string         `json:"feedback_date"`
	NextPlanDate *string         `json:"next_plan_date"`
	Progress     json.RawMessage `json:"progress"`
}

func (p patchRequest) patch() (model.TaskPatch, error) {
	out := model.TaskPatch{
		Name:         p.Name,
		Department:   p.Department,
		Project:      p.Project,
		Category:     p.Category,
		Description:  p.Description,
		Note:         p.Note,
		OccurredDate: p.OccurredDate,
		StartTime:    p.StartTime,
		RepeatCount:  p.RepeatCount,
		Status:       p.Status,
		Deadline:     p.Deadline,
		FeedbackDate: p.FeedbackDate,
		NextPlanDate: p.NextPlanDate,
	}
	switch {
	case len(p.Progress) == 0:
	case bytes.Equal(bytes.TrimSpace(p.Progress), []byte("null")):
		out.ClearProgress = true
	default:
		var n int
		if err := json.Unmarshal(p.Progress, &n); err != nil {
			return model.TaskPatch{}, fmt.Errorf("progress must be an integer or null")
		}
		out.Progress = &n
	}
	return out, nil
}
