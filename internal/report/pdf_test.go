package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklog/internal/model"
	"worklog/internal/service"
	"worklog/internal/store"
)

type failingSource struct{}

func (failingSource) Summary(model.Filter, ...model.GroupField) (store.Summary, error) {
	return store.Summary{}, errors.New("boom")
}

func (failingSource) Overdue(model.Filter, time.Time) []model.TaskRecord { return nil }

func TestWrite(t *testing.T) {
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	st, err := store.Open(store.Options{
		Path:   "/data/tasks.json",
		FS:     store.NewMemFS(),
		Clock:  func() time.Time { return now },
		Logger: log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	svc := service.NewTaskService(st, func() time.Time { return now })

	for _, in := range []model.TaskInput{
		{Name: "Nguyễn Văn A", Project: "Dự án 43DTM", Description: "Kiểm tra bản vẽ", Status: "InProgress", Deadline: "2024-06-01"},
		{Name: "B", Project: "Bridge", Description: "Survey", Status: "Done"},
	} {
		_, err := svc.CreateTask(context.Background(), in)
		require.NoError(t, err)
	}

	t.Run("Should render a PDF document", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, svc, Options{AsOf: now, GroupBy: []model.GroupField{model.GroupByProject, model.GroupByStatus}}))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
		assert.Contains(t, buf.String(), "%%EOF")
	})

	t.Run("Should render an empty selection", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, svc, Options{Filter: model.Filter{Project: "none"}}))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	})

	t.Run("Should propagate source errors", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, Write(&buf, failingSource{}, Options{}))
		assert.Zero(t, buf.Len())
	})
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc", clip(" abc ", 5))
	assert.Equal(t, "ab…", clip("abcdef", 3))
}
