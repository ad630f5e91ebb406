package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"worklog/internal/config"
	"worklog/internal/model"
	"worklog/internal/service"
	"worklog/internal/store"
)

func newCLI(t *testing.T) *service.TaskService {
	t.Helper()
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	st, err := store.Open(store.Options{
		Path:   "/data/tasks.json",
		FS:     store.NewMemFS(),
		Clock:  func() time.Time { return now },
		Logger: log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	return service.NewTaskService(st, func() time.Time { return now })
}

func parse(t *testing.T, args ...string) *cliOptions {
	t.Helper()
	fs := flag.NewFlagSet("worklog", flag.ContinueOnError)
	o := registerFlags(fs)
	require.NoError(t, fs.Parse(args))
	o.visited = visitedFlags(fs)
	return o
}

func run(t *testing.T, svc *service.TaskService, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := runCommand(context.Background(), svc, parse(t, args...), &out)
	return out.String(), err
}

func TestCLI(t *testing.T) {
	svc := newCLI(t)

	out, err := run(t, svc, "-mode", "add", "-json", "-name", "Tuan", "-project", "Bridge",
		"-task", "Inspect piles", "-status", "InProgress", "-deadline", "2024-06-01", "-progress", "30")
	require.NoError(t, err)
	var added []model.TaskRecord
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	require.Len(t, added, 1)
	rec := added[0]
	assert.Equal(t, model.Date("2024-06-10"), rec.OccurredDate)
	require.NotNil(t, rec.Progress)
	assert.Equal(t, 30, *rec.Progress)

	t.Run("Should list as a table", func(t *testing.T) {
		out, err := run(t, svc, "-mode", "list", "-f-project", "bridge")
		require.NoError(t, err)
		assert.Contains(t, out, "Inspect piles")
		assert.Contains(t, out, "30%")
	})

	t.Run("Should report overdue work", func(t *testing.T) {
		out, err := run(t, svc, "-mode", "overdue", "-json")
		require.NoError(t, err)
		assert.Contains(t, out, rec.ID)

		out, err = run(t, svc, "-mode", "overdue", "-json", "-as-of", "2024-05-31")
		require.NoError(t, err)
		assert.JSONEq(t, "[]", out)
	})

	t.Run("Should only patch given flags", func(t *testing.T) {
		out, err := run(t, svc, "-mode", "update", "-json", "-id", rec.ID[:8], "-note", "ok", "-clear-progress")
		require.NoError(t, err)
		var updated []model.TaskRecord
		require.NoError(t, json.Unmarshal([]byte(out), &updated))
		assert.Equal(t, "ok", updated[0].Note)
		assert.Nil(t, updated[0].Progress)
		assert.Equal(t, "Inspect piles", updated[0].Description)
		assert.Equal(t, model.Date("2024-06-01"), updated[0].Deadline)
	})

	t.Run("Should summarise", func(t *testing.T) {
		out, err := run(t, svc, "-mode", "summary", "-by", "project,status", "-json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"Bridge / InProgress": 1}`, out)

		_, err = run(t, svc, "-mode", "summary", "-by", "colour")
		assert.ErrorIs(t, err, store.ErrValidation)
	})

	t.Run("Should write a PDF report", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.pdf")
		_, err := run(t, svc, "-mode", "report", "-out", path)
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	})

	t.Run("Should reject bad input", func(t *testing.T) {
		_, err := run(t, svc, "-mode", "add", "-task", "x", "-repeat", "-2")
		assert.ErrorIs(t, err, store.ErrValidation)

		_, err = run(t, svc, "-mode", "update", "-id", rec.ID)
		assert.ErrorIs(t, err, store.ErrValidation)

		_, err = run(t, svc, "-mode", "list", "-from", "June")
		assert.ErrorIs(t, err, store.ErrValidation)
	})

	t.Run("Should delete by id", func(t *testing.T) {
		_, err := run(t, svc, "-mode", "delete", "-id", rec.ID)
		require.NoError(t, err)
		_, err = run(t, svc, "-mode", "delete", "-id", rec.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestClearToken(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, config.SaveToken("123:abc"))

	var out bytes.Buffer
	require.NoError(t, clearToken(&out))
	assert.Contains(t, out.String(), "removed")

	var cfg config.Config
	assert.False(t, cfg.ResolveToken())

	// Clearing again is not an error.
	require.NoError(t, clearToken(io.Discard))
}
