package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"worklog/internal/model"
	"worklog/internal/report"
	"worklog/internal/service"
	"worklog/internal/store"
)

type Server struct {
	tasks *service.TaskService
	clock func() time.Time
}

func New(tasks *service.TaskService, clock func() time.Time) *Server {
	if clock == nil {
		clock = time.Now
	}
	return &Server{tasks: tasks, clock: clock}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /tasks", s.handleList)
	mux.HandleFunc("POST /tasks", s.handleCreate)
	mux.HandleFunc("GET /tasks/{id}", s.handleGet)
	mux.HandleFunc("PATCH /tasks/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /tasks/{id}", s.handleDelete)
	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.HandleFunc("GET /overdue", s.handleOverdue)
	mux.HandleFunc("GET /report.pdf", s.handleReport)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("[info] http api listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	var records []model.TaskRecord
	if r.URL.Query().Get("open") == "true" {
		records = s.tasks.ListOpen(f)
	} else {
		records = s.tasks.List(f)
	}
	if records == nil {
		records = []model.TaskRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decode(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	rec, err := s.tasks.CreateTask(r.Context(), req.input())
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	w.Header().Set("Location", "/tasks/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.tasks.Resolve(r.PathValue("id"))
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := decode(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	rec, err := s.tasks.UpdateTask(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		writeStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type summaryGroup struct {
	Key   []string `json:"key"`
	Count int      `json:"count"`
}

type summaryResponse struct {
	Fields []model.GroupField `json:"fields"`
	Groups []summaryGroup     `json:"groups"`
	Total  int                `json:"total"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	fields, err := parseGroupBy(r.URL.Query().Get("by"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	sum, err := s.tasks.Summary(f, fields...)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	resp := summaryResponse{Fields: sum.Fields, Groups: make([]summaryGroup, 0, len(sum.Groups)), Total: sum.Total}
	for _, g := range sum.Groups {
		resp.Groups = append(resp.Groups, summaryGroup{Key: g.Key, Count: g.Count})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOverdue(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	asOf, err := s.asOf(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	records := s.tasks.Overdue(f, asOf)
	if records == nil {
		records = []model.TaskRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	fields, err := parseGroupBy(r.URL.Query().Get("by"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	asOf, err := s.asOf(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, s.tasks, report.Options{Filter: f, GroupBy: fields, AsOf: asOf}); err != nil {
		writeStoreErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="worklog.pdf"`)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) asOf(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return s.clock(), nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, err
	}
	t, _ := d.Time()
	return t, nil
}

func parseFilter(r *http.Request) (model.Filter, error) {
	q := r.URL.Query()
	f := model.Filter{
		Project:    q.Get("project"),
		Department: q.Get("department"),
		Category:   q.Get("category"),
		Name:       q.Get("name"),
	}
	if raw := q.Get("status"); raw != "" {
		st, err := model.ParseStatus(raw)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	var err error
	if f.From, err = model.ParseDate(q.Get("from")); err != nil {
		return f, err
	}
	if f.To, err = model.ParseDate(q.Get("to")); err != nil {
		return f, err
	}
	return f, nil
}

func parseGroupBy(raw string) ([]model.GroupField, error) {
	if strings.TrimSpace(raw) == "" {
		return []model.GroupField{model.GroupByStatus}, nil
	}
	var fields []model.GroupField
	for _, part := range strings.Split(raw, ",") {
		f, err := model.ParseGroupField(part)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func writeStoreErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		writeErr(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrNotFound):
		writeErr(w, http.StatusNotFound, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeErr(w, http.StatusServiceUnavailable, err)
	default:
		log.Printf("request failed: %v", err)
		writeErr(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
