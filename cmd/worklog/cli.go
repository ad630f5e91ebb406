package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"worklog/internal/config"
	"worklog/internal/model"
	"worklog/internal/report"
	"worklog/internal/service"
	"worklog/internal/store"
)

type cliOptions struct {
	mode       string
	configPath string
	token      string
	asJSON     bool
	out        string
	by         string
	asOf       string
	open       bool
	id         string

	record  recordFlags
	filter  filterFlags
	visited map[string]bool
}

type recordFlags struct {
	name, department, project, category, description, note string
	date, startTime, status, deadline, feedback, nextPlan    string
	repeat, progress                                         int
	clearProgress                                            bool
}

type filterFlags struct {
	project, status, department, category, name, from, to string
}

func registerFlags(fs *flag.FlagSet) *cliOptions {
	o := &cliOptions{}
	fs.StringVar(&o.mode, "mode", "help", "serve|add|list|update|delete|summary|overdue|report|set-token|clear-token|quarantine")
	fs.StringVar(&o.configPath, "config", "", "optional YAML config file")
	fs.StringVar(&o.token, "token", "", "telegram token (set-token mode)")
	fs.BoolVar(&o.asJSON, "json", false, "print JSON instead of a table")
	fs.StringVar(&o.out, "out", "worklog.pdf", "report output path")
	fs.StringVar(&o.by, "by", "status", "comma separated group fields for summary/report")
	fs.StringVar(&o.asOf, "as-of", "", "reference day for overdue (YYYY-MM-DD, default today)")
	fs.BoolVar(&o.open, "open", false, "only list tasks that are not done or abandoned")
	fs.StringVar(&o.id, "id", "", "task id or unique id prefix (update/delete)")

	r := &o.record
	fs.StringVar(&r.name, "name", "", "performer")
	fs.StringVar(&r.department, "department", "", "department")
	fs.StringVar(&r.project, "project", "", "project")
	fs.StringVar(&r.category, "category", "", "category")
	fs.StringVar(&r.description, "task", "", "task description")
	fs.StringVar(&r.note, "note", "", "note")
	fs.StringVar(&r.date, "date", "", "day the work happened (YYYY-MM-DD, default today)")
	fs.StringVar(&r.startTime, "time", "", "start time HH:MM (default now)")
	fs.IntVar(&r.repeat, "repeat", 1, "repetitions")
	fs.StringVar(&r.status, "status", "", "Done|InProgress|PendingReview|OnHold|Abandoned")
	fs.StringVar(&r.deadline, "deadline", "", "deadline YYYY-MM-DD")
	fs.StringVar(&r.feedback, "feedback-date", "", "feedback date YYYY-MM-DD")
	fs.StringVar(&r.nextPlan, "next-plan-date", "", "next plan date YYYY-MM-DD")
	fs.IntVar(&r.progress, "progress", -1, "progress 0-100")
	fs.BoolVar(&r.clearProgress, "clear-progress", false, "remove progress (update)")

	f := &o.filter
	fs.StringVar(&f.project, "f-project", "", "filter: project")
	fs.StringVar(&f.status, "f-status", "", "filter: status")
	fs.StringVar(&f.department, "f-department", "", "filter: department")
	fs.StringVar(&f.category, "f-category", "", "filter: category")
	fs.StringVar(&f.name, "f-name", "", "filter: performer")
	fs.StringVar(&f.from, "from", "", "filter: first day (inclusive)")
	fs.StringVar(&f.to, "to", "", "filter: last day (inclusive)")
	return o
}

func visitedFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func runCLI(ctx context.Context, cfg config.Config, o *cliOptions) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	svc := service.NewTaskService(st, time.Now)
	return runCommand(ctx, svc, o, os.Stdout)
}

func runCommand(ctx context.Context, svc *service.TaskService, o *cliOptions, w io.Writer) error {
	switch o.mode {
	case "add":
		rec, err := svc.CreateTask(ctx, o.record.input())
		if err != nil {
			return err
		}
		return printRecords(w, []model.TaskRecord{rec}, o.asJSON)

	case "list":
		f, err := o.filter.build()
		if err != nil {
			return err
		}
		records := svc.List(f)
		if o.open {
			records = svc.ListOpen(f)
		}
		return printRecords(w, records, o.asJSON)

	case "update":
		patch := o.record.patch(o.visited)
		rec, err := svc.UpdateTask(ctx, o.id, patch)
		if err != nil {
			return err
		}
		return printRecords(w, []model.TaskRecord{rec}, o.asJSON)

	case "delete":
		if err := svc.DeleteTask(ctx, o.id); err != nil {
			return err
		}
		fmt.Fprintf(w, "deleted %s\n", o.id)
		return nil

	case "summary":
		f, err := o.filter.build()
		if err != nil {
			return err
		}
		fields, err := parseFields(o.by)
		if err != nil {
			return err
		}
		sum, err := svc.Summary(f, fields...)
		if err != nil {
			return err
		}
		return printSummary(w, sum, o.asJSON)

	case "overdue":
		f, err := o.filter.build()
		if err != nil {
			return err
		}
		asOf, err := parseAsOf(o.asOf)
		if err != nil {
			return err
		}
		return printRecords(w, svc.Overdue(f, asOf), o.asJSON)

	case "report":
		f, err := o.filter.build()
		if err != nil {
			return err
		}
		fields, err := parseFields(o.by)
		if err != nil {
			return err
		}
		asOf, err := parseAsOf(o.asOf)
		if err != nil {
			return err
		}
		file, err := os.Create(o.out)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		if err := report.Write(file, svc, report.Options{Filter: f, GroupBy: fields, AsOf: asOf}); err != nil {
			file.Close()
			return err
		}
		if err := file.Close(); err != nil {
			return fmt.Errorf("close report: %w", err)
		}
		fmt.Fprintf(w, "report written to %s\n", o.out)
		return nil
	}
	return fmt.Errorf("unknown mode %q", o.mode)
}

func (r recordFlags) input() model.TaskInput {
	in := model.TaskInput{
		Name:         r.name,
		Department:   r.department,
		Project:      r.project,
		Category:     r.category,
		Description:  r.description,
		Note:         r.note,
		OccurredDate: r.date,
		StartTime:    r.startTime,
		RepeatCount:  r.repeat,
		Status:       r.status,
		Deadline:     r.deadline,
		FeedbackDate: r.feedback,
		NextPlanDate: r.nextPlan,
	}
	if r.progress >= 0 {
		p := r.progress
		in.Progress = &p
	}
	return in
}

// patch includes only the flags given on the command line.
func (r recordFlags) patch(set map[string]bool) model.TaskPatch {
	str := func(name, v string) *string {
		if !set[name] {
			return nil
		}
		return &v
	}
	num := func(name string, v int) *int {
		if !set[name] {
			return nil
		}
		return &v
	}
	return model.TaskPatch{
		Name:          str("name", r.name),
		Department:    str("department", r.department),
		Project:       str("project", r.project),
		Category:      str("category", r.category),
		Description:   str("task", r.description),
		Note:          str("note", r.note),
		OccurredDate:  str("date", r.date),
		StartTime:     str("time", r.startTime),
		RepeatCount:   num("repeat", r.repeat),
		Status:        str("status", r.status),
		Deadline:      str("deadline", r.deadline),
		FeedbackDate:  str("feedback-date", r.feedback),
		NextPlanDate:  str("next-plan-date", r.nextPlan),
		Progress:      num("progress", r.progress),
		ClearProgress: r.clearProgress,
	}
}

func (f filterFlags) build() (model.Filter, error) {
	out := model.Filter{
		Project:    f.project,
		Department: f.department,
		Category:   f.category,
		Name:       f.name,
	}
	if f.status != "" {
		st, err := model.ParseStatus(f.status)
		if err != nil {
			return out, &store.ValidationError{Field: "f-status", Reason: err.Error()}
		}
		out.Status = st
	}
	var err error
	if out.From, err = model.ParseDate(f.from); err != nil {
		return out, &store.ValidationError{Field: "from", Reason: err.Error()}
	}
	if out.To, err = model.ParseDate(f.to); err != nil {
		return out, &store.ValidationError{Field: "to", Reason: err.Error()}
	}
	return out, nil
}

func parseFields(raw string) ([]model.GroupField, error) {
	var fields []model.GroupField
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := model.ParseGroupField(part)
		if err != nil {
			return nil, &store.ValidationError{Field: "by", Reason: err.Error()}
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now(), nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, &store.ValidationError{Field: "as-of", Reason: err.Error()}
	}
	t, _ := d.Time()
	return t, nil
}

func printRecords(w io.Writer, records []model.TaskRecord, asJSON bool) error {
	if asJSON {
		if records == nil {
			records = []model.TaskRecord{}
		}
		return writeJSON(w, records)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tNAME\tPROJECT\tTASK\tSTATUS\tDEADLINE\tPROGRESS")
	for _, rec := range records {
		progress := ""
		if rec.Progress != nil {
			progress = fmt.Sprintf("%d%%", *rec.Progress)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			service.ShortID(rec.ID), rec.OccurredDate, rec.Name, rec.Project, rec.Description,
			rec.Status, rec.Deadline, progress)
	}
	return tw.Flush()
}

func printSummary(w io.Writer, sum store.Summary, asJSON bool) error {
	if asJSON {
		return writeJSON(w, sum.Counts())
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, g := range sum.Groups {
		fmt.Fprintf(tw, "%s\t%d\n", strings.Join(g.Key, " / "), g.Count)
	}
	fmt.Fprintf(tw, "total\t%d\n", sum.Total)
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
