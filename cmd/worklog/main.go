package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"worklog/internal/bot"
	"worklog/internal/config"
	"worklog/internal/model"
	"worklog/internal/notify"
	"worklog/internal/repository"
	"worklog/internal/server"
	"worklog/internal/service"
	"worklog/internal/store"
)

func main() {
	fs := flag.NewFlagSet("worklog", flag.ExitOnError)
	opts := registerFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("flags: %v", err)
	}
	opts.visited = visitedFlags(fs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	switch opts.mode {
	case "serve":
		err = serve(ctx, cfg)
	case "set-token":
		err = setToken(opts.token)
	case "clear-token":
		err = clearToken(os.Stdout)
	case "quarantine":
		var moved string
		moved, err = store.Quarantine(store.OSFS{}, cfg.StorePath, time.Now())
		if err == nil {
			fmt.Printf("moved %s to %s\n", cfg.StorePath, moved)
		}
	case "add", "list", "update", "delete", "summary", "overdue", "report":
		err = runCLI(ctx, cfg, opts)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		exitWith(err)
	}
}

func openStore(cfg config.Config) (*store.TaskStore, error) {
	st, err := store.Open(store.Options{Path: cfg.StorePath})
	if errors.Is(err, store.ErrCorruptStore) {
		return nil, fmt.Errorf("%w\nrun with -mode quarantine to move the file aside", err)
	}
	return st, err
}

func serve(ctx context.Context, cfg config.Config) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	clock := func() time.Time { return time.Now().In(loc) }

	taskSvc := service.NewTaskService(st, clock)
	reminderSvc := service.NewReminderService(st)
	webhook := notify.NewWebhook(cfg.WebhookURL)

	var telegramBot *bot.Bot
	if cfg.ResolveToken() {
		db, err := repository.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		telegramBot, err = bot.New(cfg.TelegramToken, bot.Deps{
			Subscribers: repository.NewSubscriberRepository(db),
			Reminders:   repository.NewReminderRepository(db),
			Tasks:       taskSvc,
			Digest:      reminderSvc,
			Clock:       clock,
		})
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	} else {
		log.Println("[warn] no telegram token configured, bot disabled")
	}

	scheduler := service.NewSchedulerService(loc, log.Default())
	if _, err := scheduler.ScheduleDaily("daily-digest", cfg.ReminderTime, func(jobCtx context.Context) error {
		return dailyJob(jobCtx, clock(), telegramBot, reminderSvc, webhook)
	}); err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}
	if interval := cfg.Interval(); interval > 0 && telegramBot != nil {
		if _, err := scheduler.ScheduleInterval("periodic-digest", interval, telegramBot.SendDigest); err != nil {
			return fmt.Errorf("schedule reports: %w", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- server.New(taskSvc, clock).ListenAndServe(ctx, cfg.HTTPAddr)
	}()
	if telegramBot != nil {
		go func() {
			errCh <- telegramBot.Start(ctx)
		}()
	}

	log.Printf("[info] worklog started store=%s records=%d", st.Path(), st.Len())
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Println("Shutdown complete.")
	return nil
}

func dailyJob(ctx context.Context, now time.Time, telegramBot *bot.Bot, reminders *service.ReminderService, webhook *notify.Webhook) error {
	var errs []error
	if telegramBot != nil {
		if err := telegramBot.SendDailyReports(ctx); err != nil {
			errs = append(errs, fmt.Errorf("daily reports: %w", err))
		}
	}
	if webhook != nil {
		digest := reminders.DailySummary(now, "")
		if err := webhook.Send(ctx, model.DateOf(now), digest); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func setToken(token string) error {
	if token == "" {
		token = os.Getenv("TELEGRAM_TOKEN")
	}
	if err := config.SaveToken(token); err != nil {
		return err
	}
	fmt.Println("token stored in the system keychain")
	return nil
}

func clearToken(w io.Writer) error {
	if err := config.DeleteToken(); err != nil {
		return err
	}
	fmt.Fprintln(w, "token removed from the system keychain")
	return nil
}

func exitWith(err error) {
	switch {
	case errors.Is(err, store.ErrValidation), errors.Is(err, store.ErrNotFound):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	default:
		log.Fatalf("worklog: %v", err)
	}
}
