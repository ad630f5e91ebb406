package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"worklog/internal/model"
	"worklog/internal/repository"
	"worklog/internal/service"
	"worklog/internal/store"
)

const (
	cbDonePrefix = "done:"

	iconDefault = "🟢"
	iconDue     = "⏳"
	iconOverdue = "⚠️"

	maxListed    = 20
	historyLimit = 7
)

// messenger is the part of *tgbotapi.BotAPI used to talk to chats.
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api         *tgbotapi.BotAPI
	out         messenger
	subscribers *repository.SubscriberRepository
	reminders   *repository.ReminderRepository
	taskSvc     *service.TaskService
	reminderSvc *service.ReminderService
	clock       func() time.Time
}

// Deps groups the collaborators of a Bot.
type Deps struct {
	Subscribers *repository.SubscriberRepository
	Reminders   *repository.ReminderRepository
	Tasks       *service.TaskService
	Digest      *service.ReminderService
	Clock       func() time.Time
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	b := newBot(api, deps)
	b.api = api
	return b, nil
}

func newBot(out messenger, deps Deps) *Bot {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Bot{
		out:         out,
		subscribers: deps.Subscribers,
		reminders:   deps.Reminders,
		taskSvc:     deps.Tasks,
		reminderSvc: deps.Digest,
		clock:       clock,
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return errors.New("bot is not connected")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			log.Printf("handle callback: %v", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.Printf("handle message: %v", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !msg.IsCommand() {
		return b.sendText(msg.Chat.ID, "I only understand commands. Send /help for the list.")
	}

	log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
	return b.handleCommand(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "stop":
		return b.handleStop(ctx, msg)
	case "help":
		return b.sendText(msg.Chat.ID, helpText)
	case "tasks":
		return b.handleTasks(msg.Chat.ID, args)
	case "overdue":
		return b.handleOverdue(msg.Chat.ID, args)
	case "summary":
		return b.handleSummary(msg.Chat.ID, args)
	case "add":
		return b.handleAdd(ctx, msg.Chat.ID, msg.From, args)
	case "done":
		return b.handleDone(ctx, msg.Chat.ID, args)
	case "department":
		return b.handleDepartment(ctx, msg.Chat.ID, args)
	case "report":
		return b.handleReport(ctx, msg.Chat.ID)
	case "history":
		return b.handleHistory(ctx, msg.Chat.ID)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /tasks [project] — open tasks with a button to close them\n" +
	"• /overdue — tasks past their deadline\n" +
	"• /summary [field,...] — counts by status, project, category, department, name, date or month\n" +
	"• /add project | description | deadline — log a task in progress\n" +
	"• /done &lt;id&gt; — mark a task done (the first characters of the id are enough)\n" +
	"• /department [name] — only receive reminders for one department\n" +
	"• /report — today's reminder digest\n" +
	"• /history — your last delivered digests\n" +
	"• /stop — stop daily reminders"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.subscribers.Subscribe(ctx, msg.Chat.ID, msg.From.FirstName, msg.From.UserName); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>You will get a daily digest of overdue and upcoming work.</b>\n\n%s",
		html.EscapeString(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleStop(ctx context.Context, msg *tgbotapi.Message) error {
	removed, err := b.subscribers.Unsubscribe(ctx, msg.Chat.ID)
	if err != nil {
		return err
	}
	if !removed {
		return b.sendText(msg.Chat.ID, "You were not subscribed.")
	}
	return b.sendText(msg.Chat.ID, "🔕 Daily reminders stopped. Send /start to resume.")
}

func (b *Bot) handleTasks(chatID int64, project string) error {
	records := b.taskSvc.ListOpen(model.Filter{Project: project})
	if len(records) == 0 {
		return b.sendText(chatID, "🎉 No open tasks.")
	}

	now := b.clock()
	text, buttons := formatTaskList(records, now)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) handleOverdue(chatID int64, department string) error {
	records := b.taskSvc.Overdue(model.Filter{Department: department}, b.clock())
	if len(records) == 0 {
		return b.sendText(chatID, "✅ Nothing is overdue.")
	}
	text, _ := formatTaskList(records, b.clock())
	return b.sendText(chatID, fmt.Sprintf("%s <b>Overdue: %d</b>\n\n%s", iconOverdue, len(records), text))
}

func (b *Bot) handleSummary(chatID int64, args string) error {
	if args == "" {
		counts, err := b.taskSvc.StatusCounts(model.Filter{})
		if err != nil {
			return b.replyError(chatID, err)
		}
		return b.sendText(chatID, formatStatusBoard(counts))
	}
	fields, err := parseFields(args)
	if err != nil {
		return b.sendText(chatID, html.EscapeString(err.Error()))
	}
	sum, err := b.taskSvc.Summary(model.Filter{}, fields...)
	if err != nil {
		return b.replyError(chatID, err)
	}
	return b.sendText(chatID, formatSummary(sum))
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, from *tgbotapi.User, args string) error {
	in, err := parseAddArgs(args)
	if err != nil {
		return b.sendText(chatID, html.EscapeString(err.Error()))
	}
	in.Name = strings.TrimSpace(from.FirstName + " " + from.LastName)
	if sub, err := b.subscribers.FindByChatID(ctx, chatID); err == nil {
		in.Department = sub.Department
	}

	rec, err := b.taskSvc.CreateTask(ctx, in)
	if err != nil {
		return b.replyError(chatID, err)
	}
	log.Printf("[info] task created via bot id=%s chat=%d", rec.ID, chatID)
	return b.sendText(chatID, fmt.Sprintf("🆕 Logged:\n%s", formatTask(rec, b.clock())))
}

func (b *Bot) handleDone(ctx context.Context, chatID int64, ref string) error {
	if ref == "" {
		return b.sendText(chatID, "Give me a task id: /done 3f2a9c1e")
	}
	rec, err := b.taskSvc.CompleteTask(ctx, ref)
	if err != nil {
		return b.replyError(chatID, err)
	}
	log.Printf("[info] task completed id=%s chat=%d", rec.ID, chatID)
	return b.sendText(chatID, fmt.Sprintf("✅ Task «%s» is done.", html.EscapeString(shortTitle(rec.Description, 60))))
}

func (b *Bot) handleDepartment(ctx context.Context, chatID int64, department string) error {
	if err := b.subscribers.SetDepartment(ctx, chatID, department); err != nil {
		if repository.IsNotFound(err) {
			return b.sendText(chatID, "Send /start first.")
		}
		return err
	}
	if department == "" {
		return b.sendText(chatID, "📬 You will get reminders for every department.")
	}
	return b.sendText(chatID, fmt.Sprintf("📬 Reminders limited to <b>%s</b>.", html.EscapeString(department)))
}

func (b *Bot) handleReport(ctx context.Context, chatID int64) error {
	department := ""
	if sub, err := b.subscribers.FindByChatID(ctx, chatID); err == nil {
		department = sub.Department
	}
	digest := b.reminderSvc.DailySummary(b.clock(), department)
	return b.sendText(chatID, digest.Text)
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64) error {
	entries, err := b.reminders.History(ctx, chatID, historyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return b.sendText(chatID, "No digests delivered yet.")
	}
	return b.sendText(chatID, formatHistory(entries))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.out.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbDonePrefix):
		id := strings.TrimPrefix(data, cbDonePrefix)
		log.Printf("[info] callback done request user=%d task=%s", cb.From.ID, id)
		if err := b.handleDone(ctx, cb.Message.Chat.ID, id); err != nil {
			return err
		}
		return b.handleTasks(cb.Message.Chat.ID, "")
	default:
		return nil
	}
}

// SendDailyReports sends a digest to every active subscriber at most once per day.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	subs, err := b.subscribers.ListActive(ctx)
	if err != nil {
		return err
	}
	now := b.clock()
	today := model.DateOf(now)
	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sent, err := b.reminders.AlreadySent(ctx, sub.ChatID, today)
		if err != nil {
			log.Printf("check reminder ledger for %d: %v", sub.ChatID, err)
			continue
		}
		if sent {
			continue
		}

		digest := b.reminderSvc.DailySummary(now, sub.Department)
		if err := b.sendText(sub.ChatID, digest.Text); err != nil {
			log.Printf("send digest to %d: %v", sub.ChatID, err)
			continue
		}
		if err := b.reminders.MarkSent(ctx, sub.ChatID, today, digest.Overdue, now); err != nil {
			log.Printf("record digest for %d: %v", sub.ChatID, err)
		}
	}
	log.Printf("[info] daily digests processed for %d subscribers", len(subs))
	return nil
}

// SendDigest pushes the current digest to every active subscriber regardless of the ledger.
func (b *Bot) SendDigest(ctx context.Context) error {
	subs, err := b.subscribers.ListActive(ctx)
	if err != nil {
		return err
	}
	now := b.clock()
	for _, sub := range subs {
		digest := b.reminderSvc.DailySummary(now, sub.Department)
		if digest.Empty() {
			continue
		}
		if err := b.sendText(sub.ChatID, digest.Text); err != nil {
			log.Printf("send digest to %d: %v", sub.ChatID, err)
		}
	}
	return nil
}

func (b *Bot) replyError(chatID int64, err error) error {
	var (
		verr *store.ValidationError
		nerr *store.NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		return b.sendText(chatID, fmt.Sprintf("❗ %s", html.EscapeString(verr.Error())))
	case errors.As(err, &nerr):
		return b.sendText(chatID, "Task not found or already deleted.")
	default:
		log.Printf("bot request failed: %v", err)
		return b.sendText(chatID, "Something went wrong, try again later.")
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.out.Send(msg)
	return err
}
