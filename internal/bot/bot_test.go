package bot

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklog/internal/model"
	"worklog/internal/repository"
	"worklog/internal/service"
	"worklog/internal/store"
)

var testNow = time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

type sentMessage struct {
	chatID int64
	text   string
	markup any
}

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []sentMessage
	acks     int
	failChat int64
}

func (f *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	if msg.ChatID == f.failChat {
		return tgbotapi.Message{}, errors.New("chat unreachable")
	}
	f.sent = append(f.sent, sentMessage{chatID: msg.ChatID, text: msg.Text, markup: msg.ReplyMarkup})
	return tgbotapi.Message{}, nil
}

func (f *fakeMessenger) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeMessenger) last(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func (f *fakeMessenger) countFor(chatID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.sent {
		if m.chatID == chatID {
			n++
		}
	}
	return n
}

type fixture struct {
	bot   *Bot
	out   *fakeMessenger
	tasks *service.TaskService
	subs  *repository.SubscriberRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(store.Options{
		Path:   "/data/tasks.json",
		FS:     store.NewMemFS(),
		Clock:  func() time.Time { return testNow },
		Logger: log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "worklog.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	clock := func() time.Time { return testNow }
	tasks := service.NewTaskService(st, clock)
	subs := repository.NewSubscriberRepository(db)
	out := &fakeMessenger{}
	b := newBot(out, Deps{
		Subscribers: subs,
		Reminders:   repository.NewReminderRepository(db),
		Tasks:       tasks,
		Digest:      service.NewReminderService(st),
		Clock:       clock,
	})
	return &fixture{bot: b, out: out, tasks: tasks, subs: subs}
}

func command(chatID int64, text string) tgbotapi.Update {
	length := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		length = i
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID, Type: "private"},
		From:     &tgbotapi.User{ID: chatID, FirstName: "Minh", UserName: "minh"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}}
}

func (f *fixture) seed(t *testing.T, desc, status, deadline, department string) model.TaskRecord {
	t.Helper()
	rec, err := f.tasks.CreateTask(context.Background(), model.TaskInput{
		Name:         "Minh",
		Department:   department,
		Project:      "Bridge",
		Description:  desc,
		OccurredDate: "2024-06-01",
		Status:       status,
		Deadline:     deadline,
	})
	require.NoError(t, err)
	return rec
}

func TestCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("Should subscribe on start and unsubscribe on stop", func(t *testing.T) {
		f := newFixture(t)
		f.bot.handleUpdate(ctx, command(7, "/start"))
		assert.Contains(t, f.out.last(t).text, "Hi, Minh")

		active, err := f.subs.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, active, 1)

		f.bot.handleUpdate(ctx, command(7, "/stop"))
		assert.Contains(t, f.out.last(t).text, "stopped")
		f.bot.handleUpdate(ctx, command(7, "/stop"))
		assert.Contains(t, f.out.last(t).text, "not subscribed")
	})

	t.Run("Should list open tasks with done buttons", func(t *testing.T) {
		f := newFixture(t)
		open := f.seed(t, "pour concrete", "InProgress", "2024-06-05", "Site")
		f.seed(t, "archived", "Done", "", "Site")

		f.bot.handleUpdate(ctx, command(7, "/tasks"))
		msg := f.out.last(t)
		assert.Contains(t, msg.text, "Pour concrete")
		assert.Contains(t, msg.text, "overdue")
		assert.NotContains(t, msg.text, "Archived")

		markup, ok := msg.markup.(tgbotapi.InlineKeyboardMarkup)
		require.True(t, ok)
		require.Len(t, markup.InlineKeyboard, 1)
		require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
		assert.Equal(t, cbDonePrefix+open.ID, *markup.InlineKeyboard[0][0].CallbackData)
	})

	t.Run("Should complete a task from a callback", func(t *testing.T) {
		f := newFixture(t)
		rec := f.seed(t, "survey", "InProgress", "", "Site")

		f.bot.handleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb-1",
			From:    &tgbotapi.User{ID: 7},
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7, Type: "private"}},
			Data:    cbDonePrefix + rec.ID,
		}})

		assert.Equal(t, 1, f.out.acks)
		assert.Contains(t, f.out.last(t).text, "No open tasks")
		done := f.tasks.List(model.Filter{Status: model.StatusDone})
		require.Len(t, done, 1)
		assert.Equal(t, rec.ID, done[0].ID)
	})

	t.Run("Should add and complete a task by prefix", func(t *testing.T) {
		f := newFixture(t)
		f.bot.handleUpdate(ctx, command(7, "/add Bridge | check <rebar> | 2024-06-20"))
		assert.Contains(t, f.out.last(t).text, "Check &lt;rebar&gt;")

		all := f.tasks.List(model.Filter{})
		require.Len(t, all, 1)
		assert.Equal(t, model.StatusInProgress, all[0].Status)
		assert.Equal(t, model.Date("2024-06-20"), all[0].Deadline)
		assert.Equal(t, "Minh", all[0].Name)

		f.bot.handleUpdate(ctx, command(7, "/done "+all[0].ID[:8]))
		assert.Contains(t, f.out.last(t).text, "is done")

		f.bot.handleUpdate(ctx, command(7, "/done nope-nope"))
		assert.Contains(t, f.out.last(t).text, "not found")
	})

	t.Run("Should reject malformed input", func(t *testing.T) {
		f := newFixture(t)
		f.bot.handleUpdate(ctx, command(7, "/add only one part"))
		assert.Contains(t, f.out.last(t).text, "usage")

		f.bot.handleUpdate(ctx, command(7, "/add Bridge | work | tomorrow"))
		assert.Contains(t, f.out.last(t).text, "deadline")

		f.bot.handleUpdate(ctx, command(7, "/summary colour"))
		assert.Contains(t, f.out.last(t).text, "cannot group")

		f.bot.handleUpdate(ctx, command(7, "/department Site"))
		assert.Contains(t, f.out.last(t).text, "/start first")
	})

	t.Run("Should summarise and show overdue work", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "late", "OnHold", "2024-06-01", "Site")
		f.seed(t, "fine", "Done", "2024-06-01", "Office")

		f.bot.handleUpdate(ctx, command(7, "/summary status,department"))
		text := f.out.last(t).text
		assert.Contains(t, text, "status / department")
		assert.Contains(t, text, "OnHold / Site: <b>1</b>")
		assert.Contains(t, text, "Total: 2")

		f.bot.handleUpdate(ctx, command(7, "/overdue"))
		assert.Contains(t, f.out.last(t).text, "Overdue: 1")

		f.bot.handleUpdate(ctx, command(7, "/summary"))
		text = f.out.last(t).text
		assert.Contains(t, text, "Tasks by status")
		assert.Contains(t, text, "OnHold: <b>1</b>")
		assert.Contains(t, text, "Abandoned: <b>0</b>")
		assert.Contains(t, text, "Total: 2")
	})

	t.Run("Should ignore group chats", func(t *testing.T) {
		f := newFixture(t)
		update := command(7, "/help")
		update.Message.Chat.Type = "group"
		f.bot.handleUpdate(ctx, update)
		assert.Zero(t, f.out.countFor(7))
	})
}

func TestSendDailyReports(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "late site work", "InProgress", "2024-06-03", "Site")
	f.seed(t, "late office work", "InProgress", "2024-06-03", "Office")

	for _, chatID := range []int64{1, 2, 3} {
		_, err := f.subs.Subscribe(ctx, chatID, "User", "")
		require.NoError(t, err)
	}
	require.NoError(t, f.subs.SetDepartment(ctx, 2, "Office"))
	f.out.failChat = 3

	require.NoError(t, f.bot.SendDailyReports(ctx))
	assert.Equal(t, 1, f.out.countFor(1))
	assert.Equal(t, 1, f.out.countFor(2))
	assert.Zero(t, f.out.countFor(3))

	for _, m := range f.out.sent {
		if m.chatID == 2 {
			assert.Contains(t, m.text, "late office work")
			assert.NotContains(t, m.text, "late site work")
		}
	}

	// Second run the same day only retries the chat that failed.
	f.out.failChat = 0
	require.NoError(t, f.bot.SendDailyReports(ctx))
	assert.Equal(t, 1, f.out.countFor(1))
	assert.Equal(t, 1, f.out.countFor(2))
	assert.Equal(t, 1, f.out.countFor(3))

	f.bot.handleUpdate(ctx, command(1, "/history"))
	assert.Contains(t, f.out.last(t).text, "2024-06-10")
	assert.Contains(t, f.out.last(t).text, "2 overdue")

	f.bot.handleUpdate(ctx, command(9, "/history"))
	assert.Contains(t, f.out.last(t).text, "No digests delivered yet")
}

func TestFormatting(t *testing.T) {
	t.Run("Should parse add arguments", func(t *testing.T) {
		in, err := parseAddArgs(" Bridge | draft plan ")
		require.NoError(t, err)
		assert.Equal(t, "Bridge", in.Project)
		assert.Equal(t, "draft plan", in.Description)
		assert.Empty(t, in.Deadline)

		_, err = parseAddArgs("Bridge |  ")
		assert.Error(t, err)
	})

	t.Run("Should parse summary fields", func(t *testing.T) {
		fields, err := parseFields("")
		require.NoError(t, err)
		assert.Equal(t, []model.GroupField{model.GroupByStatus}, fields)

		fields, err = parseFields("project, month")
		require.NoError(t, err)
		assert.Equal(t, []model.GroupField{model.GroupByProject, model.GroupByMonth}, fields)
	})

	t.Run("Should shorten titles by rune", func(t *testing.T) {
		assert.Equal(t, "Kiểm tra", shortTitle("kiểm tra", 10))
		assert.Equal(t, "Kiểm…", shortTitle("kiểm tra bản vẽ", 5))
	})

	t.Run("Should cap long lists", func(t *testing.T) {
		records := make([]model.TaskRecord, maxListed+5)
		for i := range records {
			records[i] = model.TaskRecord{ID: "id", Description: "x", Status: model.StatusInProgress}
		}
		text, buttons := formatTaskList(records, testNow)
		assert.Len(t, buttons, maxListed)
		assert.Contains(t, text, "… and 5 more")
	})
}
