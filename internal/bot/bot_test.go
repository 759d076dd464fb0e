package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-planner/internal/lock"
	"task-planner/internal/logger"
	"task-planner/internal/model"
	"task-planner/internal/repository"
	"task-planner/internal/service"
)

type fakeAPI struct {
	sent []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("nothing sent")
	}
	msg, ok := f.sent[len(f.sent)-1].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("last sent is %T", f.sent[len(f.sent)-1])
	}
	return msg.Text
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *service.TemplateService) {
	t.Helper()
	log := logger.Discard()
	db, err := repository.NewDB(":memory:", log)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	templates := repository.NewTemplateRepository(db)
	schedules := repository.NewScheduleRepository(db)
	tasks := repository.NewTaskRepository(db)
	tags := repository.NewTagRepository(db)
	tx := repository.NewTransactor(db)

	instantiator := service.NewTaskInstantiator(tasks, tags)
	applicator := service.NewScheduleApplicator(schedules, templates, instantiator, tx, lock.NewLocalLocker(), log)
	days := service.NewDayService(repository.NewDayRepository(db), tasks, repository.NewSettingRepository(db), applicator)
	templateSvc := service.NewTemplateService(templates, schedules, tags, instantiator, tx)

	client := &fakeAPI{}
	b := newBot(client, templateSvc, days, time.UTC, log)
	b.now = func() time.Time { return time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC) }
	return b, client, templateSvc
}

func command(text string) *tgbotapi.Message {
	name := strings.Fields(text)[0]
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 100, Type: "private"},
		From:     &tgbotapi.User{ID: 7},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func plain(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: 100, Type: "private"},
		From: &tgbotapi.User{ID: 7},
	}
}

func TestScheduleAndOpenToday(t *testing.T) {
	b, client, _ := newTestBot(t)
	ctx := context.Background()

	steps := []struct {
		text string
		want string
	}{
		{"/newtemplate Weekly review | deep_work | work, planning", "Template saved"},
		{"/schedule 1 weekly", "Schedule #1: weekly starting 2026-03-02"},
		{"/today", "Weekly review"},
		{"/schedules 1", "next 2026-03-09"},
		{"/today", "Weekly review"},
	}
	for _, step := range steps {
		if err := b.handleMessage(ctx, command(step.text)); err != nil {
			t.Fatalf("%s: %v", step.text, err)
		}
		if got := client.lastText(t); !strings.Contains(got, step.want) {
			t.Fatalf("%s: reply %q does not contain %q", step.text, got, step.want)
		}
	}
	if strings.Count(client.lastText(t), "Weekly review") != 1 {
		t.Fatalf("task duplicated: %q", client.lastText(t))
	}
}

func TestScheduleWithoutCategoryIsExplained(t *testing.T) {
	b, client, _ := newTestBot(t)
	ctx := context.Background()

	if err := b.handleMessage(ctx, command("/newtemplate Someday")); err != nil {
		t.Fatalf("newtemplate: %v", err)
	}
	if err := b.handleMessage(ctx, command("/schedule 1 monthly 2026-03-31")); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if got := client.lastText(t); !strings.Contains(got, "needs a category") {
		t.Fatalf("reply = %q", got)
	}
}

func TestDayOffCommands(t *testing.T) {
	b, client, templates := newTestBot(t)
	ctx := context.Background()

	tmpl, err := templates.CreateTemplate(ctx, service.TemplateInput{Title: "Standup", Category: "short_task"})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if _, err := templates.CreateSchedule(ctx, tmpl.ID, "weekly", model.NewDate(2026, time.March, 9)); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}

	if err := b.handleMessage(ctx, command("/off 2026-03-09 vacation ski trip")); err != nil {
		t.Fatalf("off: %v", err)
	}
	if err := b.handleMessage(ctx, command("/day 2026-03-09")); err != nil {
		t.Fatalf("day: %v", err)
	}
	got := client.lastText(t)
	if !strings.Contains(got, "Day off: vacation (ski trip)") || strings.Contains(got, "Standup") {
		t.Fatalf("day view = %q", got)
	}

	if err := b.handleMessage(ctx, command("/off 2026-03-10 nap")); err != nil {
		t.Fatalf("off: %v", err)
	}
	if got := client.lastText(t); !strings.HasPrefix(got, "⚠️") {
		t.Fatalf("invalid reason reply = %q", got)
	}

	if err := b.handleMessage(ctx, command("/weekendsoff saturday, sunday")); err != nil {
		t.Fatalf("weekendsoff: %v", err)
	}
	if got := client.lastText(t); !strings.Contains(got, "saturday, sunday") {
		t.Fatalf("weekendsoff reply = %q", got)
	}
}

func TestNewTemplateDialogAndCallback(t *testing.T) {
	b, client, templates := newTestBot(t)
	ctx := context.Background()

	for _, msg := range []*tgbotapi.Message{
		command("/newtemplate"),
		plain("Stretch"),
		plain(btnSkip),
		plain("maintenance"),
		plain("health, #Morning"),
	} {
		if err := b.handleMessage(ctx, msg); err != nil {
			t.Fatalf("%q: %v", msg.Text, err)
		}
	}
	if !strings.Contains(client.lastText(t), "Template saved") {
		t.Fatalf("reply = %q", client.lastText(t))
	}
	if b.hasConversation(7) {
		t.Fatal("conversation not cleared")
	}

	list, err := templates.ListTemplates(ctx, "stretch")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListTemplates = %v, %v", list, err)
	}
	if names := list[0].TagNames(); len(names) != 2 || names[0] != "health" || names[1] != "morning" {
		t.Fatalf("tags = %v", names)
	}

	cb := &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    "use:1",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 100, Type: "private"}},
	}
	if err := b.handleCallback(ctx, cb); err != nil {
		t.Fatalf("handleCallback: %v", err)
	}
	if got := client.lastText(t); !strings.Contains(got, "added to today") {
		t.Fatalf("callback reply = %q", got)
	}
}

func TestCategoryCommand(t *testing.T) {
	b, client, templates := newTestBot(t)
	ctx := context.Background()

	tmpl, err := templates.CreateTemplate(ctx, service.TemplateInput{Title: "Backup", Category: "maintenance"})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	s, err := templates.CreateSchedule(ctx, tmpl.ID, "weekly", model.NewDate(2026, time.March, 2))
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}

	steps := []struct {
		text string
		want string
	}{
		{"/category 1 none", "cannot be cleared"},
		{"/category 1 urgent", "⚠️"},
		{"/category 1 deep_work", "Updated"},
		{fmt.Sprintf("/unschedule %d %d", tmpl.ID, s.ID), "stopped"},
		{"/category 1 none", "(no category)"},
	}
	for _, step := range steps {
		if err := b.handleMessage(ctx, command(step.text)); err != nil {
			t.Fatalf("%s: %v", step.text, err)
		}
		if got := client.lastText(t); !strings.Contains(got, step.want) {
			t.Fatalf("%s: reply %q does not contain %q", step.text, got, step.want)
		}
	}

	stored, err := templates.GetTemplate(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if stored.HasCategory() {
		t.Fatalf("category = %s, want cleared", *stored.Category)
	}
	if list, err := templates.ListSchedules(ctx, tmpl.ID); err != nil || len(list) != 0 {
		t.Fatalf("schedules = %v, %v", list, err)
	}
}
