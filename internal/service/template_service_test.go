package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"task-planner/internal/model"
)

func TestCreateTemplateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input TemplateInput
	}{
		{name: "empty title", input: TemplateInput{Title: "   "}},
		{name: "unknown category", input: TemplateInput{Title: "x", Category: "errands"}},
		{name: "too many tags", input: TemplateInput{Title: "x", Tags: []string{"a", "b", "c", "d", "e", "f"}}},
		{name: "long title", input: TemplateInput{Title: strings.Repeat("x", 201)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.templateSvc.CreateTemplate(ctx, tt.input); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestCreateTemplateNormalisesInput(t *testing.T) {
	env := newTestEnv(t)

	tmpl := env.createTemplate(t, "  Write blog  ", " Deep_Work ", "Writing", "writing", "", "Blog")
	if tmpl.Title != "Write blog" {
		t.Fatalf("title = %q", tmpl.Title)
	}
	if tmpl.Category == nil || *tmpl.Category != model.CategoryDeepWork {
		t.Fatalf("category = %v", tmpl.Category)
	}
	got := tmpl.TagNames()
	if len(got) != 2 || got[0] != "writing" || got[1] != "blog" {
		t.Fatalf("tags = %v, want [writing blog]", got)
	}
}

func TestListTemplatesSearch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createTemplate(t, "Weekly Review", "deep_work")
	env.createTemplate(t, "Water plants", "maintenance")
	env.createTemplate(t, "Review PRs", "short_task")

	all, err := env.templateSvc.ListTemplates(ctx, "")
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if len(all) != 3 || all[0].Title != "Review PRs" {
		t.Fatalf("unexpected list %v", titles(all))
	}

	found, err := env.templateSvc.ListTemplates(ctx, "review")
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("search found %v, want 2", titles(found))
	}
}

func titles(templates []model.Template) []string {
	out := make([]string, 0, len(templates))
	for _, t := range templates {
		out = append(out, t.Title)
	}
	return out
}

func TestCreateScheduleRequiresCategory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tmpl := env.createTemplate(t, "Someday", "")
	_, err := env.templateSvc.CreateSchedule(ctx, tmpl.ID, "weekly", mustDate(t, "2026-03-02"))
	if !errors.Is(err, ErrCategoryRequired) {
		t.Fatalf("err = %v, want ErrCategoryRequired", err)
	}
}

func TestCreateScheduleValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tmpl := env.createTemplate(t, "Report", "deep_work")

	if _, err := env.templateSvc.CreateSchedule(ctx, tmpl.ID, "daily", mustDate(t, "2026-03-02")); !errors.Is(err, model.ErrInvalidRecurrence) {
		t.Fatalf("err = %v, want ErrInvalidRecurrence", err)
	}
	if _, err := env.templateSvc.CreateSchedule(ctx, tmpl.ID, "weekly", model.Date{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if _, err := env.templateSvc.CreateSchedule(ctx, 999, "weekly", mustDate(t, "2026-03-02")); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("err = %v, want ErrTemplateNotFound", err)
	}

	s, err := env.templateSvc.CreateSchedule(ctx, tmpl.ID, "Bi-Weekly", mustDate(t, "2026-03-02"))
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if s.Recurrence != model.RecurrenceBiWeekly || s.NextRunDate != s.AnchorDate {
		t.Fatalf("unexpected schedule %+v", s)
	}
}

func TestUpdateTemplateCategoryInUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tmpl := env.createTemplate(t, "Backup", "maintenance")
	s := env.createSchedule(t, tmpl.ID, "weekly", mustDate(t, "2026-03-02"))

	none := ""
	if _, err := env.templateSvc.UpdateTemplate(ctx, tmpl.ID, TemplateUpdate{Category: &none}); !errors.Is(err, ErrCategoryInUse) {
		t.Fatalf("err = %v, want ErrCategoryInUse", err)
	}

	bogus := "urgent"
	if _, err := env.templateSvc.UpdateTemplate(ctx, tmpl.ID, TemplateUpdate{Category: &bogus}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}

	other := " Short_Task "
	updated, err := env.templateSvc.UpdateTemplate(ctx, tmpl.ID, TemplateUpdate{Category: &other})
	if err != nil {
		t.Fatalf("change category: %v", err)
	}
	if *updated.Category != model.CategoryShortTask {
		t.Fatalf("category = %s", *updated.Category)
	}

	if err := env.templateSvc.DeleteSchedule(ctx, tmpl.ID, s.ID); err != nil {
		t.Fatalf("DeleteSchedule: %v", err)
	}
	updated, err = env.templateSvc.UpdateTemplate(ctx, tmpl.ID, TemplateUpdate{Category: &none})
	if err != nil {
		t.Fatalf("clear category: %v", err)
	}
	if updated.HasCategory() {
		t.Fatalf("category not cleared: %v", *updated.Category)
	}
}

func TestUpdateTemplateLeavesTasksAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tmpl := env.createTemplate(t, "Old title", "deep_work")
	task, err := env.templateSvc.Instantiate(ctx, tmpl.ID, nil, "")
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}

	title := "New title"
	if _, err := env.templateSvc.UpdateTemplate(ctx, tmpl.ID, TemplateUpdate{Title: &title}); err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}

	var stored model.Task
	if err := env.db.First(&stored, task.ID).Error; err != nil {
		t.Fatalf("load task: %v", err)
	}
	if stored.Title != "Old title" {
		t.Fatalf("task title = %q, want the original", stored.Title)
	}
}

func TestDeleteTemplateCascadesSchedules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tmpl := env.createTemplate(t, "Standup", "short_task", "work")
	s := env.createSchedule(t, tmpl.ID, "weekly", mustDate(t, "2026-03-02"))
	if _, err := env.daySvc.Resolve(ctx, mustDate(t, "2026-03-02")); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if err := env.templateSvc.DeleteTemplate(ctx, tmpl.ID); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	if _, err := env.templateSvc.GetTemplate(ctx, tmpl.ID); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("err = %v, want ErrTemplateNotFound", err)
	}

	var schedules, occurrences int64
	env.db.Model(&model.Schedule{}).Where("id = ?", s.ID).Count(&schedules)
	env.db.Model(&model.Occurrence{}).Where("schedule_id = ?", s.ID).Count(&occurrences)
	if schedules != 0 || occurrences != 0 {
		t.Fatalf("left %d schedules and %d ledger rows", schedules, occurrences)
	}
	if got := env.countTasks(t); got != 1 {
		t.Fatalf("tasks = %d, created tasks must survive", got)
	}

	if err := env.templateSvc.DeleteTemplate(ctx, tmpl.ID); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("second delete err = %v, want ErrTemplateNotFound", err)
	}
}

func TestDeleteScheduleNotFound(t *testing.T) {
	env := newTestEnv(t)
	tmpl := env.createTemplate(t, "Standup", "short_task")
	if err := env.templateSvc.DeleteSchedule(context.Background(), tmpl.ID, 42); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("err = %v, want ErrScheduleNotFound", err)
	}
}

func TestInstantiateRejectsUnknownCategory(t *testing.T) {
	env := newTestEnv(t)
	tmpl := env.createTemplate(t, "Standup", "short_task")
	if _, err := env.templateSvc.Instantiate(context.Background(), tmpl.ID, nil, "errands"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}
