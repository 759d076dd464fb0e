package service

import (
	"context"
	"errors"
	"testing"

	"task-planner/internal/model"
)

func TestInstantiateAppendsPerDayAndCategory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	day, err := env.daySvc.GetOrCreateDay(ctx, mustDate(t, "2026-03-02"))
	if err != nil {
		t.Fatalf("GetOrCreateDay: %v", err)
	}
	deep := env.createTemplate(t, "Write report", "deep_work")
	short := env.createTemplate(t, "Reply emails", "short_task")

	steps := []struct {
		template *model.Template
		want     int
	}{
		{deep, 0},
		{deep, 1},
		{short, 0},
		{deep, 2},
		{short, 1},
	}
	for i, step := range steps {
		task, err := env.instantiator.Instantiate(ctx, step.template, &day.ID, nil)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if task.OrderIndex != step.want {
			t.Fatalf("step %d: order index %d, want %d", i, task.OrderIndex, step.want)
		}
		if task.DayID == nil || *task.DayID != day.ID {
			t.Fatalf("step %d: day id %v, want %d", i, task.DayID, day.ID)
		}
	}
}

func TestInstantiateOverrideAndBacklog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tmpl := env.createTemplate(t, "Read paper", "")

	if _, err := env.instantiator.Instantiate(ctx, tmpl, nil, nil); !errors.Is(err, ErrCategoryRequired) {
		t.Fatalf("err = %v, want ErrCategoryRequired", err)
	}

	override := model.CategoryDeepWork
	task, err := env.instantiator.Instantiate(ctx, tmpl, nil, &override)
	if err != nil {
		t.Fatalf("Instantiate with override: %v", err)
	}
	if task.Category != model.CategoryDeepWork {
		t.Fatalf("category = %s, want deep_work", task.Category)
	}
	if task.DayID != nil {
		t.Fatalf("backlog task got day %d", *task.DayID)
	}

	again, err := env.instantiator.Instantiate(ctx, tmpl, nil, &override)
	if err != nil {
		t.Fatalf("second Instantiate: %v", err)
	}
	if again.OrderIndex != 1 {
		t.Fatalf("backlog order index = %d, want 1", again.OrderIndex)
	}
}

func TestInstantiateCopiesTagsByValue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tmpl := env.createTemplate(t, "Gym", "maintenance", "Health", " health ", "routine")
	if got := tmpl.TagNames(); len(got) != 2 {
		t.Fatalf("template tags = %v, want 2 normalised tags", got)
	}

	task, err := env.instantiator.Instantiate(ctx, tmpl, nil, nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}

	// Retagging the template must not touch the task.
	tags := []string{"fitness"}
	if _, err := env.templateSvc.UpdateTemplate(ctx, tmpl.ID, TemplateUpdate{Tags: &tags}); err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}

	var stored model.Task
	if err := env.db.Preload("Tags").First(&stored, task.ID).Error; err != nil {
		t.Fatalf("load task: %v", err)
	}
	names := map[string]bool{}
	for _, tag := range stored.Tags {
		names[tag.Name] = true
	}
	if len(names) != 2 || !names["health"] || !names["routine"] {
		t.Fatalf("task tags = %v, want health and routine", names)
	}
}

func TestInstantiateDoesNotTouchSchedules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tmpl := env.createTemplate(t, "Invoice", "short_task")
	s := env.createSchedule(t, tmpl.ID, "monthly", mustDate(t, "2026-03-15"))

	if _, err := env.templateSvc.Instantiate(ctx, tmpl.ID, nil, ""); err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if got := env.schedule(t, s.ID).NextRunDate.String(); got != "2026-03-15" {
		t.Fatalf("manual instantiate moved cursor to %s", got)
	}
}

func TestInstantiateRejectsUnknownOverride(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tmpl := env.createTemplate(t, "Plan sprint", "deep_work")
	bogus := model.Category("urgent")
	if _, err := env.instantiator.Instantiate(ctx, tmpl, nil, &bogus); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if n := env.countTasks(t); n != 0 {
		t.Fatalf("tasks = %d, want 0", n)
	}
}
