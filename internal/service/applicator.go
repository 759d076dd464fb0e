package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"task-planner/internal/lock"
	"task-planner/internal/model"
)

// ApplyResult summarises one ApplyDue call.
type ApplyResult struct {
	RunID             string
	Due               int
	Created           int
	SkippedDayOff     int
	SkippedNoCategory int
	Duplicates        int
	Advanced          int
}

// ScheduleApplicator instantiates the occurrences due on an opened day and
// moves every due cursor past it.
//
// A task is created for a (schedule, date) pair at most once: cursors only
// move forward, a second call for the same date finds nothing due, and the
// occurrence ledger rejects the pair if two callers ever get that far.
type ScheduleApplicator struct {
	schedules    ScheduleStore
	catalog      TemplateCatalog
	instantiator *TaskInstantiator
	tx           Transactor
	locker       lock.Locker
	log          logrus.FieldLogger
}

func NewScheduleApplicator(
	schedules ScheduleStore,
	catalog TemplateCatalog,
	instantiator *TaskInstantiator,
	tx Transactor,
	locker lock.Locker,
	log logrus.FieldLogger,
) *ScheduleApplicator {
	return &ScheduleApplicator{
		schedules:    schedules,
		catalog:      catalog,
		instantiator: instantiator,
		tx:           tx,
		locker:       locker,
		log:          log,
	}
}

// ApplyDue processes every schedule due on or before date for the opened
// day. All writes happen in one transaction; on error nothing is committed
// and the call can be retried.
func (a *ScheduleApplicator) ApplyDue(ctx context.Context, day *model.Day, date model.Date) (ApplyResult, error) {
	runID := uuid.NewString()
	log := a.log.WithFields(logrus.Fields{"run_id": runID, "date": date.String(), "day_id": day.ID})

	if !day.Date.IsZero() && day.Date != date {
		return ApplyResult{RunID: runID}, fmt.Errorf("%w: day %s, date %s", ErrDayMismatch, day.Date, date)
	}

	unlock, err := a.locker.Lock(ctx, date.String())
	if err != nil {
		return ApplyResult{RunID: runID}, fmt.Errorf("lock day %s: %w", date, err)
	}
	defer unlock()

	var result ApplyResult
	err = a.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		result = ApplyResult{RunID: runID}

		due, err := a.schedules.ListDue(ctx, date)
		if err != nil {
			return err
		}
		result.Due = len(due)

		for i := range due {
			if err := a.applyOne(ctx, log, day, date, &due[i], &result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("apply due schedules failed, rolled back")
		return ApplyResult{RunID: runID}, err
	}

	if result.Due > 0 {
		log.WithFields(logrus.Fields{
			"due":                 result.Due,
			"created":             result.Created,
			"skipped_day_off":     result.SkippedDayOff,
			"skipped_no_category": result.SkippedNoCategory,
			"duplicates":          result.Duplicates,
			"advanced":            result.Advanced,
		}).Info("applied due schedules")
	}
	return result, nil
}

func (a *ScheduleApplicator) applyOne(ctx context.Context, log logrus.FieldLogger, day *model.Day, date model.Date, s *model.Schedule, result *ApplyResult) error {
	slog := log.WithFields(logrus.Fields{
		"schedule_id":   s.ID,
		"template_id":   s.TemplateID,
		"next_run_date": s.NextRunDate.String(),
	})

	switch s.DueState(date) {
	case model.DueToday:
		if err := a.applyOccurrence(ctx, slog, day, date, s, result); err != nil {
			return err
		}
	case model.Overdue:
		slog.Debug("overdue schedule, catching up without backfill")
	case model.NotYetDue:
		return nil
	}

	next := AdvancePast(s.NextRunDate, s.Recurrence, s.AnchorDay(), date)
	ok, err := a.schedules.AdvanceNextRun(ctx, s.ID, s.NextRunDate, next)
	if err != nil {
		return err
	}
	if !ok {
		slog.Warn("schedule cursor moved concurrently, leaving it")
		return nil
	}
	s.NextRunDate = next
	result.Advanced++
	return nil
}

// applyOccurrence handles the one occurrence that equals the opened date.
func (a *ScheduleApplicator) applyOccurrence(ctx context.Context, log logrus.FieldLogger, day *model.Day, date model.Date, s *model.Schedule, result *ApplyResult) error {
	occ := &model.Occurrence{ScheduleID: s.ID, Date: date}

	var template *model.Template
	if day.IsOff {
		occ.Outcome = model.OutcomeSkippedDayOff
	} else {
		t, err := a.catalog.Get(ctx, s.TemplateID)
		if err != nil {
			return fmt.Errorf("load template %d: %w", s.TemplateID, err)
		}
		template = t
		if template.HasCategory() {
			occ.Outcome = model.OutcomeCreated
		} else {
			occ.Outcome = model.OutcomeSkippedNoCategory
		}
	}

	recorded, err := a.schedules.RecordOccurrence(ctx, occ)
	if err != nil {
		return err
	}
	if !recorded {
		result.Duplicates++
		log.Warn("occurrence already applied, not instantiating again")
		return nil
	}

	switch occ.Outcome {
	case model.OutcomeSkippedDayOff:
		result.SkippedDayOff++
		log.Info("day is off, occurrence dropped")
		return nil
	case model.OutcomeSkippedNoCategory:
		result.SkippedNoCategory++
		log.Warn("template has no category, occurrence dropped")
		return nil
	}

	task, err := a.instantiator.Instantiate(ctx, template, &day.ID, template.Category)
	if err != nil {
		return fmt.Errorf("instantiate template %d: %w", template.ID, err)
	}
	if err := a.schedules.AttachTask(ctx, occ.ID, task.ID); err != nil {
		return err
	}
	result.Created++
	log.WithField("task_id", task.ID).Info("task instantiated from schedule")
	return nil
}
