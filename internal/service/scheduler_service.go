package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is a scheduled unit of work. ctx is cancelled when the job times out
// or the scheduler stops.
type Job func(ctx context.Context) error

// SchedulerService runs named jobs on cron specs in one location.
type SchedulerService struct {
	cron   *cron.Cron
	loc    *time.Location
	log    logrus.FieldLogger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewSchedulerService(loc *time.Location, log logrus.FieldLogger) *SchedulerService {
	log = log.WithField("component", "scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{log: log}
	return &SchedulerService{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		loc:    loc,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ScheduleDaily registers job to run every day at the HH:MM time at. Each
// run gets timeout to finish.
func (s *SchedulerService) ScheduleDaily(name, at string, timeout time.Duration, job Job) (cron.EntryID, error) {
	spec, err := buildDailySpec(at)
	if err != nil {
		return 0, err
	}
	id, err := s.cron.AddFunc(spec, func() { s.run(name, timeout, job) })
	if err != nil {
		return 0, fmt.Errorf("schedule %s: %w", name, err)
	}
	s.log.WithFields(logrus.Fields{"job": name, "at": strings.TrimSpace(at)}).Info("job scheduled")
	return id, nil
}

// NextRun reports when the entry fires next; zero for an unknown entry.
func (s *SchedulerService) NextRun(id cron.EntryID) time.Time {
	entry := s.cron.Entry(id)
	if entry.Schedule == nil {
		return time.Time{}
	}
	return entry.Schedule.Next(time.Now().In(s.loc))
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *SchedulerService) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

func (s *SchedulerService) run(name string, timeout time.Duration, job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	started := time.Now()
	entry := s.log.WithField("job", name)
	if err := job(ctx); err != nil {
		entry.WithError(err).WithField("took", time.Since(started).String()).Error("job failed")
		return
	}
	entry.WithField("took", time.Since(started).String()).Info("job finished")
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(strings.TrimSpace(timeStr), ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}

// cronLogger feeds cron's internal messages into logrus.
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

func kvFields(keysAndValues []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
