package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/go-co-op/gocron/v2"
)

// Job is a periodic task run by the Manager.
type Job interface {
	Name() string
	Definition() gocron.JobDefinition
	Execute()
}

// Manager owns a gocron scheduler and the jobs registered on it. Each job
// runs in singleton mode: a run that is still going delays the next one.
type Manager struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

func NewManager(logger *slog.Logger) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Manager{scheduler: s, logger: logger}, nil
}

func (m *Manager) Register(job Job, startImmediately bool) error {
	opts := []gocron.JobOption{
		gocron.WithName(job.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if startImmediately {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	if _, err := m.scheduler.NewJob(job.Definition(), gocron.NewTask(job.Execute), opts...); err != nil {
		return fmt.Errorf("register job %s: %w", job.Name(), err)
	}
	m.logger.Info("job registered", "job", job.Name())
	return nil
}

func (m *Manager) Start() {
	m.scheduler.Start()
	m.logger.Info("scheduler started", "jobs", len(m.scheduler.Jobs()))
}

// Stop waits for running jobs to return before shutting the scheduler down.
func (m *Manager) Stop() error {
	if err := m.scheduler.Shutdown(); err != nil {
		m.logger.Error("failed to shutdown scheduler", "error", err)
		return err
	}
	m.logger.Info("scheduler stopped")
	return nil
}
