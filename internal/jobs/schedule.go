package jobs

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler turns a one-shot job into a daemon running on a cron spec.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLogger(cronSlog{})),
	}
}

func (s *Scheduler) Add(spec string, run func()) error {
	_, err := s.cron.AddFunc(spec, run)
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling new runs and waits for the in-flight one.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

type cronSlog struct{}

func (cronSlog) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronSlog) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"err", err}, keysAndValues...)...)
}
