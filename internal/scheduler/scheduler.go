package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper is the card expiration job: it returns how many cards it
// transitioned.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Scheduler drives the expiration sweep on two cron schedules: the daily
// run shortly after midnight and a safety run every few hours in case the
// daily one was missed.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	log     *logrus.Logger
}

func New(sweeper Sweeper, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		log:     log,
	}
}

// Start registers both schedules and launches the cron loop.
func (s *Scheduler) Start(dailySpec, safetySpec string) error {
	if _, err := s.cron.AddFunc(dailySpec, func() { s.run("daily") }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(safetySpec, func() { s.run("safety") }); err != nil {
		return err
	}
	s.cron.Start()
	s.log.WithFields(logrus.Fields{"daily": dailySpec, "safety": safetySpec}).Info("expiration sweeper scheduled")
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunNow triggers a sweep outside the schedule and returns its result.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	return s.sweeper.SweepExpired(ctx)
}

func (s *Scheduler) run(trigger string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("expiration sweep panicked")
		}
	}()
	count, err := s.sweeper.SweepExpired(context.Background())
	if err != nil {
		s.log.WithError(err).Error("expiration sweep failed")
		return
	}
	s.log.WithFields(logrus.Fields{"trigger": trigger, "expired": count}).Info("expiration sweep finished")
}
