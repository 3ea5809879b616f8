package training

import (
	"context"
	"fmt"

	"github.com/clinicflow/waittime/pkg/common/logger"
	"github.com/robfig/cron/v3"
)

// Scheduler queues retraining jobs on a cron expression.
type Scheduler struct {
	cron    *cron.Cron
	service *Service
}

// NewScheduler parses schedule in the standard five-field format or a descriptor
// such as @daily. A run that overlaps the previous one is skipped.
func NewScheduler(service *Service, schedule string) (*Scheduler, error) {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	s := &Scheduler{cron: c, service: service}
	if _, err := c.AddFunc(schedule, s.trigger); err != nil {
		return nil, fmt.Errorf("invalid retrain schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) trigger() {
	job, err := s.service.Create(context.Background(), CreateJobInput{Trigger: TriggerSchedule})
	if err != nil {
		logger.Log.WithError(err).Error("scheduled retraining could not be queued")
		return
	}
	logger.Log.WithField("job_id", job.ID).Info("scheduled retraining queued")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running trigger to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
