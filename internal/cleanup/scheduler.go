package cleanup

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/flowme-cloud/flowme-backend/internal/logging"
)

// DefaultSweepSchedule runs the deferred sweep every ten minutes.
const DefaultSweepSchedule = "0 */10 * * * *"

// Scheduler runs the deferred sweep on a cron schedule, one pass at a time.
type Scheduler struct {
	handler  *Handler
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
}

func NewScheduler(handler *Handler, schedule string) *Scheduler {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Scheduler{handler: handler, schedule: schedule}
}

// Start registers the sweep and starts the cron runner.
func (s *Scheduler) Start() error {
	c := cron.New(cron.WithSeconds())

	_, err := c.AddFunc(s.schedule, s.runOnce)
	if err != nil {
		log.Printf("Failed to create cleanup sweep job: %v", err)
		return err
	}

	s.cron = c
	log.Printf("Cleanup sweep scheduled (%s)", s.schedule)
	c.Start()
	return nil
}

// Stop halts the runner and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runOnce() {
	if !s.mu.TryLock() {
		log.Println("Cleanup sweep still running, skipping tick")
		return
	}
	defer s.mu.Unlock()

	ctx := logging.WithRequestID(context.Background(), "sweep-"+uuid.New().String())
	if _, err := s.handler.Sweep(ctx); err != nil {
		logging.NewLogger(ctx).LogError("cleanup_sweep", err)
	}
}
