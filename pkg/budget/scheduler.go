package budget

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

const cycleJobTimeout = time.Minute

// CycleScheduler opens the week's cycle (and its segment cycles) ahead of the first admin visit.
type CycleScheduler struct {
	cronEngine *cron.Cron
	service    Service
	spec       string
}

func NewCycleScheduler(service Service, spec string) *CycleScheduler {
	return &CycleScheduler{
		cronEngine: cron.New(cron.WithLocation(time.UTC)),
		service:    service,
		spec:       spec,
	}
}

// Start registers the job and starts the cron engine. An empty spec leaves the scheduler idle.
func (s *CycleScheduler) Start() error {
	if s.spec == "" {
		log.Info("budget cycle scheduler disabled")
		return nil
	}
	if _, err := s.cronEngine.AddFunc(s.spec, s.openCurrentCycle); err != nil {
		return err
	}
	s.cronEngine.Start()
	log.Infof("budget cycle scheduler started with spec %q", s.spec)
	return nil
}

func (s *CycleScheduler) openCurrentCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), cycleJobTimeout)
	defer cancel()

	cycle, err := s.service.GetCurrentCycle(ctx)
	if err != nil {
		log.Errorf("scheduled budget cycle creation failed: %v", err)
		return
	}
	log.Infof("budget cycle %d for week %s is open", cycle.Id, cycle.WeekStart.Format(time.DateOnly))
}

// Stop stops the engine and waits for a running job to finish.
func (s *CycleScheduler) Stop() {
	<-s.cronEngine.Stop().Done()
}
