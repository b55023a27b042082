package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/prite36/smart-irrigation/internal/irrigation"
)

const jobTimeout = time.Minute

// Analyzer runs one irrigation analysis and may start an automatic session.
type Analyzer interface {
	Analyze(ctx context.Context) irrigation.AnalysisResult
}

// Scheduler periodically triggers an analysis, the same as calling
// GET /api/ai/analyze.
type Scheduler struct {
	scheduler *gocron.Scheduler
	analyzer  Analyzer
	interval  time.Duration
}

func NewScheduler(analyzer Analyzer, interval time.Duration, timezone string) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("analyze interval must be positive, got %v", interval)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load location %q: %w", timezone, err)
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		analyzer:  analyzer,
		interval:  interval,
	}, nil
}

// Start begins the scheduler's job execution.
func (s *Scheduler) Start() error {
	log.Printf("[INFO] Scheduling irrigation analysis every %v", s.interval)
	if _, err := s.scheduler.Every(s.interval).SingletonMode().WaitForSchedule().Do(s.RunJob); err != nil {
		return fmt.Errorf("failed to schedule analysis: %w", err)
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	log.Println("[INFO] Stopping scheduler...")
	s.scheduler.Stop()
}

// RunJob runs a single analysis. It can also be called directly for debugging.
func (s *Scheduler) RunJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result := s.analyzer.Analyze(ctx)
	switch {
	case result.AutoStarted:
		log.Printf("[INFO] Scheduled analysis started irrigation for %d minutes", result.DurationMinutes)
	case result.AutoStartError != "":
		log.Printf("[WARN] Scheduled analysis wanted irrigation but the pump did not start: %s", result.AutoStartError)
	default:
		log.Printf("[INFO] Scheduled analysis: %s", result.Reason)
	}
}
