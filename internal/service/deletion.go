package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"filelinker/internal/model"
	"filelinker/internal/repository"
)

const sweepBatchSize = 100

// MessageDeleter removes a message from a chat.
type MessageDeleter interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// SweepResult summarizes one RunOnce.
type SweepResult struct {
	Jobs     int
	Deleted  int
	Failed   int
	Duration time.Duration
}

// DeletionScheduler persists deferred deletions of delivered copies and
// executes them from a background sweep once they are due. Jobs stored
// before a restart are picked up by the first sweep after boot.
type DeletionScheduler struct {
	repo     repository.DeletionRepository
	deleter  MessageDeleter
	delay    time.Duration
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDeletionScheduler creates a scheduler that deletes messages delay after Schedule and sweeps every interval.
func NewDeletionScheduler(
	repo repository.DeletionRepository,
	deleter MessageDeleter,
	delay, interval time.Duration,
	logger *log.Logger,
) *DeletionScheduler {
	return &DeletionScheduler{
		repo:     repo,
		deleter:  deleter,
		delay:    delay,
		interval: interval,
		logger:   logger.With("component", "deletion"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for fire times and due checks.
func (s *DeletionScheduler) WithClock(now func() time.Time) *DeletionScheduler {
	s.now = now
	return s
}

// Schedule records that messageIDs in chatID must be removed after the configured delay.
// It returns nil without storing anything when messageIDs is empty.
func (s *DeletionScheduler) Schedule(ctx context.Context, chatID int64, messageIDs []int) (*model.PendingDeletion, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	now := s.now()
	job := &model.PendingDeletion{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		MessageIDs: append([]int(nil), messageIDs...),
		FireAt:     now.Add(s.delay),
		CreatedAt:  now,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("store pending deletion: %w", err)
	}
	s.logger.Debug("deletion_scheduled", "job_id", job.ID, "chat_id", chatID, "messages", len(messageIDs), "fire_at", job.FireAt)
	return job, nil
}

// Start launches the sweep loop. The first sweep runs immediately.
func (s *DeletionScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	s.logger.Info("deletion_sweeper_started", "interval", s.interval.String(), "delay", s.delay.String())
}

// Stop ends the sweep loop and waits for an in-flight sweep to finish.
func (s *DeletionScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("deletion_sweeper_stopped")
}

func (s *DeletionScheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *DeletionScheduler) sweep(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("deletion_sweep_failed", "err", err)
	}
}

// RunOnce executes every due job. Each message is deleted independently;
// a failure is logged and does not stop the remaining deletions. A job is
// removed once all of its messages have been attempted.
func (s *DeletionScheduler) RunOnce(ctx context.Context) (res SweepResult, err error) {
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		deletionSweepDuration.Observe(res.Duration.Seconds())
	}()

	for {
		jobs, err := s.repo.ListDue(ctx, s.now(), sweepBatchSize)
		if err != nil {
			return res, fmt.Errorf("list due deletions: %w", err)
		}
		for _, job := range jobs {
			s.execute(ctx, job, &res)
			if err := s.repo.Delete(ctx, job.ID); err != nil {
				return res, fmt.Errorf("remove deletion job %s: %w", job.ID, err)
			}
			res.Jobs++
		}
		if len(jobs) < sweepBatchSize || ctx.Err() != nil {
			break
		}
	}
	if res.Jobs > 0 {
		s.logger.Info("deletion_sweep", "jobs", res.Jobs, "deleted", res.Deleted, "failed", res.Failed)
	}
	return res, nil
}

func (s *DeletionScheduler) execute(ctx context.Context, job model.PendingDeletion, res *SweepResult) {
	for _, id := range job.MessageIDs {
		if err := s.deleter.DeleteMessage(ctx, job.ChatID, id); err != nil {
			res.Failed++
			deletionsTotal.WithLabelValues("failed").Inc()
			s.logger.Error("delete_message_failed", "job_id", job.ID, "chat_id", job.ChatID, "message_id", id, "err", err)
			continue
		}
		res.Deleted++
		deletionsTotal.WithLabelValues("deleted").Inc()
	}
}
