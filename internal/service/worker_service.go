package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cobrify/dunning-engine/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// WorkerService consumes tenant run messages and executes the evaluation
// pass for each. Each message is bounded by the configured time budget so a
// huge tenant cannot starve the pool.
type WorkerService struct {
	consumer    queue.Consumer
	runs        *RunService
	logger      *zap.Logger
	concurrency int
	timeBudget  time.Duration
}

func NewWorkerService(
	consumer queue.Consumer,
	runs *RunService,
	concurrency int,
	timeBudget time.Duration,
	logger *zap.Logger,
) (*WorkerService, error) {
	if runs == nil {
		return nil, fmt.Errorf("run service is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		consumer:    consumer,
		runs:        runs,
		logger:      logger,
		concurrency: concurrency,
		timeBudget:  timeBudget,
	}, nil
}

// Start consumes the run queue until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.RunQueueName),
			)

			err := s.consumer.Consume(groupCtx, queue.RunQueueName, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.TenantRunMessage) error {
	runCtx := ctx
	if s.timeBudget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeBudget)
		defer cancel()
	}

	summary, err := s.runs.EvaluateAndDispatch(runCtx, msg.TenantID, msg.TriggeredAt)
	if err != nil {
		return fmt.Errorf("tenant run failed: %w", err)
	}

	s.logger.Info("tenant run processed",
		zap.String("runId", msg.RunID),
		zap.String("tenantId", msg.TenantID),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
	return nil
}
