package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/sandorn/xthttp/pkg/headers"
	"github.com/sandorn/xthttp/pkg/response"
)

// Prometheus metrics for batch operations.
var (
	batchTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xthttp_batch_tasks_total",
		Help: "Total batch tasks by mode and outcome",
	}, []string{"mode", "outcome"})

	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "xthttp_batch_size",
		Help:    "Number of tasks per batch call",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})
)

// Scheduler fans a set of tasks out under a concurrency ceiling and
// assembles their responses in input order. Per-task failures become
// responses with status StatusNone carrying the failure via Err; one bad
// task never aborts the batch.
type Scheduler struct {
	client        *Client
	maxConcurrent int
	logger        zerolog.Logger
}

// newScheduler creates a scheduler bound to its owning client.
func newScheduler(c *Client) *Scheduler {
	maxConcurrent := c.config.MaxConcurrent
	if c.config.ForceSequential {
		maxConcurrent = 1
	}
	return &Scheduler{
		client:        c,
		maxConcurrent: maxConcurrent,
		logger:        c.logger.With().Str("component", "scheduler").Logger(),
	}
}

// SharedSessionBatch runs all tasks against one shared HTTP client whose
// connection pool is reused across the batch. Admission is gated by a
// weighted semaphore sized to the concurrency ceiling.
func (s *Scheduler) SharedSessionBatch(ctx context.Context, tasks []*Task) []*response.Response {
	batchSize.Observe(float64(len(tasks)))
	start := time.Now()

	results := make([]*response.Response, len(tasks))
	shared := headers.NewSharedHTTPClient(s.client.config.Timeouts, s.maxConcurrent)

	sem := semaphore.NewWeighted(int64(s.maxConcurrent))
	var wg sync.WaitGroup

	for idx, task := range tasks {
		if !s.admit(ctx, task, results, idx, "shared") {
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			results[idx] = s.cancelled(task, err, "shared")
			s.fillCancelled(ctx, tasks, results, idx+1, "shared")
			break
		}

		wg.Add(1)
		go func(idx int, task *Task) {
			defer wg.Done()
			defer sem.Release(1)

			resp, err := task.MultiStart(ctx, shared)
			results[idx] = s.finish(task, resp, err, "shared")
		}(idx, task)
	}

	wg.Wait()

	s.logger.Info().
		Str("mode", "shared").
		Int("tasks", len(tasks)).
		Dur("duration", time.Since(start)).
		Msg("Batch completed")

	return results
}

// ChunkedBatch processes tasks in sequential chunks of the concurrency
// ceiling; within a chunk every task runs concurrently on its own
// standalone HTTP client with isolated connections.
func (s *Scheduler) ChunkedBatch(ctx context.Context, tasks []*Task) []*response.Response {
	batchSize.Observe(float64(len(tasks)))
	start := time.Now()

	results := make([]*response.Response, len(tasks))

	for chunkStart := 0; chunkStart < len(tasks); chunkStart += s.maxConcurrent {
		chunkEnd := chunkStart + s.maxConcurrent
		if chunkEnd > len(tasks) {
			chunkEnd = len(tasks)
		}

		s.logger.Debug().
			Int("from", chunkStart).
			Int("to", chunkEnd-1).
			Msg("Processing batch chunk")

		var wg sync.WaitGroup
		for idx := chunkStart; idx < chunkEnd; idx++ {
			task := tasks[idx]
			if !s.admit(ctx, task, results, idx, "chunked") {
				continue
			}

			wg.Add(1)
			go func(idx int, task *Task) {
				defer wg.Done()
				resp, err := task.Start(ctx)
				results[idx] = s.finish(task, resp, err, "chunked")
			}(idx, task)
		}
		wg.Wait()

		if ctx.Err() != nil {
			s.fillCancelled(ctx, tasks, results, chunkEnd, "chunked")
			break
		}
	}

	s.logger.Info().
		Str("mode", "chunked").
		Int("tasks", len(tasks)).
		Dur("duration", time.Since(start)).
		Msg("Batch completed")

	return results
}

// admit runs the pre-flight configuration check. Invalid tasks get their
// failure response immediately and never consume a concurrency slot.
func (s *Scheduler) admit(ctx context.Context, task *Task, results []*response.Response, idx int, mode string) bool {
	if err := task.Configure(s.client); err != nil {
		s.logger.Warn().
			Int("index", task.Index).
			Str("url", task.URL).
			Err(err).
			Msg("Task rejected in pre-flight validation")
		batchTasksTotal.WithLabelValues(mode, "invalid").Inc()
		results[idx] = response.New(nil,
			response.WithIndex(task.Index),
			response.WithError(err),
			response.WithLogger(s.logger),
		)
		return false
	}
	return true
}

// finish converts a task outcome into its slot value, mapping hard failures
// to a StatusNone response so the batch shape is preserved.
func (s *Scheduler) finish(task *Task, resp *response.Response, err error, mode string) *response.Response {
	if err != nil {
		s.logger.Warn().
			Int("index", task.Index).
			Str("url", task.URL).
			Err(err).
			Msg("Task failed")
		batchTasksTotal.WithLabelValues(mode, "failed").Inc()
		return response.New(nil,
			response.WithIndex(task.Index),
			response.WithError(err),
			response.WithLogger(s.logger),
		)
	}

	batchTasksTotal.WithLabelValues(mode, "ok").Inc()
	return resp
}

// cancelled produces the slot value for a task that never ran.
func (s *Scheduler) cancelled(task *Task, cause error, mode string) *response.Response {
	batchTasksTotal.WithLabelValues(mode, "cancelled").Inc()
	return response.New(nil,
		response.WithIndex(task.Index),
		response.WithError(fmt.Errorf("%w: %v", ErrContextCancelled, cause)),
		response.WithLogger(s.logger),
	)
}

// fillCancelled backfills StatusNone responses for tasks that never started
// because the context died mid-batch.
func (s *Scheduler) fillCancelled(ctx context.Context, tasks []*Task, results []*response.Response, from int, mode string) {
	s.logger.Warn().
		Err(ctx.Err()).
		Int("remaining", len(tasks)-from).
		Msg("Batch aborted by context")

	for idx := from; idx < len(tasks); idx++ {
		if results[idx] == nil {
			results[idx] = s.cancelled(tasks[idx], ctx.Err(), mode)
		}
	}
}
