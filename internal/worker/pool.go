package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"caixa/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueExport = "jobs:export"

	jobTypeExport = "export"

	// MaxJobAttempts is how many times a job runs before it goes to the DLQ.
	MaxJobAttempts = 3

	// queueErrorBackoff is the pause after a failed BRPOP (e.g. Redis down).
	queueErrorBackoff = 2 * time.Second
)

// Job is the envelope stored in the Redis list.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// ExportPayload names the closed day whose archive should be written.
type ExportPayload struct {
	Day string `json:"day"`
}

// pusher is the slice of the Redis client needed to enqueue.
type pusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Dispatcher enqueues export jobs into Redis. The worker pool dequeues
// them via BRPOP.
type Dispatcher struct {
	rdb pusher
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueExport pushes an archive export job for day.
func (d *Dispatcher) EnqueueExport(ctx context.Context, day string) error {
	payload, err := json.Marshal(ExportPayload{Day: day})
	if err != nil {
		return err
	}
	return enqueue(ctx, d.rdb, QueueExport, Job{Type: jobTypeExport, Payload: payload})
}

func enqueue(ctx context.Context, rdb pusher, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := rdb.LPush(ctx, queue, encoded).Err(); err != nil {
		return fmt.Errorf("enqueue %s job: %w", job.Type, err)
	}
	return nil
}

// Handler processes the payload of one job type. A returned error makes
// the pool retry the job.
type Handler interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

// WorkerHandlers holds the per-type handlers injected at the composition root.
type WorkerHandlers struct {
	Export Handler
}

// Pool consumes the job queues.
type Pool struct {
	rdb        *redis.Client
	queue      pusher
	handlers   *WorkerHandlers
	metrics    *metrics.Metrics
	errBackoff time.Duration
}

func NewPool(rdb *redis.Client, handlers *WorkerHandlers, m *metrics.Metrics) *Pool {
	return &Pool{rdb: rdb, queue: rdb, handlers: handlers, metrics: m, errBackoff: queueErrorBackoff}
}

// Start launches numWorkers goroutines blocked on BRPOP.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	for i := 0; i < numWorkers; i++ {
		go p.runWorker(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	queues := []string{QueueExport}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue
				}
				log.Warn().Err(err).Int("worker", id).Msg("queue read failed")
				select {
				case <-ctx.Done():
				case <-time.After(p.errBackoff):
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.processJob(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		p.metrics.ExportJob("invalid")
		return
	}

	var h Handler
	switch job.Type {
	case jobTypeExport:
		h = p.handlers.Export
	}
	if h == nil {
		log.Error().Str("type", job.Type).Str("queue", queue).Msg("no handler for job type")
		p.metrics.ExportJob("invalid")
		return
	}

	job.Attempts++
	err := h.Process(ctx, job.Payload)
	if err == nil {
		log.Info().Str("type", job.Type).Int("attempt", job.Attempts).Msg("job done")
		p.metrics.ExportJob("done")
		return
	}

	if job.Attempts >= MaxJobAttempts {
		SendToDLQ(ctx, p.queue, queue, job, err.Error())
		p.metrics.ExportJob("dead")
		return
	}
	log.Warn().Err(err).Str("type", job.Type).Int("attempt", job.Attempts).Msg("job failed, requeueing")
	if qerr := enqueue(ctx, p.queue, queue, job); qerr != nil {
		log.Error().Err(qerr).Str("type", job.Type).Msg("failed to requeue job")
	}
	p.metrics.ExportJob("retried")
}
