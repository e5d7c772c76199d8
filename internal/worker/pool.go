package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueLedger = "arqueo:jobs:ledger"

	JobPrefetchLedger = "prefetch_ledger"

	// MaxIntentos is how many times a job runs before it is dead-lettered.
	MaxIntentos = 8
)

// ErrPermanente marks a job that must not be retried.
var ErrPermanente = errors.New("job failed permanently")

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

type PrefetchPayload struct {
	SesionID   string `json:"sesion_id"`
	Referencia string `json:"referencia"`
}

// Handler runs one job. A nil error acks it; ErrPermanente sends it straight
// to the DLQ; anything else schedules a retry with backoff.
type Handler interface {
	Procesar(ctx context.Context, job Job) error
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb redis.UniversalClient
}

func NewDispatcher(rdb redis.UniversalClient) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// SesionCerrada enqueues a prefetch of the sales-ledger snapshot for a session
// that has just been closed, so reconciliation finds it cached.
func (d *Dispatcher) SesionCerrada(ctx context.Context, sesionID uuid.UUID, referencia string) error {
	return d.enqueue(ctx, QueueLedger, JobPrefetchLedger, PrefetchPayload{SesionID: sesionID.String(), Referencia: referencia})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming queue.
// Each goroutine blocks on BRPOP and exits when ctx is done.
func StartWorkerPool(ctx context.Context, rdb redis.UniversalClient, queue string, h Handler, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, queue, h, i)
	}
	log.Info().Str("queue", queue).Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb redis.UniversalClient, queue string, h Handler, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop; waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queue).Result()
			if err != nil || len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, result[0], result[1], h)
		}
	}
}

func processJob(ctx context.Context, rdb redis.UniversalClient, queue, raw string, h Handler) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		NewDeadLetters(rdb, queue).Enviar(ctx, Job{}, "undecodable: "+err.Error())
		return
	}

	err := h.Procesar(ctx, job)
	if err == nil {
		return
	}
	job.Attempts++

	if errors.Is(err, ErrPermanente) || job.Attempts >= MaxIntentos {
		NewDeadLetters(rdb, queue).Enviar(ctx, job, err.Error())
		return
	}

	delay := computeRetryBackoff(job.Attempts)
	if perr := programarReintento(ctx, rdb, queue, job, time.Now().Add(delay)); perr != nil {
		log.Error().Err(perr).Str("queue", queue).Msg("failed to schedule retry")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", job.Type).
		Int("attempts", job.Attempts).
		Dur("retry_in", delay).
		Err(err).
		Msg("job failed, retry scheduled")
}
