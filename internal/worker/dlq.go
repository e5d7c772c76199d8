package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ── Dead letters ─────────────────────────────────────────────────────────────
// Prefetch jobs that exhaust MaxIntentos, fail permanently or cannot be decoded
// end up in dlq:{queue}. Nothing consumes that list; /health reports its length
// and operators inspect it by hand.

const DLQPrefix = "dlq:"

// DeadLetter is one entry of the dead-letter list.
type DeadLetter struct {
	Cola      string          `json:"cola"`
	Tipo      string          `json:"tipo"`
	Payload   json.RawMessage `json:"payload"`
	Motivo    string          `json:"motivo"`
	Intentos  int             `json:"intentos"`
	FallidoEn time.Time       `json:"fallido_en"`
}

// DeadLetters is the dead-letter list of one queue.
type DeadLetters struct {
	rdb   redis.UniversalClient
	queue string
	now   func() time.Time
}

func NewDeadLetters(rdb redis.UniversalClient, queue string) *DeadLetters {
	return &DeadLetters{rdb: rdb, queue: queue, now: time.Now}
}

func (d *DeadLetters) key() string { return DLQPrefix + d.queue }

// Enviar stores job with the reason it was given up on. Failures are only
// logged: the job is lost either way and the worker must keep consuming.
func (d *DeadLetters) Enviar(ctx context.Context, job Job, motivo string) {
	payload := job.Payload
	if payload == nil {
		payload = json.RawMessage(`null`)
	}
	data, err := json.Marshal(DeadLetter{
		Cola:      d.queue,
		Tipo:      job.Type,
		Payload:   payload,
		Motivo:    motivo,
		Intentos:  job.Attempts,
		FallidoEn: d.now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("queue", d.queue).Msg("dlq: cannot encode entry")
		return
	}
	if err := d.rdb.LPush(ctx, d.key(), data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", d.key()).Str("job_type", job.Type).Msg("dlq: push failed, job dropped")
		return
	}
	log.Warn().
		Str("queue", d.queue).
		Str("job_type", job.Type).
		Str("motivo", motivo).
		Int("intentos", job.Attempts).
		Msg("dlq: job dead-lettered")
}

// Len is the number of dead-lettered jobs.
func (d *DeadLetters) Len(ctx context.Context) (int64, error) {
	return d.rdb.LLen(ctx, d.key()).Result()
}
