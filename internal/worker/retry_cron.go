package worker

// Failed jobs wait in a sorted set keyed by due time. The cron moves due jobs
// back to their queue, and skips ticks while the ledger breaker is open.

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"arqueo/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	retrySuffix       = ":retry"
	retryTickInterval = 15 * time.Second
	retryBatchSize    = 50
)

func computeRetryBackoff(attempt int) time.Duration {
	d := 30 * time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= 30*time.Minute {
			return 30 * time.Minute
		}
	}
	return d
}

func programarReintento(ctx context.Context, rdb redis.UniversalClient, queue string, job Job, due time.Time) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.ZAdd(ctx, queue+retrySuffix, redis.Z{Score: float64(due.UnixMilli()), Member: data}).Err()
}

// RetryCronConfig holds the dependencies of the retry goroutine. CB may be nil.
type RetryCronConfig struct {
	RDB   redis.UniversalClient
	Queue string
	CB    *infra.CircuitBreaker
	Every time.Duration
}

// StartRetryCron launches the goroutine that requeues due retries.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	every := cfg.Every
	if every <= 0 {
		every = retryTickInterval
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		log.Info().Str("queue", cfg.Queue).Msg("retry_cron: started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
					log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
					continue
				}
				if n, err := moverVencidos(ctx, cfg.RDB, cfg.Queue, time.Now()); err != nil {
					log.Error().Err(err).Msg("retry_cron: failed to requeue")
				} else if n > 0 {
					log.Info().Int("count", n).Str("queue", cfg.Queue).Msg("retry_cron: jobs requeued")
				}
			}
		}
	}()
}

// moverVencidos moves jobs due at or before now back to the queue. ZRem
// decides ownership, so concurrent crons never requeue the same job twice.
func moverVencidos(ctx context.Context, rdb redis.UniversalClient, queue string, now time.Time) (int, error) {
	key := queue + retrySuffix
	due, err := rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: retryBatchSize,
	}).Result()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, member := range due {
		removed, err := rdb.ZRem(ctx, key, member).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		if err := rdb.LPush(ctx, queue, member).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
