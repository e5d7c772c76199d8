package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"arqueo/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// ColaMuerta is the dead-letter list of the ledger prefetch queue.
type ColaMuerta interface {
	Len(ctx context.Context) (int64, error)
}

// Health reports database, Redis and sales-ledger breaker status, plus the
// number of dead-lettered prefetch jobs when the worker runs (dlq may be nil).
// The ledger is informational: an open breaker does not make the service unhealthy.
func Health(db *sql.DB, rdb redis.UniversalClient, ledger *infra.CircuitBreaker, dlq ColaMuerta) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		if db == nil || db.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		if rdb == nil || rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		}

		ledgerStatus := "disabled"
		if ledger != nil {
			ledgerStatus = ledger.State().String()
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		body := gin.H{
			"ok":     status == http.StatusOK,
			"db":     dbStatus,
			"redis":  redisStatus,
			"ledger": ledgerStatus,
		}
		if dlq != nil && redisStatus == "connected" {
			if n, err := dlq.Len(ctx); err == nil {
				body["ledger_dlq"] = n
			}
		}
		c.JSON(status, body)
	}
}
