package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"arqueo/internal/conciliacion"

	"github.com/rs/zerolog/log"
)

var errTurnoAbierto = errors.New("ledger shift not closed yet")

// LedgerFetcher is satisfied by service.LedgerExterno.
type LedgerFetcher interface {
	Obtener(ctx context.Context, referencia string) (*conciliacion.Externo, error)
}

// LedgerPrefetchWorker fetches the sales-ledger snapshot of a closed session
// through the caching adapter. The snapshot is only cached once the ledger
// reports the shift closed, so an open shift is retried.
type LedgerPrefetchWorker struct {
	ledger LedgerFetcher
}

func NewLedgerPrefetchWorker(ledger LedgerFetcher) *LedgerPrefetchWorker {
	return &LedgerPrefetchWorker{ledger: ledger}
}

func (w *LedgerPrefetchWorker) Procesar(ctx context.Context, job Job) error {
	if job.Type != JobPrefetchLedger {
		return fmt.Errorf("%w: unknown job type %q", ErrPermanente, job.Type)
	}
	var p PrefetchPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil || p.Referencia == "" {
		return fmt.Errorf("%w: bad payload", ErrPermanente)
	}

	ext, err := w.ledger.Obtener(ctx, p.Referencia)
	if err != nil {
		// Not-found is retried too: the ledger may not have ingested the shift.
		return err
	}
	if !ext.Cerrado {
		return errTurnoAbierto
	}
	log.Info().
		Str("sesion_id", p.SesionID).
		Str("referencia", p.Referencia).
		Msg("ledger snapshot prefetched")
	return nil
}
