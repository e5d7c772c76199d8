package service

import (
	"context"

	"arqueo/internal/conciliacion"

	"github.com/rs/zerolog/log"
)

// LedgerExterno fetches the external sales ledger's view of a shift.
// infra.LedgerClient implements it.
type LedgerExterno interface {
	Obtener(ctx context.Context, referencia string) (*conciliacion.Externo, error)
}

type ledgerCacheado struct {
	inner LedgerExterno
	cache Cache
}

// NewLedgerCacheado caches ledger snapshots once the ERP reports them closed.
// Open shifts keep changing upstream and are always fetched.
func NewLedgerCacheado(inner LedgerExterno, cache Cache) LedgerExterno {
	if cache == nil {
		return inner
	}
	return &ledgerCacheado{inner: inner, cache: cache}
}

func (l *ledgerCacheado) Obtener(ctx context.Context, referencia string) (*conciliacion.Externo, error) {
	var ext conciliacion.Externo
	ok, err := l.cache.Get(ctx, referencia, &ext)
	if err != nil {
		log.Warn().Err(err).Str("referencia", referencia).Msg("ledger: cache read failed")
	}
	if ok {
		return &ext, nil
	}

	fresh, err := l.inner.Obtener(ctx, referencia)
	if err != nil {
		return nil, err
	}
	if fresh.Cerrado {
		if err := l.cache.Set(ctx, referencia, fresh); err != nil {
			log.Warn().Err(err).Str("referencia", referencia).Msg("ledger: cache write failed")
		}
	}
	return fresh, nil
}
