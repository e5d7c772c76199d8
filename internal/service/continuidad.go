package service

import (
	"context"
	"errors"

	"arqueo/internal/conteo"
	"arqueo/internal/model"
	"arqueo/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ── Continuity ───────────────────────────────────────────────────────────────
// The bills a cashier leaves in the drawer should be exactly the bills the next
// cashier declares at opening. Coins are not tracked. Both checks are advisory.

type continuidad struct {
	repo repository.CajaRepository
}

// alAbrir diffs the change left by the register's previous session against
// the new opening bills and returns that session's id alongside. Any failure
// is logged and reported as no discrepancy.
func (c continuidad) alAbrir(ctx context.Context, puntoDeVentaID uuid.UUID, apertura conteo.Conteo) (*uuid.UUID, conteo.Diferencias) {
	prev, err := c.repo.FindUltimaSesionNoAbierta(ctx, puntoDeVentaID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Warn().Err(err).Str("punto_de_venta_id", puntoDeVentaID.String()).Msg("continuidad: previous session lookup failed")
		return nil, nil
	}
	diff := conteo.Diff(prev.Cierre.CambioDejado, apertura)
	if diff.Vacia() {
		return &prev.ID, nil
	}
	log.Info().
		Str("punto_de_venta_id", puntoDeVentaID.String()).
		Str("sesion_anterior", prev.ID.String()).
		Int("denominaciones", len(diff)).
		Msg("continuidad: opening differs from change left")
	return &prev.ID, diff
}

// anterioresCiegas reports, per session id, whether the opening discrepancy of
// that session must be withheld from lector because its predecessor is still
// blind for them. On lookup failure every discrepancy with a predecessor is
// withheld.
func (c continuidad) anterioresCiegas(ctx context.Context, lector Actor, sesiones []*model.SesionCaja) map[uuid.UUID]bool {
	out := map[uuid.UUID]bool{}
	var prevIDs []uuid.UUID
	for _, s := range sesiones {
		if s.SesionAnteriorID != nil && !s.DiscrepanciaApertura.Vacia() {
			prevIDs = append(prevIDs, *s.SesionAnteriorID)
		}
	}
	if len(prevIDs) == 0 {
		return out
	}
	marcarTodas := func(err error) map[uuid.UUID]bool {
		log.Warn().Err(err).Int("sesiones", len(prevIDs)).Msg("continuidad: predecessor lookup failed, withholding discrepancies")
		for _, s := range sesiones {
			if s.SesionAnteriorID != nil {
				out[s.ID] = true
			}
		}
		return out
	}
	prevs, err := c.repo.FindSesionesPorIDs(ctx, prevIDs)
	if err != nil {
		return marcarTodas(err)
	}
	verificadas, err := c.repo.VerificadasEntre(ctx, prevIDs)
	if err != nil {
		return marcarTodas(err)
	}
	for _, s := range sesiones {
		if s.SesionAnteriorID == nil {
			continue
		}
		prev, ok := prevs[*s.SesionAnteriorID]
		if ok && SesionOculta(prev, verificadas[prev.ID], lector) {
			out[s.ID] = true
		}
	}
	return out
}

// conSiguiente diffs s's change left against the opening bills of the next
// session on the same register. It returns nil while there is no successor.
func (c continuidad) conSiguiente(ctx context.Context, s *model.SesionCaja) conteo.Diferencias {
	if s.Estado == model.EstadoAbierta {
		return nil
	}
	next, err := c.repo.FindSesionSiguiente(ctx, s)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Str("sesion_id", s.ID.String()).Msg("continuidad: next session lookup failed")
		return nil
	}
	diff := conteo.Diff(s.Cierre.CambioDejado, next.CambioInicialBilletes)
	if diff.Vacia() {
		return nil
	}
	return diff
}
