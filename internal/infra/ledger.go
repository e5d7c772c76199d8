package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"arqueo/internal/conciliacion"

	"github.com/shopspring/decimal"
)

// ErrLedgerNotFound is returned when the ERP has no closing for the reference.
var ErrLedgerNotFound = errors.New("ledger: referencia no encontrada")

// ledgerCierre is the ERP's wire format for a register closing.
type ledgerCierre struct {
	CashTotal      decimal.Decimal `json:"cash_total"`
	PaymentMethods []struct {
		Name           string          `json:"name"`
		Amount         decimal.Decimal `json:"amount"`
		OperationCount int             `json:"operation_count"`
	} `json:"payment_methods"`
	Closed bool `json:"closed"`
}

// LedgerClient fetches register closings from the external sales ledger (ERP)
// through a circuit breaker. A 404 is a valid answer and never trips the CB.
type LedgerClient struct {
	baseURL    string
	httpClient *http.Client
	cb         *CircuitBreaker
}

func NewLedgerClient(baseURL string, timeout time.Duration, cb *CircuitBreaker) *LedgerClient {
	if cb == nil {
		cb = NewCircuitBreaker(DefaultCBConfig())
	}
	return &LedgerClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cb:         cb,
	}
}

// Breaker exposes the CB for health reporting.
func (c *LedgerClient) Breaker() *CircuitBreaker { return c.cb }

// Obtener returns the ERP closing identified by referencia.
func (c *LedgerClient) Obtener(ctx context.Context, referencia string) (*conciliacion.Externo, error) {
	var (
		out      *conciliacion.Externo
		notFound bool
	)
	err := c.cb.Execute(func() error {
		res, nf, err := c.fetch(ctx, referencia)
		out, notFound = res, nf
		return err
	})
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, ErrLedgerNotFound
	}
	return out, nil
}

func (c *LedgerClient) fetch(ctx context.Context, referencia string) (*conciliacion.Externo, bool, error) {
	endpoint := c.baseURL + "/v1/cierres/" + url.PathEscape(referencia)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("ledger: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("ledger: unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, true, nil
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("ledger: returned %d", resp.StatusCode)
	}

	var body ledgerCierre
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, fmt.Errorf("ledger: decode response: %w", err)
	}

	ext := &conciliacion.Externo{
		EfectivoTotal: body.CashTotal.Round(2),
		Cerrado:       body.Closed,
	}
	for _, pm := range body.PaymentMethods {
		ext.Metodos = append(ext.Metodos, conciliacion.MetodoExterno{
			Nombre:      pm.Name,
			Monto:       pm.Amount.Round(2),
			Operaciones: pm.OperationCount,
		})
	}
	return ext, false, nil
}
