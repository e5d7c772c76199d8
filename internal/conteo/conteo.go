// Package conteo implements the denomination ledger: counts of bills and coins
// keyed by face value, their totals against the denomination catalog, and the
// per-denomination difference between two counts.
package conteo

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Tipo scopes a ledger to bills or coins.
type Tipo string

const (
	Billete Tipo = "billete"
	Moneda  Tipo = "moneda"
)

// Conteo maps a normalized face value ("1000", "0.5") to the number of pieces.
// It is persisted as JSONB, so keys must stay strings.
type Conteo map[string]int

// Diferencia is one entry of a Diff: the count on each side.
type Diferencia struct {
	Anterior int `json:"anterior"`
	Actual   int `json:"actual"`
}

// Diferencias is keyed like a Conteo and only holds denominations whose counts differ.
type Diferencias map[string]Diferencia

// Clave returns the canonical key for a face value.
func Clave(valor decimal.Decimal) string {
	return valor.String()
}

// Normalizar canonicalises keys, merges duplicates ("1000" and "1000.00"),
// drops zero counts and rejects negative counts or non-positive face values.
func Normalizar(c Conteo) (Conteo, error) {
	out := make(Conteo, len(c))
	for k, n := range c {
		v, err := decimal.NewFromString(k)
		if err != nil {
			return nil, fmt.Errorf("denominación %q inválida", k)
		}
		if !v.IsPositive() {
			return nil, fmt.Errorf("denominación %q debe ser positiva", k)
		}
		if n < 0 {
			return nil, fmt.Errorf("cantidad negativa para la denominación %s", k)
		}
		if n == 0 {
			continue
		}
		out[Clave(v)] += n
	}
	return out, nil
}

// Total is Σ valor × cantidad over the denominations of kind t that are
// currently active in cat. Keys unknown to the catalog or deactivated since the
// count was recorded contribute nothing.
func (c Conteo) Total(cat *Catalogo, t Tipo) decimal.Decimal {
	total := decimal.Zero
	for k, n := range c {
		d, ok := cat.Buscar(t, k)
		if !ok || !d.Activa {
			continue
		}
		total = total.Add(d.Valor.Mul(decimal.NewFromInt(int64(n))))
	}
	return total.Round(2)
}

// Claves returns the keys sorted by face value, descending.
func (c Conteo) Claves() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sortByValueDesc(keys)
	return keys
}

// Diff compares a (previous) against b (current) over the union of their keys
// and keeps only the denominations whose counts differ. A missing key counts
// as zero, so identical ledgers yield an empty result.
func Diff(a, b Conteo) Diferencias {
	out := Diferencias{}
	for k, n := range a {
		if m := b[k]; m != n {
			out[k] = Diferencia{Anterior: n, Actual: m}
		}
	}
	for k, m := range b {
		if _, seen := a[k]; seen {
			continue
		}
		if m != 0 {
			out[k] = Diferencia{Anterior: 0, Actual: m}
		}
	}
	return out
}

// Vacia reports whether there is no difference at all.
func (d Diferencias) Vacia() bool { return len(d) == 0 }

// Validar rejects denominations that are not active members of the catalog for
// kind t. It is a write-time check; stored ledgers are never re-validated.
func Validar(c Conteo, cat *Catalogo, t Tipo) error {
	for _, k := range c.Claves() {
		d, ok := cat.Buscar(t, k)
		if !ok {
			return fmt.Errorf("la denominación %s no existe como %s", k, t)
		}
		if !d.Activa {
			return fmt.Errorf("la denominación %s (%s) está inactiva", k, t)
		}
	}
	return nil
}

func sortByValueDesc(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		a, errA := decimal.NewFromString(keys[i])
		b, errB := decimal.NewFromString(keys[j])
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a.GreaterThan(b)
	})
}
