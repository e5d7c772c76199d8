// Package conciliacion builds the three-way comparison of a cash session:
// cashier figures, supervisor recount and the external sales ledger.
package conciliacion

import (
	"strings"

	"github.com/shopspring/decimal"
)

type TipoCategoria string

const (
	CategoriaEfectivo   TipoCategoria = "efectivo"
	CategoriaMetodoPago TipoCategoria = "metodo_pago"
	CategoriaTotal      TipoCategoria = "total"
)

// Metodo is a locally recorded payment-method total.
type Metodo struct {
	ID          string
	Nombre      string
	Monto       decimal.Decimal
	Operaciones int
}

// Fuente holds the figures of one local source (cashier or supervisor).
// Efectivo is already net of opening change and change left.
type Fuente struct {
	Efectivo decimal.Decimal
	Metodos  []Metodo
}

// MetodoExterno is a payment-method line of the external ledger.
type MetodoExterno struct {
	Nombre      string          `json:"nombre"`
	Monto       decimal.Decimal `json:"monto"`
	Operaciones int             `json:"operaciones"`
}

// Externo is the external ledger's view of the shift.
type Externo struct {
	EfectivoTotal decimal.Decimal `json:"efectivo_total"`
	Metodos       []MetodoExterno `json:"metodos_pago"`
	Cerrado       bool            `json:"cerrado"`
}

// Entrada groups the sources. Cajero is nil when withheld from the reader,
// Supervisor is nil until a verification exists and Externo is nil when the
// ledger could not be fetched.
type Entrada struct {
	Cajero       *Fuente
	Supervisor   *Fuente
	Externo      *Externo
	ErrorExterno string
}

type Categoria struct {
	Nombre                 string           `json:"nombre"`
	Tipo                   TipoCategoria    `json:"tipo"`
	Cajero                 *decimal.Decimal `json:"cajero"`
	Supervisor             *decimal.Decimal `json:"supervisor"`
	Externo                *decimal.Decimal `json:"externo"`
	NombreExterno          string           `json:"nombre_externo,omitempty"`
	DiffVsExterno          *decimal.Decimal `json:"diff_vs_externo"`
	DiffCajeroVsSupervisor *decimal.Decimal `json:"diff_cajero_vs_supervisor"`
	SoloExterno            bool             `json:"solo_externo"`
}

type Resultado struct {
	Categorias        []Categoria `json:"categorias"`
	ExternoDisponible bool        `json:"externo_disponible"`
	ExternoCerrado    bool        `json:"externo_cerrado"`
	ErrorExterno      string      `json:"error_externo,omitempty"`
	// Provisional is true while no supervisor recount exists; cashier vs
	// supervisor differences are advisory until then.
	Provisional bool `json:"provisional"`
}

// Motor builds reconciliations with a replaceable matching strategy.
type Motor struct {
	matcher Matcher
}

func NewMotor(m Matcher) *Motor {
	if m == nil {
		m = SubstringMatcher{}
	}
	return &Motor{matcher: m}
}

// local is a payment-method category seen by at least one local source.
type local struct {
	id         string
	clave      string
	nombre     string
	cajero     decimal.Decimal
	supervisor decimal.Decimal
	externo    decimal.Decimal
	nombresExt []string
}

// Construir produces the categorized comparison. Every amount is rounded to two
// decimals before it is compared.
func (m *Motor) Construir(in Entrada) Resultado {
	res := Resultado{
		ExternoDisponible: in.Externo != nil,
		ErrorExterno:      in.ErrorExterno,
		Provisional:       in.Supervisor == nil,
	}
	if in.Externo != nil {
		res.ExternoCerrado = in.Externo.Cerrado
	}

	locales := m.categoriasLocales(in)
	var soloExternos []MetodoExterno
	if in.Externo != nil {
		soloExternos = m.asignarExternos(locales, in.Externo.Metodos)
	}

	efectivo := Categoria{Nombre: "Efectivo", Tipo: CategoriaEfectivo}
	if in.Cajero != nil {
		efectivo.Cajero = ptr(in.Cajero.Efectivo)
	}
	if in.Supervisor != nil {
		efectivo.Supervisor = ptr(in.Supervisor.Efectivo)
	}
	if in.Externo != nil {
		efectivo.Externo = ptr(in.Externo.EfectivoTotal)
	}
	res.Categorias = append(res.Categorias, completar(efectivo))

	for _, l := range locales {
		c := Categoria{Nombre: l.nombre, Tipo: CategoriaMetodoPago, NombreExterno: strings.Join(l.nombresExt, ", ")}
		if in.Cajero != nil {
			c.Cajero = ptr(l.cajero)
		}
		if in.Supervisor != nil {
			c.Supervisor = ptr(l.supervisor)
		}
		if in.Externo != nil {
			c.Externo = ptr(l.externo)
		}
		res.Categorias = append(res.Categorias, completar(c))
	}

	for _, e := range soloExternos {
		c := Categoria{Nombre: e.Nombre, Tipo: CategoriaMetodoPago, NombreExterno: e.Nombre, SoloExterno: true}
		if in.Cajero != nil {
			c.Cajero = ptr(decimal.Zero)
		}
		if in.Supervisor != nil {
			c.Supervisor = ptr(decimal.Zero)
		}
		c.Externo = ptr(e.Monto)
		res.Categorias = append(res.Categorias, completar(c))
	}

	total := Categoria{Nombre: "Total", Tipo: CategoriaTotal}
	for _, c := range res.Categorias {
		total.Cajero = sumar(total.Cajero, c.Cajero, in.Cajero != nil)
		total.Supervisor = sumar(total.Supervisor, c.Supervisor, in.Supervisor != nil)
		total.Externo = sumar(total.Externo, c.Externo, in.Externo != nil)
	}
	res.Categorias = append(res.Categorias, completar(total))

	return res
}

// categoriasLocales merges cashier and supervisor payment methods, cashier
// order first. Within a source, entries with the same id or normalized name
// add up. A supervisor entry joins the cashier category with the same id or
// normalized name, or failing that the first one the matcher accepts; the
// supervisor counts blind and may not know the cashier's metodo_id.
func (m *Motor) categoriasLocales(in Entrada) []*local {
	var out []*local
	buscar := func(mp Metodo) *local {
		n := normalizar(mp.Nombre)
		for _, l := range out {
			if (mp.ID != "" && l.id == mp.ID) || (n != "" && l.clave == n) {
				return l
			}
		}
		return nil
	}
	nuevo := func(mp Metodo) *local {
		l := &local{id: mp.ID, clave: normalizar(mp.Nombre), nombre: mp.Nombre}
		out = append(out, l)
		return l
	}
	if in.Cajero != nil {
		for _, mp := range in.Cajero.Metodos {
			l := buscar(mp)
			if l == nil {
				l = nuevo(mp)
			}
			l.cajero = l.cajero.Add(mp.Monto)
		}
	}
	if in.Supervisor != nil {
		for _, mp := range in.Supervisor.Metodos {
			l := buscar(mp)
			if l == nil {
				for _, c := range out {
					if m.matcher.Coincide(c.nombre, mp.Nombre) {
						l = c
						break
					}
				}
			}
			if l == nil {
				l = nuevo(mp)
			}
			l.supervisor = l.supervisor.Add(mp.Monto)
		}
	}
	return out
}

// asignarExternos gives each external line to the first local category whose
// name matches and returns the lines that matched none.
func (m *Motor) asignarExternos(locales []*local, externos []MetodoExterno) []MetodoExterno {
	var sinMatch []MetodoExterno
	for _, e := range externos {
		asignado := false
		for _, l := range locales {
			if m.matcher.Coincide(l.nombre, e.Nombre) {
				l.externo = l.externo.Add(e.Monto)
				l.nombresExt = append(l.nombresExt, e.Nombre)
				asignado = true
				break
			}
		}
		if !asignado {
			sinMatch = append(sinMatch, e)
		}
	}
	return sinMatch
}

func completar(c Categoria) Categoria {
	c.Cajero = round(c.Cajero)
	c.Supervisor = round(c.Supervisor)
	c.Externo = round(c.Externo)

	base := c.Supervisor
	if base == nil {
		base = c.Cajero
	}
	if base != nil && c.Externo != nil {
		c.DiffVsExterno = ptr(base.Sub(*c.Externo).Round(2))
	}
	if c.Cajero != nil && c.Supervisor != nil {
		c.DiffCajeroVsSupervisor = ptr(c.Cajero.Sub(*c.Supervisor).Round(2))
	}
	return c
}

func normalizar(nombre string) string {
	return strings.ToUpper(strings.Join(strings.Fields(nombre), " "))
}

func sumar(acc, v *decimal.Decimal, presente bool) *decimal.Decimal {
	if !presente {
		return nil
	}
	if acc == nil {
		acc = ptr(decimal.Zero)
	}
	if v == nil {
		return acc
	}
	return ptr(acc.Add(*v))
}

func round(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	return ptr(d.Round(2))
}

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }
