package conteo

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Denominacion is one entry of the reference catalog. The catalog is owned by
// an external system; ledgers only consult it.
type Denominacion struct {
	Valor  decimal.Decimal
	Tipo   Tipo
	Activa bool
	Orden  int
}

// Catalogo indexes denominations by kind and canonical key.
type Catalogo struct {
	items map[Tipo]map[string]Denominacion
}

func NewCatalogo(ds []Denominacion) *Catalogo {
	c := &Catalogo{items: map[Tipo]map[string]Denominacion{}}
	for _, d := range ds {
		if c.items[d.Tipo] == nil {
			c.items[d.Tipo] = map[string]Denominacion{}
		}
		c.items[d.Tipo][Clave(d.Valor)] = d
	}
	return c
}

// Buscar looks up a denomination by kind and key.
func (c *Catalogo) Buscar(t Tipo, clave string) (Denominacion, bool) {
	if c == nil {
		return Denominacion{}, false
	}
	d, ok := c.items[t][clave]
	return d, ok
}

// Activas returns the active denominations of a kind in display order.
func (c *Catalogo) Activas(t Tipo) []Denominacion {
	if c == nil {
		return nil
	}
	var out []Denominacion
	for _, d := range c.items[t] {
		if d.Activa {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Orden < out[j].Orden })
	return out
}
