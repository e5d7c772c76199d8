package commands

import (
	"arqueo/internal/model"
	"arqueo/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// seedNamespace derives stable IDs so re-running seed is idempotent.
var seedNamespace = uuid.MustParse("6f1c2a4e-3d0b-4b8e-9a57-2f4c1d9e8a10")

func seedID(name string) uuid.UUID { return uuid.NewSHA1(seedNamespace, []byte(name)) }

type seedData struct {
	Denominaciones []model.Denominacion
	PuntosDeVenta  []model.PuntoDeVenta
	Empleados      []model.Empleado
}

func datosDemo() seedData {
	var ds []model.Denominacion
	for i, v := range []int64{20000, 10000, 2000, 1000, 500, 200, 100, 50, 20, 10} {
		ds = append(ds, model.Denominacion{ID: seedID("billete:" + decimal.NewFromInt(v).String()), Valor: decimal.NewFromInt(v), Tipo: "billete", Activa: true, Orden: i})
	}
	for i, v := range []int64{10, 5, 2, 1} {
		ds = append(ds, model.Denominacion{ID: seedID("moneda:" + decimal.NewFromInt(v).String()), Valor: decimal.NewFromInt(v), Tipo: "moneda", Activa: true, Orden: i})
	}

	sucursal := seedID("sucursal:centro")
	return seedData{
		Denominaciones: ds,
		PuntosDeVenta: []model.PuntoDeVenta{
			{ID: seedID("pdv:caja-1"), SucursalID: sucursal, Nombre: "Caja 1"},
			{ID: seedID("pdv:caja-2"), SucursalID: sucursal, Nombre: "Caja 2"},
		},
		Empleados: []model.Empleado{
			{ID: seedID("empleado:E001"), Codigo: "E001", Nombre: "Cajero Demo", GrupoSucursal: "centro", Activo: true},
			{ID: seedID("empleado:E002"), Codigo: "E002", Nombre: "Relevo Demo", GrupoSucursal: "centro", Activo: true},
			{ID: seedID("empleado:S001"), Codigo: "S001", Nombre: "Supervisor Demo", GrupoSucursal: "centro", Activo: true},
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load development reference data (denominations, registers, employees)",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			d := datosDemo()
			repo := repository.NewReferenciaRepository(db)
			if err := repo.UpsertReferencia(cmd.Context(), d.Denominaciones, d.PuntosDeVenta, d.Empleados); err != nil {
				return err
			}
			log.Info().
				Int("denominaciones", len(d.Denominaciones)).
				Int("puntos_de_venta", len(d.PuntosDeVenta)).
				Int("empleados", len(d.Empleados)).
				Str("sucursal_id", d.PuntosDeVenta[0].SucursalID.String()).
				Msg("seed applied")
			return nil
		},
	}
}
