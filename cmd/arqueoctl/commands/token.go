package commands

import (
	"errors"
	"fmt"
	"time"

	"arqueo/internal/middleware"
	"arqueo/internal/model"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		userID   string
		rol      string
		sucursal string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development JWT with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Env == "production" {
				return errors.New("token is disabled when APP_ENV=production")
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required")
			}
			tok, err := firmarToken(cfg.JWTSecret, userID, rol, sucursal, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user_id (default: random)")
	cmd.Flags().StringVar(&rol, "rol", model.RolCajero, "cajero | supervisor | administrador")
	cmd.Flags().StringVar(&sucursal, "sucursal", seedID("sucursal:centro").String(), "sucursal_id (ignored for administrador)")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	return cmd
}

func firmarToken(secret, userID, rol, sucursal string, ttl time.Duration) (string, error) {
	switch rol {
	case model.RolCajero, model.RolSupervisor, model.RolAdministrador:
	default:
		return "", fmt.Errorf("rol desconocido %q", rol)
	}
	if userID == "" {
		userID = uuid.NewString()
	} else if _, err := uuid.Parse(userID); err != nil {
		return "", fmt.Errorf("user: %w", err)
	}
	var suc *string
	if rol != model.RolAdministrador {
		if _, err := uuid.Parse(sucursal); err != nil {
			return "", fmt.Errorf("sucursal: %w", err)
		}
		suc = &sucursal
	}
	return middleware.SignToken(secret, userID, rol, suc, ttl)
}
