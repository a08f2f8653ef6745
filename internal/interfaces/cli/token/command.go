package token

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orris-inc/gatewarden/internal/infrastructure/auth"
	"github.com/orris-inc/gatewarden/internal/infrastructure/config"
	"github.com/orris-inc/gatewarden/internal/shared/authorization"
)

var (
	configPath string
	userID     string
	role       string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "token",
		Short:        "Issue a bearer token",
		Long:         `Issue an access token signed with auth.jwt.secret, e.g. an admin token for the /admin endpoints.`,
		RunE:         run,
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")
	cmd.Flags().StringVar(&userID, "user", "", "Subject of the token")
	cmd.Flags().StringVar(&role, "role", string(authorization.RoleUser), "Role claim (user, admin)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	r := authorization.UserRole(role)
	if !r.IsValid() {
		return fmt.Errorf("unknown role %q", role)
	}

	cfg, err := config.Load(configPath, "")
	if err != nil {
		return err
	}

	token, exp, err := auth.NewJWTService(cfg.Auth.JWT.Secret, cfg.Auth.JWT.AccessExpMinutes).Generate(userID, r)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", exp.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}
