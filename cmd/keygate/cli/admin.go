package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/keygate/keygate/internal/config"
	"github.com/keygate/keygate/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin API credentials",
		Long:  "Mint bearer tokens for the /api/admin endpoints (cleanup, key lookup, revocation, stats).",
	}

	cmd.AddCommand(newAdminTokenCmd())

	return cmd
}

// ---------- admin token ----------

func newAdminTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin bearer token",
		Long: `Sign an HS256 admin token with auth.jwt_secret. When no secret is configured and
stdin is a terminal, the secret is prompted for; it must match the server's.`,
		Example: `  keygate admin token --subject ops
  KEYGATE_AUTH_JWT_SECRET=... keygate admin token --ttl 15m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminToken(cmd, subject, ttl)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "admin", "Token subject, recorded in server logs")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default: auth.jwt_expiry)")

	return cmd
}

func runAdminToken(cmd *cobra.Command, subject string, ttl time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Auth.JWTSecret == "" {
		secret, err := promptSecret("JWT secret: ")
		if err != nil {
			return err
		}
		cfg.Auth.JWTSecret = secret
	}
	if ttl <= 0 {
		ttl = cfg.Auth.JWTExpiry
	}

	tok, err := newAuthService(cfg).IssueJWT(context.Background(), subject, ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}

// promptSecret reads a secret from the terminal without echo.
func promptSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("auth.jwt_secret is not set and stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	secret := strings.TrimSpace(string(b))
	if secret == "" {
		return "", fmt.Errorf("secret must not be empty")
	}
	return secret, nil
}

func newAuthService(cfg *config.Config) *service.AuthService {
	return service.NewAuthService(cfg.Auth.JWTSecret)
}
