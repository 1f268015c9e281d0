package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/store"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Issue, validate and manage access keys",
		Long: `Work with the configured key store directly, without a running server.

Rate limiting uses redis.addr when set. Otherwise each invocation starts with an
empty in-process window, so limits only apply within the server.`,
	}

	cmd.PersistentFlags().Bool("json", false, "Output JSON (default when stdout is not a terminal)")

	cmd.AddCommand(newKeyIssueCmd())
	cmd.AddCommand(newKeyValidateCmd())
	cmd.AddCommand(newKeyShowCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// wantJSON reports whether output should be JSON: requested explicitly, or
// stdout is not an interactive terminal.
func wantJSON(cmd *cobra.Command) bool {
	if v, err := cmd.Flags().GetBool("json"); err == nil && v {
		return true
	}
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		return !term.IsTerminal(int(f.Fd()))
	}
	return true
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withEngines runs fn against freshly built engines and closes them after.
func withEngines(fn func(ctx context.Context, e *engines) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	e, err := buildEngines(ctx, cfg, newLogger(cfg.Log), nil)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e)
}

// ---------- key issue ----------

func newKeyIssueCmd() *cobra.Command {
	var req model.IssueRequest

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a key for a HWID, or return its live key",
		Example: `  keygate key issue --hwid 4C4C4544-0038 --username alice --player-id 1234
  keygate key issue --hwid 4C4C4544-0038 --username alice --player-id 1234 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngines(func(ctx context.Context, e *engines) error {
				res, err := e.issuer.Issue(ctx, req)
				if err != nil {
					return fmt.Errorf("issue key: %w", err)
				}
				out := cmd.OutOrStdout()
				if wantJSON(cmd) {
					return printJSON(out, res)
				}
				state := "new"
				if !res.IsNew {
					state = "existing"
				}
				fmt.Fprintf(out, "Key:      %s (%s)\n", res.Key, state)
				fmt.Fprintf(out, "Expires:  %s\n", res.ExpiresAt.Local().Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&req.HWID, "hwid", "", "Hardware identifier (required)")
	cmd.Flags().StringVar(&req.Username, "username", "", "Player display name (required)")
	cmd.Flags().StringVar(&req.PlayerID, "player-id", "", "Player identifier")

	return cmd
}

// ---------- key validate ----------

func newKeyValidateCmd() *cobra.Command {
	var hwid string

	cmd := &cobra.Command{
		Use:     "validate <key>",
		Short:   "Check a key against a HWID",
		Long:    "Check a key against a HWID. Exits non-zero when the key is not valid.",
		Example: `  keygate key validate 3f9c0e... --hwid 4C4C4544-0038`,
		Args:    requireArgs("key"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngines(func(ctx context.Context, e *engines) error {
				res, err := e.validator.Validate(ctx, model.ValidateRequest{Key: args[0], HWID: hwid})
				if err != nil {
					return fmt.Errorf("validate key: %w", err)
				}
				out := cmd.OutOrStdout()
				if wantJSON(cmd) {
					if err := printJSON(out, res); err != nil {
						return err
					}
				} else if res.Valid {
					fmt.Fprintf(out, "Valid for %s (%s remaining)\n", res.Username,
						time.Duration(res.TimeRemaining)*time.Second)
				}
				if !res.Valid {
					return errors.New(model.ReasonMessage(res.Reason))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&hwid, "hwid", "", "Hardware identifier presenting the key (required)")

	return cmd
}

// ---------- key show ----------

func newKeyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Show the stored record for a key",
		Args:  requireArgs("key"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngines(func(ctx context.Context, e *engines) error {
				rec, err := e.backend.GetByKey(ctx, args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("key %q not found", args[0])
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if wantJSON(cmd) {
					return printJSON(out, rec)
				}
				return printRecord(out, rec, e.clock.Now())
			})
		},
	}
}

func printRecord(out io.Writer, rec *model.KeyRecord, now time.Time) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Key:\t%s\n", rec.Key)
	fmt.Fprintf(w, "HWID:\t%s\n", rec.HWID)
	fmt.Fprintf(w, "Username:\t%s\n", rec.Username)
	if rec.PlayerID != "" {
		fmt.Fprintf(w, "Player ID:\t%s\n", rec.PlayerID)
	}
	fmt.Fprintf(w, "Created:\t%s\n", rec.CreatedAt.Local().Format(time.RFC3339))
	status := "live"
	if rec.ExpiredAt(now) {
		status = "expired"
	}
	fmt.Fprintf(w, "Expires:\t%s (%s)\n", rec.ExpiresAt.Local().Format(time.RFC3339), status)
	if rec.LastValidatedAt != nil {
		fmt.Fprintf(w, "Last validated:\t%s\n", rec.LastValidatedAt.Local().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Used:\t%t\n", rec.Used)
	return w.Flush()
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key>",
		Short: "Delete a key before it expires",
		Args:  requireArgs("key"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngines(func(ctx context.Context, e *engines) error {
				err := e.backend.Delete(ctx, args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("key %q not found", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Key %s revoked.\n", args[0])
				return nil
			})
		},
	}
}
