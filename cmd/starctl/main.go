package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/starregistry/internal/archive"
	"github.com/jmerrifield20/starregistry/internal/chain"
	"github.com/jmerrifield20/starregistry/internal/ownership"
	"github.com/jmerrifield20/starregistry/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	registryURL  string
	cfgFile      string
	outputFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "starctl",
	Short: "Star registry CLI",
	Long: `starctl is the command-line interface for the star registry.

It claims stars with a signed ownership message, reads blocks and
ownership records from a registry, and audits archived chains offline.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.starctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("starctl")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if registryURL == "" {
			registryURL = viper.GetString("registry_url")
		}
		if registryURL == "" {
			registryURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.starctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&registryURL, "registry", "", "registry URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format: text or json")

	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(starsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() (*client.Client, error) {
	return client.New(registryURL)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── request ──────────────────────────────────────────────────────────────────

var requestCmd = &cobra.Command{
	Use:   "request <address>",
	Short: "Request an ownership message to sign with your wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		msg, err := c.RequestValidation(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("request validation: %w", err)
		}

		out := cmd.OutOrStdout()
		if outputFormat == "json" {
			return printJSON(out, msg)
		}
		fmt.Fprintln(out, msg.Message)
		fmt.Fprintf(out, "\nSign this message with the wallet for %s and submit it within %ds:\n",
			msg.Address, msg.ValidityWindow)
		fmt.Fprintf(out, "  starctl submit --address %s --message '%s' --signature <base64> --dec ... --ra ... --story ...\n",
			msg.Address, msg.Message)
		return nil
	},
}

// ── submit ───────────────────────────────────────────────────────────────────

var (
	submitAddress   string
	submitMessage   string
	submitSignature string
	submitWIF       string
	submitNetwork   string
	submitStar      client.Star
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Claim a star with a signed ownership message",
	Long: `Submit claims a star for a wallet.

Either pass a message obtained with 'starctl request' together with the
wallet's signature over it:

  starctl submit --address 1A1z... --message '1A1z...:1577836800:starRegistry' \
      --signature H3x... --dec "68° 52' 56.9" --ra "16h 29m 1.0s" --story "..."

or let starctl request and sign the message with a WIF private key:

  starctl submit --wif KwDi... --dec ... --ra ... --story ...`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitAddress, "address", "", "Wallet address claiming the star")
	submitCmd.Flags().StringVar(&submitMessage, "message", "", "Ownership message from 'starctl request'")
	submitCmd.Flags().StringVar(&submitSignature, "signature", "", "Base64 Bitcoin signed-message signature")
	submitCmd.Flags().StringVar(&submitWIF, "wif", "", "Sign locally with this WIF private key")
	submitCmd.Flags().StringVar(&submitNetwork, "network", "mainnet", "Bitcoin network of the WIF key")
	submitCmd.Flags().StringVar(&submitStar.Dec, "dec", "", "Declination (required)")
	submitCmd.Flags().StringVar(&submitStar.RA, "ra", "", "Right ascension (required)")
	submitCmd.Flags().StringVar(&submitStar.Mag, "mag", "", "Magnitude")
	submitCmd.Flags().StringVar(&submitStar.Cen, "cen", "", "Constellation")
	submitCmd.Flags().StringVar(&submitStar.Story, "story", "", "Story of the star (required)")
	_ = submitCmd.MarkFlagRequired("dec")
	_ = submitCmd.MarkFlagRequired("ra")
	_ = submitCmd.MarkFlagRequired("story")
	submitCmd.MarkFlagsMutuallyExclusive("wif", "signature")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	req := client.SubmitStarRequest{
		Address:   submitAddress,
		Message:   submitMessage,
		Signature: submitSignature,
		Star:      submitStar,
	}

	if submitWIF != "" {
		params, err := ownership.NetworkParams(submitNetwork)
		if err != nil {
			return err
		}
		signer, err := ownership.NewSigner(submitWIF, params)
		if err != nil {
			return err
		}
		if req.Address, err = signer.Address(); err != nil {
			return err
		}
		msg, err := c.RequestValidation(ctx, req.Address)
		if err != nil {
			return fmt.Errorf("request validation: %w", err)
		}
		req.Message = msg.Message
		req.Signature = signer.Sign(msg.Message)
	}

	if req.Address == "" || req.Message == "" || req.Signature == "" {
		return errors.New("--address, --message and --signature are required unless --wif is given")
	}

	block, err := c.SubmitStar(ctx, req)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Reason == "expired" {
			return fmt.Errorf("ownership message expired; run 'starctl request %s' again", req.Address)
		}
		return fmt.Errorf("submit star: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		return printJSON(out, block)
	}
	fmt.Fprintf(out, "Star registered for %s\n", req.Address)
	printBlock(out, block)
	return nil
}

func printBlock(w io.Writer, b *client.Block) {
	fmt.Fprintf(w, "Height:        %d\n", b.Height)
	fmt.Fprintf(w, "Hash:          %s\n", b.Hash)
	fmt.Fprintf(w, "Previous Hash: %s\n", b.PreviousBlockHash)
	fmt.Fprintf(w, "Time:          %d\n", b.Time)
	if b.Star != nil {
		fmt.Fprintf(w, "Owner:         %s\n", b.Star.Owner)
		fmt.Fprintf(w, "Star:          dec=%s ra=%s\n", b.Star.Star.Dec, b.Star.Star.RA)
		fmt.Fprintf(w, "Story:         %s\n", b.Star.Star.Story)
	}
}

// ── block ────────────────────────────────────────────────────────────────────

var blockHeight int

var blockCmd = &cobra.Command{
	Use:   "block [hash]",
	Short: "Show a block by hash, or by height with --height",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var b *client.Block
		switch {
		case len(args) == 1:
			b, err = c.BlockByHash(cmd.Context(), args[0])
		case cmd.Flags().Changed("height"):
			b, err = c.BlockByHeight(cmd.Context(), blockHeight)
		default:
			return errors.New("pass a block hash or --height")
		}
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return printJSON(cmd.OutOrStdout(), b)
		}
		printBlock(cmd.OutOrStdout(), b)
		return nil
	},
}

func init() {
	blockCmd.Flags().IntVar(&blockHeight, "height", 0, "Block height")
}

// ── stars ────────────────────────────────────────────────────────────────────

var starsCmd = &cobra.Command{
	Use:   "stars <address>",
	Short: "List the stars claimed by a wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		stars, err := c.StarsByOwner(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if outputFormat == "json" {
			return printJSON(out, stars)
		}
		if len(stars) == 0 {
			fmt.Fprintf(out, "No stars registered for %s\n", args[0])
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DEC\tRA\tMAG\tCEN\tSTORY")
		for _, s := range stars {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Star.Dec, s.Star.RA, s.Star.Mag, s.Star.Cen, s.Star.Story)
		}
		return w.Flush()
	},
}

// ── validate / chain ─────────────────────────────────────────────────────────

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Ask the registry to verify the integrity of its chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		report, err := c.Validate(cmd.Context())
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
		} else {
			printReport(cmd.OutOrStdout(), report.Errors)
		}
		if !report.Valid {
			return errors.New("chain is invalid")
		}
		return nil
	},
}

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Show the chain ID, height and tip hash",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ov, err := c.Overview(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if outputFormat == "json" {
			return printJSON(out, ov)
		}
		fmt.Fprintf(out, "Chain ID: %s\n", ov.ChainID)
		fmt.Fprintf(out, "Height:   %d\n", ov.Height)
		fmt.Fprintf(out, "Tip:      %s\n", ov.TipHash)
		return nil
	},
}

func printReport(w io.Writer, errs []string) {
	if len(errs) == 0 {
		fmt.Fprintln(w, "Chain is valid")
		return
	}
	fmt.Fprintf(w, "Chain is INVALID (%d problem(s)):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// ── audit ────────────────────────────────────────────────────────────────────

var (
	auditDriver  string
	auditPath    string
	auditDBURL   string
	auditChainID string
	auditList    bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Validate an archived chain offline",
	Long: `Audit opens a block archive directly and runs the ledger integrity checks
over an archived chain. Without --chain the most recently started chain is
audited. Use --list to see every archived chain.

  starctl audit --driver pebble --path data/archive
  starctl audit --driver postgres --database-url postgres://... --list`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditDriver, "driver", "pebble", "Archive driver: pebble or postgres")
	auditCmd.Flags().StringVar(&auditPath, "path", "data/archive", "Pebble archive directory")
	auditCmd.Flags().StringVar(&auditDBURL, "database-url", "", "Postgres URL (default $DATABASE_URL)")
	auditCmd.Flags().StringVar(&auditChainID, "chain", "", "Chain ID to audit (see --list)")
	auditCmd.Flags().BoolVar(&auditList, "list", false, "List archived chains instead of auditing")
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openAuditArchive(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	ids, err := store.Chains(ctx)
	if err != nil {
		return fmt.Errorf("list chains: %w", err)
	}

	out := cmd.OutOrStdout()
	if auditList {
		if outputFormat == "json" {
			return printJSON(out, ids)
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	chainID := auditChainID
	if chainID == "" {
		if len(ids) == 0 {
			return errors.New("archive holds no chains")
		}
		chainID = ids[len(ids)-1]
	}

	blocks, err := store.Blocks(ctx, chainID)
	if err != nil {
		return err
	}
	errs := chain.Validate(blocks)

	if outputFormat == "json" {
		if err := printJSON(out, map[string]any{
			"chain_id": chainID,
			"blocks":   len(blocks),
			"valid":    len(errs) == 0,
			"errors":   errs,
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Chain %s: %d archived block(s)\n", chainID, len(blocks))
		printReport(out, errs)
	}
	if len(errs) > 0 {
		return errors.New("archived chain is invalid")
	}
	return nil
}

func openAuditArchive(ctx context.Context) (archive.Archive, error) {
	switch auditDriver {
	case "pebble":
		if _, err := os.Stat(auditPath); err != nil {
			return nil, fmt.Errorf("archive %s: %w", auditPath, err)
		}
		return archive.OpenPebble(auditPath)
	case "postgres":
		dbURL := auditDBURL
		if dbURL == "" {
			dbURL = os.Getenv("DATABASE_URL")
		}
		if dbURL == "" {
			return nil, errors.New("--database-url or DATABASE_URL is required for postgres")
		}
		db, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		return &poolCloser{PostgresArchive: archive.NewPostgresArchive(db, zap.NewNop()), pool: db}, nil
	default:
		return nil, fmt.Errorf("unknown archive driver %q (want pebble or postgres)", auditDriver)
	}
}

type poolCloser struct {
	*archive.PostgresArchive
	pool *pgxpool.Pool
}

func (p *poolCloser) Close() error {
	p.pool.Close()
	return nil
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the starctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "starctl %s\n", version)
	},
}
