package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"Flashgrid/internal/auth"
	"Flashgrid/internal/calc/flashapi"
	"Flashgrid/internal/config"
	"Flashgrid/internal/engine/wilson"
	"Flashgrid/internal/flash"
	"Flashgrid/internal/grid"
	"Flashgrid/internal/logging"
	"Flashgrid/internal/olga"
	"Flashgrid/internal/phase"
)

type options struct {
	configFile string
	endpoint   string
	request    string
	results    string
	out        string
	molarMass  float64
	logLevel   string
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "olgatab",
		Short:         "Compute flash grids and write OLGA TAB fluid property files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "ini config file with grid and flash defaults")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warning", "log level")
	root.PersistentFlags().StringVar(&opts.endpoint, "endpoint", string(flash.PH), "flash type (pt_flash, ph_flash, ts_flash, vt_flash, uv_flash)")
	root.PersistentFlags().StringVarP(&opts.out, "out", "o", "", "output file, stdout when empty")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a flash grid with the built-in engine and encode it",
		Long: "Run reads a request body as accepted by the HTTP service, computes " +
			"the grid with the built-in Wilson K-value engine and writes the OLGA TAB file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrid(cmd.Context(), opts, stdout)
		},
	}
	runCmd.Flags().StringVarP(&opts.request, "request", "r", "", "request JSON file")
	_ = runCmd.MarkFlagRequired("request")

	encodeCmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode saved JSON results as OLGA TAB",
		Long: "Encode reads a JSON response (or bare results array) in SI units and the " +
			"request that produced it, and writes the OLGA TAB file without running any flash.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return encode(cmd.Context(), opts, stdout)
		},
	}
	encodeCmd.Flags().StringVarP(&opts.request, "request", "r", "", "request JSON file, for the composition")
	encodeCmd.Flags().StringVar(&opts.results, "results", "", "results JSON file")
	encodeCmd.Flags().Float64Var(&opts.molarMass, "molar-mass", 0, "mixture molar mass in g/mol; computed when zero")
	_ = encodeCmd.MarkFlagRequired("request")
	_ = encodeCmd.MarkFlagRequired("results")

	fluidsCmd := &cobra.Command{
		Use:   "fluids",
		Short: "List the fluids known to the built-in engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range wilson.Names() {
				if _, err := fmt.Fprintln(stdout, name); err != nil {
					return err
				}
			}
			return nil
		},
	}

	var subject string
	var ttl time.Duration
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token signed with the configured token key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.Server.TokenKey == "" {
				return errors.New("no token key configured; set TOKEN_KEY or server.token_key")
			}
			token, err := (&auth.Authenv{JWTkey: []byte(cfg.Server.TokenKey)}).IssueToken(subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(stdout, token)
			return err
		},
	}
	tokenCmd.Flags().StringVar(&subject, "subject", "", "token subject")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")

	root.AddCommand(runCmd, encodeCmd, fluidsCmd, tokenCmd)
	return root
}

func readInput(path string) (flashapi.Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return flashapi.Input{}, err
	}
	defer f.Close()
	return flashapi.Decode(f)
}

func defaults(cfg *config.Config) flashapi.Defaults {
	strategy, err := grid.ParseStrategy(cfg.Grid.Strategy)
	if err != nil {
		strategy = grid.Equidistant
	}
	return flashapi.Defaults{
		Ranges: cfg.Grid.Defaults,
		Options: flash.Options{
			Strategy:          strategy,
			EnhancementFactor: cfg.Grid.EnhancementFactor,
			BoundaryZoneWidth: cfg.Grid.BoundaryZoneWidth,
			Traversal:         flash.Traversal(cfg.Flash.Traversal),
			Parallel:          cfg.Flash.Parallel,
			Workers:           cfg.Flash.Workers,
			ChunkSize:         cfg.Flash.ChunkSize,
			PointTimeout:      cfg.Flash.PointTimeout,
		},
		MaxPoints: cfg.Limits.MaxPoints,
	}
}

// prepare loads the config and the request file and validates them for kind.
func prepare(opts *options) (*config.Config, flashapi.Prepared, error) {
	kind, err := flash.ParseKind(opts.endpoint)
	if err != nil {
		return nil, flashapi.Prepared{}, err
	}
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, flashapi.Prepared{}, fmt.Errorf("loading config: %w", err)
	}
	in, err := readInput(opts.request)
	if err != nil {
		return nil, flashapi.Prepared{}, err
	}
	prep, err := flashapi.Prepare(kind, in, defaults(cfg), true)
	if err != nil {
		return nil, flashapi.Prepared{}, err
	}
	return cfg, prep, nil
}

func runGrid(ctx context.Context, opts *options, stdout io.Writer) error {
	cfg, prep, err := prepare(opts)
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, opts.logLevel, "text")
	engine := wilson.New()
	locator := phase.New(engine, phase.Config{
		ProbesX:      cfg.Phase.ProbesX,
		ProbesY:      cfg.Phase.ProbesY,
		Workers:      cfg.Phase.Workers,
		ProbeTimeout: cfg.Phase.ProbeTimeout,
	}, logger)
	run, err := flash.NewOrchestrator(engine, locator, logger).CalculateGrid(ctx, prep.Request)
	if err != nil {
		return err
	}
	logger.WithField("failed", run.Info.FailedPoints).Infof("computed %d points", run.Info.TotalPoints)

	tab, err := olga.Encode(run.Kind, run.X.Points, run.Y.Points, run.Results(), run.Composition, run.MolarMass)
	if err != nil {
		return err
	}
	return write(opts.out, stdout, tab)
}

// encode rebuilds both grids from the request ranges, the way the service
// built them, and places each saved result by its indices or axis values.
// Grid cells with no result keep their zero default. Adaptive requests have
// no boundary information here and come out equidistant.
func encode(ctx context.Context, opts *options, stdout io.Writer) error {
	_, prep, err := prepare(opts)
	if err != nil {
		return err
	}
	req := prep.Request
	data, err := os.ReadFile(opts.results)
	if err != nil {
		return err
	}
	results, err := flash.DecodeResults(data, req.Kind)
	if err != nil {
		return err
	}
	x, err := axisGrid(req.X, req.Options.Strategy)
	if err != nil {
		return err
	}
	y, err := axisGrid(req.Y, req.Options.Strategy)
	if err != nil {
		return err
	}
	mm := opts.molarMass
	if mm <= 0 {
		if mm, err = wilson.New().MolarMass(ctx, req.Composition); err != nil {
			return fmt.Errorf("molar mass: %w; pass --molar-mass", err)
		}
	}

	tab, err := olga.Encode(req.Kind, x.Points, y.Points, results, req.Composition, mm)
	if err != nil {
		return err
	}
	return write(opts.out, stdout, tab)
}

func axisGrid(a flash.AxisSpec, strategy grid.Strategy) (*grid.Grid, error) {
	if strategy == grid.Adaptive {
		strategy = grid.Equidistant
	}
	return grid.Generate(grid.Spec{From: a.From, To: a.To, Resolution: a.Resolution, Strategy: strategy})
}

func write(path string, stdout io.Writer, tab string) error {
	if path == "" {
		_, err := io.WriteString(stdout, tab)
		return err
	}
	return os.WriteFile(path, []byte(tab), 0o644)
}
