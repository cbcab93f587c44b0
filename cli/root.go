// Package cli provides the optpricer command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/cpu"
	"github.com/spf13/cobra"

	"github.com/bcdannyboy/optpricer/bsm"
	"github.com/bcdannyboy/optpricer/config"
	"github.com/bcdannyboy/optpricer/fdm"
	"github.com/bcdannyboy/optpricer/logging"
	"github.com/bcdannyboy/optpricer/models"
	"github.com/bcdannyboy/optpricer/probability"
	"github.com/bcdannyboy/optpricer/store"
)

// Version information
const Version = "0.1.0"

// Engine names accepted by --engine.
const (
	EngineFD  = "fd"
	EngineMC  = "mc"
	EngineBSM = "bsm"
)

// App holds the dependencies shared by every command.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.RunStore
}

// NewRootCmd creates the root command. Configuration and logging are set up
// before each command runs, once the flags are parsed.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "optpricer",
		Short: "Numerical option pricing engine",
		Long: `optpricer prices European, American and path-dependent options with a
Crank-Nicolson finite difference solver, a parallel Monte Carlo simulator or
the Black-Scholes-Merton closed form. It also inverts prices to implied
volatility, computes bump-and-reprice Greeks and estimates historical
volatility from daily bars.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app.Store != nil {
				return app.Store.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config file or directory (default: ./optpricer.toml, ~/.config/optpricer)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("record", false, "record results in the run journal")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newPriceCmd(app))
	rootCmd.AddCommand(newImpliedCmd(app))
	rootCmd.AddCommand(newFitCmd(app))
	rootCmd.AddCommand(newGreeksCmd(app))
	rootCmd.AddCommand(newRiskCmd(app))
	rootCmd.AddCommand(newBatchCmd(app))
	rootCmd.AddCommand(newHVolCmd(app))
	rootCmd.AddCommand(newRunsCmd(app))

	return rootCmd
}

func (a *App) setup(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}
	if cfg.Simulation.Workers == 0 {
		cfg.Simulation.Workers = defaultWorkers()
	}

	a.Config = cfg
	a.Logger = logging.NewLoggerWithConfig(cfg.LogConfig())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.WithLogger(ctx, a.Logger))

	a.Logger.Debug().
		Str("command", cmd.Name()).
		Int("workers", cfg.Simulation.Workers).
		Msg("configuration loaded")
	return nil
}

// defaultWorkers is the logical CPU count.
func defaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"version": Version})
			}
			output.Printf("optpricer v%s\n", Version)
			return nil
		},
	}
}

// pricer builds the named engine from the loaded configuration.
func (a *App) pricer(engine string) (models.Pricer, error) {
	switch engine {
	case EngineFD:
		s, err := fdm.NewSolver(a.Config.GridConfig(), fdm.WithLogger(a.Logger))
		if err != nil {
			return nil, err
		}
		return s, nil
	case EngineMC:
		return a.simulator()
	case EngineBSM:
		return bsm.Pricer{}, nil
	}
	return nil, fmt.Errorf("unknown engine %q (want %s, %s or %s)", engine, EngineFD, EngineMC, EngineBSM)
}

func (a *App) simulator() (*probability.Simulator, error) {
	return probability.NewSimulator(a.Config.SimConfig(), probability.WithLogger(a.Logger))
}

// runStore opens the journal on first use.
func (a *App) runStore() (store.RunStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	path := a.Config.Store.Path
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	a.Store = s
	a.Logger.Debug().Str("path", path).Msg("SQLite store initialized")
	return s, nil
}

// record journals a result when --record is set. A journal failure does not
// fail the command.
func (a *App) record(cmd *cobra.Command, c models.ContractSpec, m models.MarketParameters, res models.PricingResult, elapsed time.Duration) {
	if on, _ := cmd.Flags().GetBool("record"); !on {
		return
	}
	ctx := cmd.Context()
	log := logging.FromContextOr(ctx, a.Logger)
	s, err := a.runStore()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open run journal")
		return
	}
	run := store.NewRun(cmd.Name(), c, m, res, elapsed)
	if err := s.SaveRun(ctx, run); err != nil {
		log.Warn().Err(err).Msg("Failed to record run")
		return
	}
	log.Debug().Str("run_id", run.ID).Msg("run recorded")
}
