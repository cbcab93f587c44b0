// Package config loads the engine settings from optpricer.toml, the
// environment and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bcdannyboy/optpricer/calibration"
	"github.com/bcdannyboy/optpricer/fdm"
	"github.com/bcdannyboy/optpricer/greeks"
	"github.com/bcdannyboy/optpricer/logging"
	"github.com/bcdannyboy/optpricer/probability"
)

const (
	configName = "optpricer"
	envPrefix  = "OPTPRICER"
)

// Config is the full application configuration.
type Config struct {
	Grid        GridConfig        `mapstructure:"grid"`
	Simulation  SimulationConfig  `mapstructure:"simulation"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
	Greeks      GreeksConfig      `mapstructure:"greeks"`
	Log         LogConfig         `mapstructure:"log"`
	Store       StoreConfig       `mapstructure:"store"`
}

// GridConfig holds finite difference settings.
type GridConfig struct {
	SpaceSteps     int     `mapstructure:"space_steps"`
	TimeSteps      int     `mapstructure:"time_steps"`
	DomainMultiple float64 `mapstructure:"domain_multiple"`
	Theta          float64 `mapstructure:"theta"`
	SmoothingSteps int     `mapstructure:"smoothing_steps"`
	Greeks         bool    `mapstructure:"greeks"`
}

// SimulationConfig holds Monte Carlo settings. Workers = 0 picks the
// logical CPU count at run time.
type SimulationConfig struct {
	Paths          int    `mapstructure:"paths"`
	Steps          int    `mapstructure:"steps"`
	Seed           uint64 `mapstructure:"seed"`
	Antithetic     bool   `mapstructure:"antithetic"`
	ControlVariate bool   `mapstructure:"control_variate"`
	Workers        int    `mapstructure:"workers"`
	BlockSize      int    `mapstructure:"block_size"`
}

// CalibrationConfig holds implied volatility search settings.
type CalibrationConfig struct {
	PriceTolerance float64 `mapstructure:"price_tolerance"`
	VolTolerance   float64 `mapstructure:"vol_tolerance"`
	MaxIterations  int     `mapstructure:"max_iterations"`
	LowerVol       float64 `mapstructure:"lower_vol"`
	UpperVol       float64 `mapstructure:"upper_vol"`
}

// GreeksConfig holds bump sizes.
type GreeksConfig struct {
	SpotRelative float64 `mapstructure:"spot_relative"`
	Volatility   float64 `mapstructure:"volatility"`
	Rate         float64 `mapstructure:"rate"`
	Time         float64 `mapstructure:"time"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// StoreConfig locates the run journal.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/optpricer"
	}
	return filepath.Join(home, ".config", "optpricer")
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	grid := fdm.DefaultGridConfig()
	sim := probability.DefaultSimConfig()
	tol := calibration.DefaultTolerances()
	bumps := greeks.DefaultBumps()
	log := logging.DefaultLogConfig()

	return &Config{
		Grid: GridConfig{
			SpaceSteps:     grid.SpaceSteps,
			TimeSteps:      grid.TimeSteps,
			DomainMultiple: grid.DomainMultiple,
			Theta:          grid.Theta,
			SmoothingSteps: grid.SmoothingSteps,
			Greeks:         grid.ComputeGreeks,
		},
		Simulation: SimulationConfig{
			Paths:          sim.Paths,
			Steps:          sim.Steps,
			Seed:           sim.Seed,
			Antithetic:     sim.Antithetic,
			ControlVariate: sim.ControlVariate,
			Workers:        0,
			BlockSize:      sim.BlockSize,
		},
		Calibration: CalibrationConfig{
			PriceTolerance: tol.PriceTolerance,
			VolTolerance:   tol.VolTolerance,
			MaxIterations:  tol.MaxIterations,
			LowerVol:       tol.LowerVol,
			UpperVol:       tol.UpperVol,
		},
		Greeks: GreeksConfig{
			SpotRelative: bumps.SpotRelative,
			Volatility:   bumps.Volatility,
			Rate:         bumps.Rate,
			Time:         bumps.Time,
		},
		Log: LogConfig{
			Level:      log.Level,
			Console:    log.Console,
			File:       log.File,
			FilePath:   log.FilePath,
			MaxSize:    log.MaxSize,
			MaxBackups: log.MaxBackups,
			MaxAge:     log.MaxAge,
		},
		Store: StoreConfig{
			Path: filepath.Join(DefaultConfigDir(), "runs.db"),
		},
	}
}

// Load reads configuration. path may name a TOML file or a directory to
// search for optpricer.toml; empty searches the working directory and
// DefaultConfigDir. A missing file in search mode is not an error, a missing
// explicit file is. Variables from a .env file in the working directory are
// loaded first, and OPTPRICER_<SECTION>_<KEY> overrides any file value.
func Load(path string) (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := false
	if path != "" {
		info, err := os.Stat(path)
		switch {
		case err == nil && info.IsDir():
			v.SetConfigName(configName)
			v.AddConfigPath(path)
		case err == nil:
			v.SetConfigFile(path)
			explicit = true
		default:
			return nil, fmt.Errorf("config: %w", err)
		}
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		v.AddConfigPath(DefaultConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("grid.space_steps", d.Grid.SpaceSteps)
	v.SetDefault("grid.time_steps", d.Grid.TimeSteps)
	v.SetDefault("grid.domain_multiple", d.Grid.DomainMultiple)
	v.SetDefault("grid.theta", d.Grid.Theta)
	v.SetDefault("grid.smoothing_steps", d.Grid.SmoothingSteps)
	v.SetDefault("grid.greeks", d.Grid.Greeks)

	v.SetDefault("simulation.paths", d.Simulation.Paths)
	v.SetDefault("simulation.steps", d.Simulation.Steps)
	v.SetDefault("simulation.seed", d.Simulation.Seed)
	v.SetDefault("simulation.antithetic", d.Simulation.Antithetic)
	v.SetDefault("simulation.control_variate", d.Simulation.ControlVariate)
	v.SetDefault("simulation.workers", d.Simulation.Workers)
	v.SetDefault("simulation.block_size", d.Simulation.BlockSize)

	v.SetDefault("calibration.price_tolerance", d.Calibration.PriceTolerance)
	v.SetDefault("calibration.vol_tolerance", d.Calibration.VolTolerance)
	v.SetDefault("calibration.max_iterations", d.Calibration.MaxIterations)
	v.SetDefault("calibration.lower_vol", d.Calibration.LowerVol)
	v.SetDefault("calibration.upper_vol", d.Calibration.UpperVol)

	v.SetDefault("greeks.spot_relative", d.Greeks.SpotRelative)
	v.SetDefault("greeks.volatility", d.Greeks.Volatility)
	v.SetDefault("greeks.rate", d.Greeks.Rate)
	v.SetDefault("greeks.time", d.Greeks.Time)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.console", d.Log.Console)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.file_path", d.Log.FilePath)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age", d.Log.MaxAge)

	v.SetDefault("store.path", d.Store.Path)
}

// Validate checks every section against the engine it configures.
func (c *Config) Validate() error {
	if err := c.GridConfig().Validate(); err != nil {
		return err
	}
	if err := c.SimConfig().Validate(); err != nil {
		return err
	}
	if err := c.Tolerances().Validate(); err != nil {
		return err
	}
	if err := c.Bumps().Validate(); err != nil {
		return err
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level must be one of trace, debug, info, warn, error; got %q", c.Log.Level)
	}
	if c.Log.File && c.Log.FilePath == "" {
		return fmt.Errorf("log.file_path is required when log.file is enabled")
	}
	return nil
}

func (c *Config) GridConfig() fdm.GridConfig {
	return fdm.GridConfig{
		SpaceSteps:     c.Grid.SpaceSteps,
		TimeSteps:      c.Grid.TimeSteps,
		DomainMultiple: c.Grid.DomainMultiple,
		Theta:          c.Grid.Theta,
		SmoothingSteps: c.Grid.SmoothingSteps,
		ComputeGreeks:  c.Grid.Greeks,
	}
}

func (c *Config) SimConfig() probability.SimConfig {
	return probability.SimConfig{
		Paths:          c.Simulation.Paths,
		Steps:          c.Simulation.Steps,
		Seed:           c.Simulation.Seed,
		Antithetic:     c.Simulation.Antithetic,
		ControlVariate: c.Simulation.ControlVariate,
		Workers:        c.Simulation.Workers,
		BlockSize:      c.Simulation.BlockSize,
	}
}

func (c *Config) Tolerances() calibration.Tolerances {
	return calibration.Tolerances{
		PriceTolerance: c.Calibration.PriceTolerance,
		VolTolerance:   c.Calibration.VolTolerance,
		MaxIterations:  c.Calibration.MaxIterations,
		LowerVol:       c.Calibration.LowerVol,
		UpperVol:       c.Calibration.UpperVol,
	}
}

func (c *Config) Bumps() greeks.Bumps {
	return greeks.Bumps{
		SpotRelative: c.Greeks.SpotRelative,
		Volatility:   c.Greeks.Volatility,
		Rate:         c.Greeks.Rate,
		Time:         c.Greeks.Time,
	}
}

func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Log.Level,
		Console:    c.Log.Console,
		File:       c.Log.File,
		FilePath:   c.Log.FilePath,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
	}
}
