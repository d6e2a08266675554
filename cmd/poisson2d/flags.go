package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/banshee-data/poisson2d/internal/config"
)

// solverFlags are the configuration overrides shared by the solving
// commands. Only flags given on the command line replace file values.
type solverFlags struct {
	configPath string
	values     map[string]*string
}

var solverFlagUsage = []struct{ name, usage string }{
	{"nx", "interior points along x"},
	{"ny", "interior points along y"},
	{"boundary", "Dirichlet boundary value"},
	{"rhs", "constant right-hand side f"},
	{"initial", "initial interior guess"},
	{"ranks", "number of ranks (process grid chosen automatically)"},
	{"dims", "process grid as PxQ"},
	{"mode", "ghost exchange mode: fence or pscw"},
	{"tolerance", "stop when the global difference falls below this"},
	{"max-iterations", "iteration cap"},
	{"exchange-timeout", "fail a stalled exchange after this long (0 waits forever)"},
	{"log-every", "log progress every N iterations (0 disables)"},
}

func addSolverFlags(fs *flag.FlagSet) *solverFlags {
	sf := &solverFlags{values: make(map[string]*string)}
	fs.StringVar(&sf.configPath, "config", "", "JSON config file (default "+config.DefaultConfigPath+" when present)")
	for _, f := range solverFlagUsage {
		sf.values[f.name] = fs.String(f.name, "", f.usage)
	}
	return sf
}

// load reads the config file and applies the flags that were set.
func (sf *solverFlags) load(fs *flag.FlagSet) (*config.SolverConfig, error) {
	var cfg *config.SolverConfig
	switch {
	case sf.configPath != "":
		var err error
		if cfg, err = config.LoadSolverConfig(sf.configPath); err != nil {
			return nil, err
		}
	default:
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			if cfg, err = config.LoadSolverConfig(config.DefaultConfigPath); err != nil {
				return nil, err
			}
		} else {
			cfg = config.EmptySolverConfig()
		}
	}

	var applyErr error
	fs.Visit(func(f *flag.Flag) {
		v, ok := sf.values[f.Name]
		if !ok || applyErr != nil {
			return
		}
		if err := applyOverride(cfg, f.Name, *v); err != nil {
			applyErr = fmt.Errorf("-%s: %w", f.Name, err)
		}
	})
	if applyErr != nil {
		return nil, applyErr
	}

	// Setting one of dims or ranks on the command line drops the other
	// from the file so they cannot disagree.
	if isSet(fs, "dims") && !isSet(fs, "ranks") {
		cfg.Ranks = nil
	}
	if isSet(fs, "ranks") && !isSet(fs, "dims") {
		cfg.Dims = nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func applyOverride(cfg *config.SolverConfig, name, v string) error {
	setInt := func(dst **int) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = &n
		return nil
	}
	setFloat := func(dst **float64) error {
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst = &x
		return nil
	}
	setString := func(dst **string) error {
		s := v
		*dst = &s
		return nil
	}

	switch name {
	case "nx":
		return setInt(&cfg.NX)
	case "ny":
		return setInt(&cfg.NY)
	case "boundary":
		return setFloat(&cfg.BoundaryValue)
	case "rhs":
		return setFloat(&cfg.RHSValue)
	case "initial":
		return setFloat(&cfg.InitialValue)
	case "ranks":
		return setInt(&cfg.Ranks)
	case "dims":
		return setString(&cfg.Dims)
	case "mode":
		return setString(&cfg.Mode)
	case "tolerance":
		return setFloat(&cfg.Tolerance)
	case "max-iterations":
		return setInt(&cfg.MaxIterations)
	case "exchange-timeout":
		return setString(&cfg.ExchangeTimeout)
	case "log-every":
		return setInt(&cfg.LogEvery)
	}
	return fmt.Errorf("unknown flag %q", name)
}
