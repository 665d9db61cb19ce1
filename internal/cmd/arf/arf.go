// Package arf implements the arf command: build, inspect and plot effective
// area tables stored as ARF files.
package arf

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bsipocz/gammapy/internal/config"
	"github.com/bsipocz/gammapy/internal/fits"
	"github.com/bsipocz/gammapy/internal/irf"
	"github.com/bsipocz/gammapy/internal/units"
)

// Commands lists the subcommands in usage order.
var Commands = []string{"parametrize", "area", "info", "lookup", "plot"}

// ErrUsage is returned for a missing or unknown subcommand or missing arguments.
var ErrUsage = errors.New("usage error")

// Config holds the parsed command line.
type Config struct {
	Command string
	File    string // Input ARF for info, lookup and plot

	Instrument string
	EMin       string
	EMax       string
	Bins       int
	ThreshLo   string
	ThreshHi   string
	Telescope  string
	Filter     string

	Energies  []string
	Out       string
	Overwrite bool
	Width     int
	Height    int
}

// ParseConfig parses args (without the program name). Flag defaults come
// from defaults, which is normally the environment configuration.
func ParseConfig(args []string, defaults *config.Config, errOut io.Writer) (Config, error) {
	if len(args) == 0 {
		return Config{}, fmt.Errorf("%w: missing command (one of %s)", ErrUsage, strings.Join(Commands, ", "))
	}
	cfg := Config{Command: args[0]}

	fs := pflag.NewFlagSet("arf "+cfg.Command, pflag.ContinueOnError)
	fs.SetOutput(errOut)
	tev := func(v float64) string { return fmt.Sprintf("%g TeV", v) }

	switch cfg.Command {
	case "parametrize":
		fs.StringVar(&cfg.Instrument, "instrument", string(irf.HESS), "instrument parametrization (HESS, HESS2, CTA)")
		fs.StringVar(&cfg.EMin, "emin", tev(defaults.ARF.EnergyMin), "lowest bin edge")
		fs.StringVar(&cfg.EMax, "emax", tev(defaults.ARF.EnergyMax), "highest bin edge")
		fs.IntVar(&cfg.Bins, "bins", defaults.ARF.Bins, "number of log-spaced bins")
		fs.StringVar(&cfg.ThreshLo, "thresh-lo", tev(defaults.ARF.ThresholdLo), "low safe energy threshold")
		fs.StringVar(&cfg.ThreshHi, "thresh-hi", tev(defaults.ARF.ThresholdHi), "high safe energy threshold")
		fs.StringVar(&cfg.Telescope, "telescope", defaults.ARF.Telescope, "TELESCOP header value")
		fs.StringVar(&cfg.Filter, "filter", defaults.ARF.Filter, "FILTER header value")
		fs.StringVarP(&cfg.Out, "out", "o", "", "output ARF file (required)")
		fs.BoolVar(&cfg.Overwrite, "overwrite", false, "replace an existing output file")
	case "area":
		fs.StringVar(&cfg.Instrument, "instrument", string(irf.HESS), "instrument parametrization (HESS, HESS2, CTA)")
		fs.StringArrayVarP(&cfg.Energies, "energy", "e", nil, "energy to evaluate, e.g. \"1 TeV\" (repeatable)")
	case "info":
		fs.StringArrayVarP(&cfg.Energies, "energy", "e", nil, "lookup energy (repeatable, default 1 TeV and 10 TeV)")
	case "lookup":
		fs.StringArrayVarP(&cfg.Energies, "energy", "e", nil, "energy to look up (repeatable)")
	case "plot":
		fs.StringVarP(&cfg.Out, "out", "o", "", "output PNG file (required)")
		fs.IntVar(&cfg.Width, "width", defaults.Plot.Width, "image width in pixels")
		fs.IntVar(&cfg.Height, "height", defaults.Plot.Height, "image height in pixels")
	default:
		return Config{}, fmt.Errorf("%w: unknown command %q (one of %s)", ErrUsage, cfg.Command, strings.Join(Commands, ", "))
	}

	if err := fs.Parse(args[1:]); err != nil {
		return Config{}, err
	}

	switch cfg.Command {
	case "info", "lookup", "plot":
		if fs.NArg() != 1 {
			return Config{}, fmt.Errorf("%w: %s takes exactly one ARF file", ErrUsage, cfg.Command)
		}
		cfg.File = fs.Arg(0)
	default:
		if fs.NArg() != 0 {
			return Config{}, fmt.Errorf("%w: %s takes no arguments", ErrUsage, cfg.Command)
		}
	}
	if (cfg.Command == "parametrize" || cfg.Command == "plot") && cfg.Out == "" {
		return Config{}, fmt.Errorf("%w: --out is required", ErrUsage)
	}
	if (cfg.Command == "area" || cfg.Command == "lookup") && len(cfg.Energies) == 0 {
		return Config{}, fmt.Errorf("%w: at least one --energy is required", ErrUsage)
	}
	return cfg, nil
}

// Run executes the command described by cfg.
func Run(cfg Config, out io.Writer, logger *slog.Logger) error {
	switch cfg.Command {
	case "parametrize":
		return runParametrize(cfg, out, logger)
	case "area":
		return runArea(cfg, out)
	case "info":
		return runInfo(cfg, out)
	case "lookup":
		return runLookup(cfg, out)
	case "plot":
		return runPlot(cfg, logger)
	}
	return fmt.Errorf("%w: unknown command %q", ErrUsage, cfg.Command)
}

func runParametrize(cfg Config, out io.Writer, logger *slog.Logger) error {
	instrument, err := irf.ParseInstrument(cfg.Instrument)
	if err != nil {
		return err
	}
	energies, err := units.ParseEnergies([]string{cfg.EMin, cfg.EMax, cfg.ThreshLo, cfg.ThreshHi})
	if err != nil {
		return err
	}

	edges, err := irf.LogEnergyEdges(energies[0], energies[1], cfg.Bins)
	if err != nil {
		return err
	}
	table, err := irf.NewTableFromParametrization(instrument, edges,
		irf.WithThresholds(energies[2], energies[3]), irf.Strict())
	if err != nil {
		return err
	}

	meta := irf.ARFMeta{Telescope: cfg.Telescope, Instrument: string(instrument), Filter: cfg.Filter}
	if err := table.WriteARF(cfg.Out, meta, fits.Overwrite(cfg.Overwrite)); err != nil {
		return err
	}
	logger.Info("wrote table", "path", cfg.Out, "instrument", instrument, "bins", table.Len())
	fmt.Fprintf(out, "%s: %d bins from %s to %s\n", cfg.Out, table.Len(), energies[0], energies[1])
	return nil
}

func runArea(cfg Config, out io.Writer) error {
	instrument, err := irf.ParseInstrument(cfg.Instrument)
	if err != nil {
		return err
	}
	energies, err := units.ParseEnergies(cfg.Energies)
	if err != nil {
		return err
	}
	for _, e := range energies {
		area, err := irf.AbramowskiEffectiveArea(e, instrument)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s\n", e, area.To(units.SquareMeter).Fmt("%.6g"))
	}
	return nil
}

func runInfo(cfg Config, out io.Writer) error {
	energies, err := units.ParseEnergies(cfg.Energies)
	if err != nil {
		return err
	}
	table, err := irf.Read(cfg.File)
	if err != nil {
		return err
	}
	info, err := table.Info(energies...)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, info)
	return err
}

func runLookup(cfg Config, out io.Writer) error {
	energies, err := units.ParseEnergies(cfg.Energies)
	if err != nil {
		return err
	}
	table, err := irf.Read(cfg.File)
	if err != nil {
		return err
	}
	for _, e := range energies {
		area, err := table.EffectiveAreaAtEnergy(e)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s\n", e, area.Fmt("%.6g"))
	}
	return nil
}

func runPlot(cfg Config, logger *slog.Logger) error {
	table, err := irf.Read(cfg.File)
	if err != nil {
		return err
	}
	return table.SavePlot(cfg.Out, irf.PlotOptions{Width: cfg.Width, Height: cfg.Height, Logger: logger})
}
