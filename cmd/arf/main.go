// Command arf builds, inspects and plots effective area tables.
//
//	arf parametrize --instrument HESS --bins 50 -o hess.fits
//	arf area --instrument CTA -e "1 TeV" -e "10 TeV"
//	arf info hess.fits
//	arf lookup hess.fits -e "3 TeV"
//	arf plot hess.fits -o hess.png
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/bsipocz/gammapy/internal/cmd/arf"
	"github.com/bsipocz/gammapy/internal/config"
	"github.com/bsipocz/gammapy/internal/logging"
)

func main() {
	// A missing .env is fine; real environment variables win.
	_ = godotenv.Load()

	defaults, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "arf:", err)
		os.Exit(1)
	}
	logger := logging.New(defaults.Logging.Level, defaults.Logging.Format, os.Stderr)

	cfg, err := arf.ParseConfig(os.Args[1:], defaults, os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "arf:", err)
		os.Exit(2)
	}

	if err := arf.Run(cfg, os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, "arf:", err)
		os.Exit(1)
	}
}
