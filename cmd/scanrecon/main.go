package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"scanrecon/internal/models"
	"scanrecon/pkg/config"
	"scanrecon/pkg/logging"
)

const usage = `scanrecon reconstructs scanner volumes from acquisition records.

Usage:
  scanrecon reconstruct -scan DIR [-axes i,j,k] [-channel energy] [-camera ID] [-region START:SIZE] [-slices-dir DIR]
  scanrecon monitor -metadata FILE -records FILE [-frames DIR] -- COMMAND [ARGS...]
  scanrecon merge-async -metadata FILE -dir DIR
  scanrecon catalog -root DIR [-db FILE] [-csv FILE] [-curate SYSTEM/SCAN]
  scanrecon init-config FILE

Every command accepts -config FILE.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "reconstruct":
		err = runReconstruct(args)
	case "monitor":
		err = runMonitor(args)
	case "merge-async":
		err = runMergeAsync(args)
	case "catalog":
		err = runCatalog(args)
	case "init-config":
		if len(args) != 1 {
			err = errors.New("init-config needs the file to create")
			break
		}
		err = config.CreateDefaultConfigFile(args[0])
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	logging.Shutdown()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var timeout *models.TimeoutError
		if errors.As(err, &timeout) {
			fmt.Fprintln(os.Stderr, timeout.Guidance())
		}
		os.Exit(1)
	}
}

// newFlagSet returns a flag set with the shared -config flag.
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML configuration file")
	return fs, cfgPath
}

// loadConfig reads the configuration and sets up logging from it.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	logging.SetLevel(level)
	logging.Setup(cfg.LogFile())
	return cfg, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
