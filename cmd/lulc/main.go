package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/banshee-data/landcover.report/internal/config"
	"github.com/banshee-data/landcover.report/internal/monitoring"
	"github.com/banshee-data/landcover.report/internal/version"
)

// Environment overrides, usually set from a .env file.
const (
	envConfig = "LULC_CONFIG"
	envDB     = "LULC_DB"
)

var (
	configPath = flag.String("config", "", "Workflow config file (.json, .yaml or .yml); defaults to $"+envConfig)
	trace      = flag.Bool("trace", false, "Enable trace logging")
)

func main() {
	// A missing .env is fine; an unreadable one is not.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()
	monitoring.SetTrace(*trace)

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Arg(0), flag.Args()[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "lulc: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string, out io.Writer) error {
	switch command {
	case "train":
		return handleTrain(ctx, args, out)
	case "stats":
		return handleStats(ctx, args, out)
	case "change":
		return handleChange(ctx, args, out)
	case "trend":
		return handleTrend(ctx, args, out)
	case "serve":
		return handleServe(ctx, args)
	case "runs":
		return handleRuns(ctx, args, out)
	case "migrate":
		return handleMigrate(args, out)
	case "version":
		fmt.Fprintln(out, version.String())
		return nil
	case "help":
		printUsage(out)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", command)
	}
}

// resolveConfig loads the file named by -config, falling back to
// $LULC_CONFIG and then to built-in defaults. $LULC_DB overrides db_path.
func resolveConfig() (*config.WorkflowConfig, error) {
	path := *configPath
	if path == "" {
		path = os.Getenv(envConfig)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	if p := os.Getenv(envDB); p != "" {
		cfg.DBPath = &p
	}
	return cfg, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `lulc - multi-decade land cover classification

Usage: lulc [-config file] [-trace] <command> [options]

Commands:
  train      Train the classifier and classify every configured year
  stats      Print the class areas of one year
  change     Compare two years (-from, -to)
  trend      Print the area table over every year; optionally chart it
  serve      Serve the JSON query API
  runs       List recorded training runs
  migrate    Manage the run database schema
  version    Show version information
  help       Show this help message

Environment:
  LULC_CONFIG   Config file used when -config is not given
  LULC_DB       Overrides db_path from the config

A .env file in the working directory is loaded before flags are parsed.`)
}
