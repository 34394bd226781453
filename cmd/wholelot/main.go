package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vsinha/wholelot/pkg/application/services/allocation"
	"github.com/vsinha/wholelot/pkg/interfaces/cli/commands"
)

func main() {
	// Command line flags
	var (
		scenarioDir = flag.String(
			"scenario",
			"",
			"Path to scenario directory containing CSV files",
		)
		outputDir       = flag.String("output", "", "Output directory for results (optional)")
		format          = flag.String("format", "text", "Output format: text, json, csv")
		store           = flag.String("store", commands.StoreMemory, "Inventory store: memory, postgres, redis")
		reset           = flag.Bool("reset", false, "Truncate the postgres tables before seeding")
		rounding        = flag.String("rounding", "0.01", "Rounding for products whose unit has none")
		defaultStrategy = flag.String("default-strategy", "fifo", "Removal strategy when nothing else applies")
		concurrency     = flag.Int("concurrency", allocation.DefaultConcurrency, "Demands allocated at once")
		skipWholeLot    = flag.Bool("skip-whole-lot", false, "Send every demand through the standard allocator")
		completed       = flag.String("completed", "", "Comma-separated demands to mark done after assignment")
		kafkaBrokers    = flag.String("kafka-brokers", "", "Comma-separated Kafka brokers to forward events to")
		eventsTopic     = flag.String("events-topic", "", "Kafka topic for forwarded events")
		otlpEndpoint    = flag.String("otlp-endpoint", "", "OTLP/HTTP endpoint to export traces to")
		logLevel        = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		logFormat       = flag.String("log-format", "json", "Log format: json, text")
		verbose         = flag.Bool("verbose", false, "Enable verbose output")
		help            = flag.Bool("help", false, "Show help message")
	)

	flag.Parse()

	// Create command configuration
	config := commands.Config{
		ScenarioDir:      *scenarioDir,
		OutputDir:        *outputDir,
		Format:           *format,
		Store:            *store,
		Reset:            *reset,
		Rounding:         *rounding,
		DefaultStrategy:  *defaultStrategy,
		Concurrency:      *concurrency,
		SkipWholeLot:     *skipWholeLot,
		CompletedDemands: commands.SplitIDs(*completed),
		LogLevel:         *logLevel,
		LogFormat:        *logFormat,
		Verbose:          *verbose,
		Help:             *help,
		KafkaBrokers:     commands.SplitIDs(*kafkaBrokers),
		EventsTopic:      *eventsTopic,
		OTLPEndpoint:     *otlpEndpoint,
	}
	config.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create and execute command
	cmd := commands.NewAllocateCommand(config)
	if err := cmd.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
