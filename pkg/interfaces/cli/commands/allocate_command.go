package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vsinha/wholelot/pkg/application/services/allocation"
	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/services"
	"github.com/vsinha/wholelot/pkg/infrastructure/events"
	"github.com/vsinha/wholelot/pkg/infrastructure/logging"
	"github.com/vsinha/wholelot/pkg/infrastructure/metrics"
	"github.com/vsinha/wholelot/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/wholelot/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/wholelot/pkg/infrastructure/tracing"
	"github.com/vsinha/wholelot/pkg/interfaces/cli/output"
)

// AllocateCommand loads a scenario and reserves inventory for its demands
type AllocateCommand struct {
	config Config
	stdout io.Writer
	stderr io.Writer
}

// NewAllocateCommand creates a new allocate command with the given configuration
func NewAllocateCommand(config Config) *AllocateCommand {
	return &AllocateCommand{
		config: config,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// WithOutput redirects the report and the logs
func (c *AllocateCommand) WithOutput(stdout, stderr io.Writer) *AllocateCommand {
	c.stdout = stdout
	c.stderr = stderr
	return c
}

// Execute runs the allocate command
func (c *AllocateCommand) Execute(ctx context.Context) error {
	if c.config.Help {
		c.showHelp()
		return nil
	}

	if err := c.config.Validate(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	logger := logging.NewWithOptions(c.stderr, c.config.LogFormat, logging.ParseLevel(c.config.LogLevel))

	if c.config.OTLPEndpoint != "" {
		tp, err := tracing.Init(ctx, "wholelot", c.config.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Warn("failed to flush traces", slog.Any("err", err))
			}
		}()
	}

	rounding, err := entities.ParseQuantity(c.config.Rounding)
	if err != nil || !rounding.IsPositive() {
		return fmt.Errorf("invalid rounding %q", c.config.Rounding)
	}
	fallback, err := entities.ParseRemovalStrategy(c.config.DefaultStrategy)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if c.config.Verbose {
		c.printHeader()
	}

	scenario, err := csv.NewLoader(rounding).LoadScenario(c.config.ScenarioDir)
	if err != nil {
		return fmt.Errorf("error loading scenario: %w", err)
	}

	if c.config.Verbose {
		fmt.Fprintf(c.stdout, "✅ Scenario loaded:\n")
		fmt.Fprintf(c.stdout, "  Products: %d\n", len(scenario.Products))
		fmt.Fprintf(c.stdout, "  Locations: %d\n", len(scenario.Locations))
		fmt.Fprintf(c.stdout, "  Inventory records: %d\n", len(scenario.Inventory))
		fmt.Fprintf(c.stdout, "  Demands: %d\n\n", len(scenario.Demands))
	}

	validation := services.NewScenarioValidator().Validate(scenarioData(scenario))
	if validation.HasErrors() {
		return fmt.Errorf("scenario validation failed: %s", strings.Join(validation.Errors, "; "))
	}

	catalog := memory.NewCatalogRepository()
	if err := catalog.LoadProducts(scenario.Products); err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}
	if err := catalog.LoadCategories(scenario.Categories); err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	if err := catalog.LoadLocations(scenario.Locations); err != nil {
		return fmt.Errorf("failed to load locations: %w", err)
	}

	demands := memory.NewDemandRepository()
	if err := demands.LoadDemands(scenario.Demands); err != nil {
		return fmt.Errorf("failed to load demands: %w", err)
	}

	backend, err := openBackend(ctx, c.config, logger, scenario.Inventory)
	if err != nil {
		return err
	}
	defer backend.Close()

	eventStore := events.NewInMemoryEventStore(logger)
	if len(c.config.KafkaBrokers) > 0 {
		forwarder := events.NewKafkaForwarder(events.NewKafkaWriter(c.config.KafkaBrokers, c.config.EventsTopic), logger)
		if err := eventStore.Subscribe(events.AllocationEventTypes, forwarder); err != nil {
			return fmt.Errorf("failed to subscribe event forwarder: %w", err)
		}
		defer func() {
			eventStore.Wait()
			if err := forwarder.Close(); err != nil {
				logger.Warn("failed to close event forwarder", slog.Any("err", err))
			}
		}()
	}

	deps := allocation.Dependencies{
		Inventory:       backend.Inventory,
		Allocations:     backend.Allocations,
		Demands:         demands,
		Catalog:         catalog,
		Events:          eventStore,
		Metrics:         metrics.New(prometheus.NewRegistry()),
		Logger:          logger,
		DefaultRounding: entities.NewRounding(rounding),
	}

	assigner, err := allocation.NewAssigner(deps, services.NewHierarchicalResolver(catalog, fallback), c.config.Concurrency)
	if err != nil {
		return fmt.Errorf("failed to create assigner: %w", err)
	}

	demandIDs := make([]string, len(scenario.Demands))
	for i, d := range scenario.Demands {
		demandIDs[i] = d.ID
	}

	if c.config.Verbose {
		fmt.Fprintf(c.stdout, "🔄 Assigning %d demands on the %s store...\n", len(demandIDs), c.config.Store)
	}

	startTime := time.Now()
	batch, err := assigner.AssignDemands(ctx, demandIDs, allocation.AssignOptions{SkipWholeLot: c.config.SkipWholeLot})
	if err != nil {
		return fmt.Errorf("error assigning demands: %w", err)
	}

	var propagated []*allocation.BatchResult
	for _, id := range c.config.CompletedDemands {
		result, err := assigner.MarkDone(ctx, id)
		if err != nil {
			return fmt.Errorf("error completing demand %s: %w", id, err)
		}
		propagated = append(propagated, result)
	}
	elapsed := time.Since(startTime)

	if err := batch.Errors(); err != nil {
		logger.Warn("some demands failed to allocate", slog.Any("err", err))
	}

	report, err := buildReport(ctx, c.config.Store, elapsed, batch, propagated, deps)
	if err != nil {
		return err
	}

	outputConfig := output.Config{
		Format:    c.config.Format,
		OutputDir: c.config.OutputDir,
		Verbose:   c.config.Verbose,
		Writer:    c.stdout,
	}
	if err := output.Generate(report, outputConfig); err != nil {
		return fmt.Errorf("error generating output: %w", err)
	}

	if c.config.Verbose {
		fmt.Fprintln(c.stdout, "🏁 Allocation complete!")
	}
	return nil
}

func scenarioData(s *csv.Scenario) services.ScenarioData {
	data := services.ScenarioData{
		Products:  make([]entities.Product, len(s.Products)),
		Locations: make([]entities.Location, len(s.Locations)),
		Records:   make([]entities.InventoryRecord, len(s.Inventory)),
		Demands:   make([]entities.Demand, len(s.Demands)),
	}
	for i, p := range s.Products {
		data.Products[i] = *p
	}
	for i, l := range s.Locations {
		data.Locations[i] = *l
	}
	for i, r := range s.Inventory {
		data.Records[i] = *r
	}
	for i, d := range s.Demands {
		data.Demands[i] = *d
	}
	return data
}

func buildReport(
	ctx context.Context,
	store string,
	elapsed time.Duration,
	batch *allocation.BatchResult,
	propagated []*allocation.BatchResult,
	deps allocation.Dependencies,
) (*output.Report, error) {
	report := &output.Report{
		Store:       store,
		Elapsed:     elapsed,
		Assignments: batch.Assignments,
	}
	for _, result := range propagated {
		report.Propagated = append(report.Propagated, result.Assignments...)
	}
	for _, group := range [][]allocation.Assignment{report.Assignments, report.Propagated} {
		for _, a := range group {
			if a.Err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("demand %s: %v", a.DemandID, a.Err))
			}
		}
	}

	demands, err := deps.Demands.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list demands: %w", err)
	}
	for _, d := range demands {
		records, err := deps.Allocations.ListByDemand(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list allocations of %s: %w", d.ID, err)
		}
		for _, r := range records {
			report.Allocations = append(report.Allocations, *r)
		}
		report.Demands = append(report.Demands, *d)
	}
	return report, nil
}

// printHeader prints the command header information
func (c *AllocateCommand) printHeader() {
	fmt.Fprintf(c.stdout, "🚀 Whole-lot allocation CLI\n")
	fmt.Fprintf(c.stdout, "Scenario: %s\n", c.config.ScenarioDir)
	fmt.Fprintf(c.stdout, "Store: %s\n", c.config.Store)
	fmt.Fprintf(c.stdout, "Output format: %s\n", c.config.Format)
	if c.config.OutputDir != "" {
		fmt.Fprintf(c.stdout, "Output directory: %s\n", c.config.OutputDir)
	}
	fmt.Fprintln(c.stdout)
}

// showHelp displays the help message
func (c *AllocateCommand) showHelp() {
	fmt.Fprintf(c.stdout, `wholelot - reserve whole lots of inventory for demands

USAGE:
    wholelot -scenario <directory> [options]

OPTIONS:
    -scenario <dir>      Path to scenario directory containing CSV files
    -format <fmt>        Output format: text, json, csv (default: text)
    -output <dir>        Output directory for results (required for csv)
    -store <name>        Inventory store: memory, postgres, redis (default: memory)
    -reset               Truncate the postgres tables before seeding
    -rounding <qty>      Rounding for products whose unit has none (default: 0.01)
    -default-strategy    Removal strategy when nothing else applies (default: fifo)
    -concurrency <n>     Demands allocated at once (default: 4)
    -skip-whole-lot      Send every demand through the standard allocator
    -completed <ids>     Comma-separated demands to mark done after assignment
    -kafka-brokers <a>   Comma-separated Kafka brokers to forward events to
    -events-topic <t>    Kafka topic for forwarded events (default: wholelot.events)
    -otlp-endpoint <h>   OTLP/HTTP endpoint to export traces to
    -log-level <level>   debug, info, warn, error (default: info)
    -log-format <fmt>    json or text (default: json)
    -verbose             Enable verbose output
    -help                Show this help message

ENVIRONMENT:
    PG_URL               PostgreSQL connection string for -store postgres
    REDIS_URL            Redis URL for -store redis
    KAFKA_ADDR           Default for -kafka-brokers
    EVENTS_TOPIC         Default for -events-topic
    OTEL_EXPORTER_OTLP_ENDPOINT
                         Default for -otlp-endpoint

SCENARIO DIRECTORY STRUCTURE:
    scenario_name/
    ├── products.csv     # Products and their tracking
    ├── inventory.csv    # Stock records per lot
    ├── demands.csv      # Demands to reserve for
    ├── units.csv        # Units of measure (optional)
    ├── categories.csv   # Product categories (optional)
    └── locations.csv    # Location tree (optional)

CSV FILE FORMATS:

products.csv:
    product_id,description,tracking,category,unit
    SLAB,Granite slab,lot,stone,m2

inventory.csv:
    record_id,product_id,location,lot,quantity,reserved,in_date,package,owner
    R1,SLAB,WH/Stock,LOT-A,10,0,2024-01-01,PKG-1,

demands.csv:
    demand_id,product_id,location,quantity,unit,state,origins,destinations
    D1,SLAB,WH/Stock,15,,,,

EXAMPLES:
    # Allocate a scenario in memory
    wholelot -scenario testdata/granite -verbose

    # Allocate against PostgreSQL and write JSON
    PG_URL=postgres://localhost/wholelot wholelot -scenario testdata/granite -store postgres -format json
`)
}
