package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/vsinha/wholelot/pkg/application/services/allocation"
	"github.com/vsinha/wholelot/pkg/domain/entities"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	Verbose   bool
	Writer    io.Writer
}

// Report is everything an allocation run produced
type Report struct {
	Store       string                      `json:"store"`
	Elapsed     time.Duration               `json:"elapsed_ns"`
	Assignments []allocation.Assignment     `json:"assignments"`
	Propagated  []allocation.Assignment     `json:"propagated,omitempty"`
	Allocations []entities.AllocationRecord `json:"allocations"`
	Demands     []entities.Demand           `json:"demands"`
	Errors      []string                    `json:"errors,omitempty"`
}

// Shortfalls returns the outcomes left short of their need
func (r *Report) Shortfalls() []*allocation.Outcome {
	var short []*allocation.Outcome
	for _, group := range [][]allocation.Assignment{r.Assignments, r.Propagated} {
		for _, a := range group {
			if a.Outcome != nil && a.Outcome.Shortfall.IsPositive() {
				short = append(short, a.Outcome)
			}
		}
	}
	return short
}

// Generate creates output in the specified format
func Generate(report *Report, config Config) error {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	switch config.Format {
	case "text":
		return generateTextOutput(report, config)
	case "json":
		return generateJSONOutput(report, config)
	case "csv":
		return generateCSVOutput(report, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// generateTextOutput creates human-readable text output
func generateTextOutput(report *Report, config Config) error {
	w := config.Writer

	fmt.Fprintf(w, "📊 Allocation Results Summary\n")
	fmt.Fprintf(w, "=============================\n\n")

	fmt.Fprintf(w, "Store: %s\n", report.Store)
	fmt.Fprintf(w, "Demands: %d\n", len(report.Assignments))
	fmt.Fprintf(w, "Allocation Records: %d\n", len(report.Allocations))
	fmt.Fprintf(w, "Shortfalls: %d\n", len(report.Shortfalls()))
	fmt.Fprintf(w, "Elapsed: %v\n\n", report.Elapsed)

	if len(report.Assignments) > 0 {
		fmt.Fprintf(w, "📋 Assignments:\n")
		writeAssignmentTable(w, report.Assignments)
		fmt.Fprintln(w)
	}

	if len(report.Propagated) > 0 {
		fmt.Fprintf(w, "🔗 Propagated After Completion:\n")
		writeAssignmentTable(w, report.Propagated)
		fmt.Fprintln(w)
	}

	if len(report.Allocations) > 0 {
		fmt.Fprintf(w, "📦 Allocation Records:\n")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Demand\tProduct\tLocation\tLot\tQty\tPackage\tOwner")
		fmt.Fprintln(tw, "------\t-------\t--------\t---\t---\t-------\t-----")
		for _, r := range report.Allocations {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.DemandID, r.ProductID, r.Location, lotLabel(r.LotID), r.Quantity,
				r.Provenance.PackageID, r.Provenance.OwnerID)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	if short := report.Shortfalls(); len(short) > 0 {
		fmt.Fprintf(w, "⚠️  Pending Manual Lot Selection:\n")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Demand\tNeed\tReserved\tShortfall")
		fmt.Fprintln(tw, "------\t----\t--------\t---------")
		for _, o := range short {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.DemandID, o.Need, o.NewlyReserved, o.Shortfall)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	if len(report.Errors) > 0 {
		fmt.Fprintf(w, "❌ Errors:\n")
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		fmt.Fprintln(w)
	}

	return nil
}

func writeAssignmentTable(w io.Writer, assignments []allocation.Assignment) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Demand\tRoute\tNeed\tReserved\tShortfall\tState\tTransition\tLots")
	fmt.Fprintln(tw, "------\t-----\t----\t--------\t---------\t-----\t----------\t----")
	for _, a := range assignments {
		o := a.Outcome
		if o == nil {
			status := "-"
			if a.Err != nil {
				status = "error"
			}
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t%s\t-\t-\n", a.DemandID, a.Route, status)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.DemandID, a.Route, o.Need, o.NewlyReserved, o.Shortfall,
			o.State, o.Transition, lotList(o.Selection))
	}
	tw.Flush()
}

// generateJSONOutput creates JSON output
func generateJSONOutput(report *Report, config Config) error {
	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if config.OutputDir == "" {
		fmt.Fprintln(config.Writer, string(jsonData))
		return nil
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := filepath.Join(config.OutputDir, "allocation_results.json")
	if err := os.WriteFile(filename, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}

	if config.Verbose {
		fmt.Fprintf(config.Writer, "💾 JSON results saved to: %s\n", filename)
	}
	return nil
}

// generateCSVOutput creates CSV output
func generateCSVOutput(report *Report, config Config) error {
	if config.OutputDir == "" {
		return fmt.Errorf("output directory required for CSV format")
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	assignmentsFile := filepath.Join(config.OutputDir, "assignments.csv")
	rows := append(append([]allocation.Assignment{}, report.Assignments...), report.Propagated...)
	if err := writeAssignmentsCSV(rows, assignmentsFile); err != nil {
		return fmt.Errorf("failed to write assignments CSV: %w", err)
	}

	allocFile := filepath.Join(config.OutputDir, "allocations.csv")
	if err := writeAllocationsCSV(report.Allocations, allocFile); err != nil {
		return fmt.Errorf("failed to write allocations CSV: %w", err)
	}

	if config.Verbose {
		fmt.Fprintf(config.Writer, "💾 CSV results saved to:\n")
		fmt.Fprintf(config.Writer, "  Assignments: %s\n", assignmentsFile)
		fmt.Fprintf(config.Writer, "  Allocations: %s\n", allocFile)
	}
	return nil
}

func writeAssignmentsCSV(assignments []allocation.Assignment, filename string) error {
	rows := [][]string{{
		"demand_id", "route", "need", "reserved", "shortfall", "state", "transition", "lots", "error",
	}}
	for _, a := range assignments {
		row := []string{a.DemandID, string(a.Route), "", "", "", "", "", "", ""}
		if o := a.Outcome; o != nil {
			row[2] = o.Need.String()
			row[3] = o.NewlyReserved.String()
			row[4] = o.Shortfall.String()
			row[5] = o.State.String()
			row[6] = o.Transition.String()
			row[7] = strings.Join(lotIDs(o.Selection), "|")
		}
		if a.Err != nil {
			row[8] = a.Err.Error()
		}
		rows = append(rows, row)
	}
	return writeCSV(filename, rows)
}

func writeAllocationsCSV(records []entities.AllocationRecord, filename string) error {
	rows := [][]string{{
		"allocation_id", "demand_id", "product_id", "location", "lot", "quantity", "package", "owner", "created_at",
	}}
	for _, r := range records {
		rows = append(rows, []string{
			r.ID, r.DemandID, string(r.ProductID), r.Location, string(r.LotID), r.Quantity.String(),
			r.Provenance.PackageID, r.Provenance.OwnerID, r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return writeCSV(filename, rows)
}

func writeCSV(filename string, rows [][]string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return file.Close()
}

func lotIDs(lots []entities.Lot) []string {
	ids := make([]string, len(lots))
	for i, lot := range lots {
		ids[i] = lotLabel(lot.ID)
	}
	return ids
}

func lotList(lots []entities.Lot) string {
	if len(lots) == 0 {
		return "-"
	}
	return strings.Join(lotIDs(lots), ",")
}

func lotLabel(id entities.LotID) string {
	if id == entities.NoLot {
		return "(none)"
	}
	return string(id)
}
