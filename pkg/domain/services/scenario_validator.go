package services

import (
	"fmt"
	"sort"

	"github.com/vsinha/wholelot/pkg/domain/entities"
)

// ScenarioValidator checks the structural integrity of a loaded scenario
// before any demand is allocated against it.
type ScenarioValidator struct{}

// NewScenarioValidator creates a new scenario validator
func NewScenarioValidator() *ScenarioValidator {
	return &ScenarioValidator{}
}

// ScenarioData is the set of entities a scenario is made of
type ScenarioData struct {
	Products  []entities.Product
	Locations []entities.Location
	Records   []entities.InventoryRecord
	Demands   []entities.Demand
}

// ValidationResult contains the results of scenario validation
type ValidationResult struct {
	LocationCycles     [][]string
	DemandCycles       [][]string
	DuplicateRecordIDs []string
	DuplicateDemandIDs []string
	UnknownProducts    []entities.ProductID
	Errors             []string
}

// HasErrors reports whether validation found any problem
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Validate performs every structural check on the scenario
func (v *ScenarioValidator) Validate(data ScenarioData) *ValidationResult {
	result := &ValidationResult{
		LocationCycles:     make([][]string, 0),
		DemandCycles:       make([][]string, 0),
		DuplicateRecordIDs: make([]string, 0),
		DuplicateDemandIDs: make([]string, 0),
		UnknownProducts:    make([]entities.ProductID, 0),
		Errors:             make([]string, 0),
	}

	parents := make(map[string][]string)
	for _, loc := range data.Locations {
		if loc.ParentID != "" {
			parents[loc.ID] = []string{loc.ParentID}
		}
	}
	result.LocationCycles = detectCycles(parents)

	origins := make(map[string][]string)
	for _, demand := range data.Demands {
		if len(demand.OriginIDs) > 0 {
			origins[demand.ID] = demand.OriginIDs
		}
	}
	result.DemandCycles = detectCycles(origins)

	recordIDs := make([]string, len(data.Records))
	for i, record := range data.Records {
		recordIDs[i] = record.ID
	}
	result.DuplicateRecordIDs = duplicates(recordIDs)

	demandIDs := make([]string, len(data.Demands))
	for i, demand := range data.Demands {
		demandIDs[i] = demand.ID
	}
	result.DuplicateDemandIDs = duplicates(demandIDs)

	result.UnknownProducts = v.unknownProducts(data)

	for _, cycle := range result.LocationCycles {
		result.Errors = append(result.Errors, fmt.Sprintf("location cycle detected: %v", cycle))
	}
	for _, cycle := range result.DemandCycles {
		result.Errors = append(result.Errors, fmt.Sprintf("demand origin cycle detected: %v", cycle))
	}
	if len(result.DuplicateRecordIDs) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("duplicate inventory record ids: %v", result.DuplicateRecordIDs))
	}
	if len(result.DuplicateDemandIDs) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("duplicate demand ids: %v", result.DuplicateDemandIDs))
	}
	if len(result.UnknownProducts) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("unknown products referenced: %v", result.UnknownProducts))
	}

	return result
}

func (v *ScenarioValidator) unknownProducts(data ScenarioData) []entities.ProductID {
	known := make(map[entities.ProductID]bool, len(data.Products))
	for _, product := range data.Products {
		known[product.ID] = true
	}

	missing := make(map[entities.ProductID]bool)
	for _, record := range data.Records {
		if !known[record.ProductID] {
			missing[record.ProductID] = true
		}
	}
	for _, demand := range data.Demands {
		if !known[demand.ProductID] {
			missing[demand.ProductID] = true
		}
	}

	result := make([]entities.ProductID, 0, len(missing))
	for id := range missing {
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// detectCycles uses DFS to find cycles in a directed graph. Nodes are visited
// in sorted order so the reported paths are stable.
func detectCycles(edges map[string][]string) [][]string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	cycles := make([][]string, 0)

	nodes := make([]string, 0, len(edges))
	for node := range edges {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	for _, node := range nodes {
		if !visited[node] {
			dfsDetectCycle(node, edges, visited, onStack, nil, &cycles)
		}
	}
	return cycles
}

func dfsDetectCycle(
	current string,
	edges map[string][]string,
	visited map[string]bool,
	onStack map[string]bool,
	path []string,
	cycles *[][]string,
) {
	visited[current] = true
	onStack[current] = true
	path = append(path, current)

	for _, next := range edges[current] {
		if !visited[next] {
			dfsDetectCycle(next, edges, visited, onStack, path, cycles)
			continue
		}
		if !onStack[next] {
			continue
		}
		for i, node := range path {
			if node == next {
				cycle := make([]string, 0, len(path)-i+1)
				cycle = append(cycle, path[i:]...)
				cycle = append(cycle, next)
				*cycles = append(*cycles, cycle)
				break
			}
		}
	}

	onStack[current] = false
}

func duplicates(ids []string) []string {
	seen := make(map[string]int, len(ids))
	result := make([]string, 0)
	for _, id := range ids {
		seen[id]++
		if seen[id] == 2 {
			result = append(result, id)
		}
	}
	return result
}
