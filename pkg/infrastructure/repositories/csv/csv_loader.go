package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/wholelot/pkg/domain/entities"
)

// Scenario file names inside a scenario directory
const (
	UnitsFile      = "units.csv"
	ProductsFile   = "products.csv"
	CategoriesFile = "categories.csv"
	LocationsFile  = "locations.csv"
	InventoryFile  = "inventory.csv"
	DemandsFile    = "demands.csv"
)

const dateLayout = "2006-01-02"

// listSeparator splits multi-valued cells such as origin demand ids
const listSeparator = "|"

var (
	unitsHeader      = []string{"name", "rounding", "factor"}
	productsHeader   = []string{"product_id", "description", "tracking", "category", "unit"}
	categoriesHeader = []string{"category_id", "removal_strategy"}
	locationsHeader  = []string{"location_id", "parent_id", "removal_strategy"}
	inventoryHeader  = []string{"record_id", "product_id", "location", "lot", "quantity", "reserved", "in_date", "package", "owner"}
	demandsHeader    = []string{"demand_id", "product_id", "location", "quantity", "unit", "state", "origins", "destinations"}
)

// Scenario is everything a scenario directory describes
type Scenario struct {
	Units      map[string]entities.UnitOfMeasure
	Products   []*entities.Product
	Categories []*entities.Category
	Locations  []*entities.Location
	Inventory  []*entities.InventoryRecord
	Demands    []*entities.Demand
}

// Loader handles loading allocation scenarios from CSV files
type Loader struct {
	defaultRounding decimal.Decimal
}

// NewLoader creates a new CSV loader. Units not declared in units.csv get
// defaultRounding and factor 1.
func NewLoader(defaultRounding decimal.Decimal) *Loader {
	return &Loader{defaultRounding: defaultRounding}
}

// LoadScenario loads a scenario directory. products.csv, inventory.csv and
// demands.csv are required; the other files are optional.
func (l *Loader) LoadScenario(dir string) (*Scenario, error) {
	scenario := &Scenario{}

	units, err := l.LoadUnits(filepath.Join(dir, UnitsFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if units == nil {
		units = map[string]entities.UnitOfMeasure{}
	}
	scenario.Units = units

	if scenario.Products, err = l.LoadProducts(filepath.Join(dir, ProductsFile), units); err != nil {
		return nil, err
	}
	if scenario.Categories, err = l.LoadCategories(filepath.Join(dir, CategoriesFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if scenario.Locations, err = l.LoadLocations(filepath.Join(dir, LocationsFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if scenario.Inventory, err = l.LoadInventory(filepath.Join(dir, InventoryFile)); err != nil {
		return nil, err
	}
	if scenario.Demands, err = l.LoadDemands(filepath.Join(dir, DemandsFile), units); err != nil {
		return nil, err
	}

	return scenario, nil
}

// LoadUnits loads units of measure keyed by name
func (l *Loader) LoadUnits(filename string) (map[string]entities.UnitOfMeasure, error) {
	rows, err := readTable(filename, "units", unitsHeader)
	if err != nil {
		return nil, err
	}

	units := make(map[string]entities.UnitOfMeasure, len(rows))
	for i, record := range rows {
		rounding, err := entities.ParseQuantity(record[1])
		if err != nil {
			return nil, fmt.Errorf("units CSV row %d: invalid rounding: %s", i+2, record[1])
		}
		factor, err := entities.ParseQuantity(record[2])
		if err != nil {
			return nil, fmt.Errorf("units CSV row %d: invalid factor: %s", i+2, record[2])
		}
		uom, err := entities.NewUnitOfMeasure(strings.TrimSpace(record[0]), rounding, factor)
		if err != nil {
			return nil, fmt.Errorf("units CSV row %d: %w", i+2, err)
		}
		units[uom.Name] = uom
	}
	return units, nil
}

// LoadProducts loads products from a CSV file
func (l *Loader) LoadProducts(filename string, units map[string]entities.UnitOfMeasure) ([]*entities.Product, error) {
	rows, err := readTable(filename, "products", productsHeader)
	if err != nil {
		return nil, err
	}

	products := make([]*entities.Product, 0, len(rows))
	for i, record := range rows {
		tracking, err := entities.ParseTrackingMode(record[2])
		if err != nil {
			return nil, fmt.Errorf("products CSV row %d: %w", i+2, err)
		}
		product, err := entities.NewProduct(
			entities.ProductID(strings.TrimSpace(record[0])),
			record[1],
			tracking,
			strings.TrimSpace(record[3]),
			l.unit(units, record[4]),
		)
		if err != nil {
			return nil, fmt.Errorf("products CSV row %d: %w", i+2, err)
		}
		products = append(products, product)
	}
	return products, nil
}

// LoadCategories loads product categories from a CSV file
func (l *Loader) LoadCategories(filename string) ([]*entities.Category, error) {
	rows, err := readTable(filename, "categories", categoriesHeader)
	if err != nil {
		return nil, err
	}

	categories := make([]*entities.Category, 0, len(rows))
	for i, record := range rows {
		strategy, err := entities.ParseRemovalStrategy(record[1])
		if err != nil {
			return nil, fmt.Errorf("categories CSV row %d: %w", i+2, err)
		}
		categories = append(categories, &entities.Category{
			ID:              strings.TrimSpace(record[0]),
			RemovalStrategy: strategy,
		})
	}
	return categories, nil
}

// LoadLocations loads the location tree from a CSV file
func (l *Loader) LoadLocations(filename string) ([]*entities.Location, error) {
	rows, err := readTable(filename, "locations", locationsHeader)
	if err != nil {
		return nil, err
	}

	locations := make([]*entities.Location, 0, len(rows))
	for i, record := range rows {
		strategy, err := entities.ParseRemovalStrategy(record[2])
		if err != nil {
			return nil, fmt.Errorf("locations CSV row %d: %w", i+2, err)
		}
		id := strings.TrimSpace(record[0])
		if id == "" {
			return nil, fmt.Errorf("locations CSV row %d: location id cannot be empty", i+2)
		}
		locations = append(locations, &entities.Location{
			ID:              id,
			ParentID:        strings.TrimSpace(record[1]),
			RemovalStrategy: strategy,
		})
	}
	return locations, nil
}

// LoadInventory loads inventory records from a CSV file.
// An empty in_date marks a record without arrival date.
func (l *Loader) LoadInventory(filename string) ([]*entities.InventoryRecord, error) {
	rows, err := readTable(filename, "inventory", inventoryHeader)
	if err != nil {
		return nil, err
	}

	records := make([]*entities.InventoryRecord, 0, len(rows))
	for i, record := range rows {
		quantity, err := entities.ParseQuantity(record[4])
		if err != nil {
			return nil, fmt.Errorf("invalid quantity in row %d: %s", i+2, record[4])
		}
		reserved := decimal.Zero
		if strings.TrimSpace(record[5]) != "" {
			if reserved, err = entities.ParseQuantity(record[5]); err != nil {
				return nil, fmt.Errorf("invalid reserved in row %d: %s", i+2, record[5])
			}
		}

		var inDate *time.Time
		if s := strings.TrimSpace(record[6]); s != "" {
			parsed, err := time.Parse(dateLayout, s)
			if err != nil {
				return nil, fmt.Errorf("invalid in_date format in row %d: %s (expected YYYY-MM-DD)", i+2, s)
			}
			inDate = &parsed
		}

		inv, err := entities.NewInventoryRecord(
			strings.TrimSpace(record[0]),
			entities.ProductID(strings.TrimSpace(record[1])),
			strings.TrimSpace(record[2]),
			entities.LotID(strings.TrimSpace(record[3])),
			quantity,
			reserved,
			inDate,
			entities.Provenance{PackageID: strings.TrimSpace(record[7]), OwnerID: strings.TrimSpace(record[8])},
		)
		if err != nil {
			return nil, fmt.Errorf("inventory CSV row %d: %w", i+2, err)
		}
		records = append(records, inv)
	}
	return records, nil
}

// LoadDemands loads demands from a CSV file
func (l *Loader) LoadDemands(filename string, units map[string]entities.UnitOfMeasure) ([]*entities.Demand, error) {
	rows, err := readTable(filename, "demands", demandsHeader)
	if err != nil {
		return nil, err
	}

	demands := make([]*entities.Demand, 0, len(rows))
	for i, record := range rows {
		demand, err := l.parseDemand(record, units)
		if err != nil {
			return nil, fmt.Errorf("demands CSV row %d: %w", i+2, err)
		}
		demands = append(demands, demand)
	}
	return demands, nil
}

func (l *Loader) parseDemand(record []string, units map[string]entities.UnitOfMeasure) (*entities.Demand, error) {
	quantity, err := entities.ParseQuantity(record[3])
	if err != nil {
		return nil, fmt.Errorf("invalid quantity: %s", record[3])
	}

	demand, err := entities.NewDemand(
		strings.TrimSpace(record[0]),
		entities.ProductID(strings.TrimSpace(record[1])),
		strings.TrimSpace(record[2]),
		quantity,
	)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(record[4]); name != "" {
		demand.UnitOfMeasure = l.unit(units, name)
	}
	if demand.State, err = entities.ParseReservationState(record[5]); err != nil {
		return nil, err
	}
	demand.OriginIDs = splitList(record[6])
	demand.DestinationIDs = splitList(record[7])

	return demand, nil
}

// unit looks a unit up by name, falling back to a reference unit
func (l *Loader) unit(units map[string]entities.UnitOfMeasure, name string) entities.UnitOfMeasure {
	name = strings.TrimSpace(name)
	if uom, ok := units[name]; ok {
		return uom
	}
	if name == "" {
		return entities.UnitOfMeasure{}
	}
	return entities.ReferenceUnit(name, l.defaultRounding)
}

// Helper functions for parsing CSV records

// readTable reads a CSV file, validates its header and column counts, and
// returns the data rows
func readTable(filename, name string, expectedHeader []string) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file %s: %w", name, filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", name, err)
	}

	if len(records) < 1 {
		return nil, fmt.Errorf("%s CSV must have a header", name)
	}

	header := records[0]
	if !validateHeader(header, expectedHeader) {
		return nil, fmt.Errorf("%s CSV header mismatch. Expected: %v, Got: %v", name, expectedHeader, header)
	}

	for i, record := range records[1:] {
		if len(record) != len(expectedHeader) {
			return nil, fmt.Errorf("%s CSV row %d: expected %d columns, got %d", name, i+2, len(expectedHeader), len(record))
		}
	}
	return records[1:], nil
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}

	return true
}

func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, listSeparator)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
