package nl2sql

import (
	"fmt"
	"strings"
)

// SchemaDescription is the fixed dataset description embedded in every
// generation prompt. Columns carry a short business-vocabulary hint so the
// model maps phrasing like "collection volume" onto the right column.
type SchemaDescription struct {
	Table   string
	Columns []SchemaColumn
}

type SchemaColumn struct {
	Name  string
	Type  string
	Hint  string
	Terms []string
}

func DefaultSchema() SchemaDescription {
	return SchemaDescription{
		Table: "collections",
		Columns: []SchemaColumn{
			{Name: "service_report", Type: "VARCHAR", Hint: "unique report id per collection"},
			{Name: "entity_id", Type: "VARCHAR", Hint: "serviced business entity", Terms: []string{"entity", "outlet", "customer"}},
			{Name: "outlet_name", Type: "VARCHAR", Hint: "business outlet display name"},
			{Name: "category", Type: "VARCHAR", Hint: "business category", Terms: []string{"restaurant", "cafeteria", "business type"}},
			{Name: "area", Type: "VARCHAR", Hint: "collection area", Terms: []string{"area", "location", "district"}},
			{Name: "zone", Type: "VARCHAR", Hint: "municipal zone grouping areas"},
			{Name: "service_provider", Type: "VARCHAR", Hint: "collecting company", Terms: []string{"provider", "contractor"}},
			{Name: "assigned_vehicle", Type: "VARCHAR", Hint: "collection vehicle", Terms: []string{"truck", "vehicle"}},
			{Name: "trade_license_number", Type: "BIGINT", Hint: "entity trade license"},
			{Name: "gallons_collected", Type: "DOUBLE", Hint: "collected grease volume", Terms: []string{"volume", "gallons", "amount"}},
			{Name: "trap_count", Type: "INTEGER", Hint: "grease traps serviced", Terms: []string{"traps"}},
			{Name: "initiated_date", Type: "DATE", Hint: "service request date"},
			{Name: "collected_date", Type: "DATE", Hint: "collection date, primary time axis", Terms: []string{"date", "when", "month", "week"}},
			{Name: "discharged_date", Type: "DATE", Hint: "discharge date"},
		},
	}
}

func (s SchemaDescription) Describe() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "TABLE %s (\n", s.Table)
	for _, column := range s.Columns {
		fmt.Fprintf(&builder, "  %s %s -- %s\n", column.Name, column.Type, column.Hint)
	}
	builder.WriteString(")")
	return builder.String()
}

func (s SchemaDescription) Vocabulary() string {
	var builder strings.Builder
	for _, column := range s.Columns {
		if len(column.Terms) == 0 {
			continue
		}
		fmt.Fprintf(&builder, "%s -> %s\n", strings.Join(column.Terms, ", "), column.Name)
	}
	return builder.String()
}
