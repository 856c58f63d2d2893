package archive

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/blueinsight/blueinsight/internal/datastore"
)

// encodeRecordsParquet builds a schema from the classified columns and
// writes every record. Numeric columns become optional doubles, everything
// else an optional string.
func encodeRecordsParquet(columns []datastore.ColumnDescriptor, records []datastore.Record) ([]byte, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("columns are required")
	}

	group := parquet.Group{}
	for _, column := range columns {
		if column.Kind == datastore.KindNumeric {
			group[column.Name] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		} else {
			group[column.Name] = parquet.Optional(parquet.String())
		}
	}
	schema := parquet.NewSchema("results", group)

	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		row := make(map[string]any, len(columns))
		for _, column := range columns {
			value, ok := record[column.Name]
			if !ok || value == nil {
				continue
			}
			if column.Kind == datastore.KindNumeric {
				if number, ok := datastore.NumericValue(value); ok {
					row[column.Name] = number
				}
				continue
			}
			row[column.Name] = datastore.StringValue(value)
		}
		rows = append(rows, row)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[map[string]any](buf, schema)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
