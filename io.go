package ibis

import (
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/ibis/internal/scan"
)

// CSVOptions configures CSV parsing.
type CSVOptions = scan.CSVOptions

// DefaultCSVOptions returns comma-delimited, header-on defaults with
// "", "null" and "NA" treated as nulls.
func DefaultCSVOptions() CSVOptions { return scan.DefaultCSVOptions() }

// ScanCSV opens a CSV file as a lazy query. Types are inferred from a
// sample; the file is read at Collect, with the optimizer's column and
// predicate pushdown applied at the scan.
func ScanCSV(path string, options CSVOptions) *LazyFrame {
	return Scan(scan.NewCSVSource(path, options, memory.DefaultAllocator))
}

// ReadCSV reads a whole CSV file eagerly.
func ReadCSV(path string, options CSVOptions) (*DataFrame, error) {
	return scan.NewCSVSource(path, options, memory.DefaultAllocator).Read()
}

// WriteCSV writes a frame as CSV with a header row. Nulls become empty
// cells.
func WriteCSV(df *DataFrame, path string) error {
	return scan.WriteCSV(df, path)
}

// ScanParquet opens a Parquet file as a lazy query.
func ScanParquet(path string) *LazyFrame {
	return Scan(scan.NewParquetSource(path, memory.DefaultAllocator))
}

// ReadParquet reads a whole Parquet file eagerly.
func ReadParquet(path string) (*DataFrame, error) {
	return scan.NewParquetSource(path, memory.DefaultAllocator).Read()
}

// WriteParquet writes a frame as Snappy-compressed Parquet.
func WriteParquet(df *DataFrame, path string) error {
	return scan.WriteParquet(df, path, memory.DefaultAllocator)
}
