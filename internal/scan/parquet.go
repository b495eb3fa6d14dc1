package scan

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/paveg/ibis/internal/config"
	"github.com/paveg/ibis/internal/dataframe"
	"github.com/paveg/ibis/internal/expr"
	"github.com/paveg/ibis/internal/schema"
	"github.com/paveg/ibis/internal/series"
)

// ParquetSource reads a Parquet file. Schema comes from file metadata
// without touching row data. Scan materializes the full table and then
// applies projection and predicate before batches leave the source.
// TODO: read only the projected columns via pqarrow.FileReader.ReadRowGroups.
type ParquetSource struct {
	path string
	mem  memory.Allocator
}

// NewParquetSource creates a Parquet-backed source.
func NewParquetSource(path string, mem memory.Allocator) *ParquetSource {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &ParquetSource{path: path, mem: mem}
}

func (s *ParquetSource) Name() string { return "parquet:" + s.path }

// CanPushPredicate reports true; predicates are applied after column reads
// but before batches leave the source.
func (s *ParquetSource) CanPushPredicate(e expr.Expr) bool { return true }

func (s *ParquetSource) open() (*file.Reader, *pqarrow.FileReader, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	pqReader, err := file.NewParquetReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("creating parquet reader for %s: %w", s.path, err)
	}
	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, s.mem)
	if err != nil {
		pqReader.Close()
		return nil, nil, fmt.Errorf("creating arrow reader for %s: %w", s.path, err)
	}
	return pqReader, arrowReader, nil
}

func (s *ParquetSource) Schema() (*schema.Schema, error) {
	pqReader, arrowReader, err := s.open()
	if err != nil {
		return nil, err
	}
	defer pqReader.Close()

	arrowSchema, err := arrowReader.Schema()
	if err != nil {
		return nil, fmt.Errorf("reading schema of %s: %w", s.path, err)
	}
	return schema.FromArrow(arrowSchema)
}

func (s *ParquetSource) Scan(req ScanRequest) (BatchIterator, error) {
	pqReader, arrowReader, err := s.open()
	if err != nil {
		return nil, err
	}
	defer pqReader.Close()

	table, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("reading table of %s: %w", s.path, err)
	}
	defer table.Release()

	df, err := tableToFrame(table)
	if err != nil {
		return nil, err
	}
	out, err := applyRequest(s.mem, df, req)
	if err != nil {
		return nil, err
	}
	return newSliceIterator(out, config.GetGlobalConfig().ScanChunkSize), nil
}

// Read materializes the whole file as a frame, without pushdowns.
func (s *ParquetSource) Read() (*dataframe.DataFrame, error) {
	it, err := s.Scan(ScanRequest{})
	if err != nil {
		return nil, err
	}
	sch, err := s.Schema()
	if err != nil {
		it.Close()
		return nil, err
	}
	return Collect(it, sch)
}

func tableToFrame(table arrow.Table) (*dataframe.DataFrame, error) {
	cols := make([]*series.Series, table.NumCols())
	for i := 0; i < int(table.NumCols()); i++ {
		col := table.Column(i)
		s, err := series.FromChunks(col.Name(), col.Data().Chunks()...)
		if err != nil {
			return nil, err
		}
		cols[i] = s
	}
	return dataframe.New(cols...)
}

// WriteParquet writes a frame to a Parquet file with Snappy compression.
func WriteParquet(df *dataframe.DataFrame, path string, mem memory.Allocator) error {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	rec, err := df.Record(mem)
	if err != nil {
		return err
	}
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(mem))
	writer, err := pqarrow.NewFileWriter(rec.Schema(), f, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating parquet writer for %s: %w", path, err)
	}
	if err := writer.Write(rec); err != nil {
		writer.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return writer.Close()
}

