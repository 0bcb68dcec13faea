// Package parquetstore persists compiled tables as parquet files.
//
// Frames carry their schema at runtime, so files are written through a
// generated CSV-style schema rather than struct reflection. The column
// manifest and the query metadata travel in the parquet footer, which
// lets the processed cache inspect a file without reading row data.
package parquetstore

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/gridseer/gridseer/internal/domain"
)

// columnsKey holds the JSON column manifest in the footer metadata.
const columnsKey = "columns"

// Parquet's CSV schema marks every column REQUIRED, so missing values
// are stored as in-band sentinels and restored to nil on read.
const nullInt64 = math.MinInt64

type columnManifest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Store reads and writes frames under a fixed parallelism.
type Store struct {
	parallelism int64
}

func NewStore() *Store {
	return &Store{parallelism: 4}
}

// Write persists the frame to path along with footer metadata. The
// meta map must not use the reserved key "columns".
func (s *Store) Write(path string, f *domain.Frame, meta map[string]string) error {
	if _, ok := meta[columnsKey]; ok {
		return fmt.Errorf("write %s: metadata key %q is reserved", path, columnsKey)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer fw.Close()

	md := make([]string, len(f.Columns))
	manifest := make([]columnManifest, len(f.Columns))
	for i, col := range f.Columns {
		switch col.Kind {
		case domain.KindTime:
			md[i] = fmt.Sprintf("name=%s, type=INT64, convertedtype=TIMESTAMP_MICROS", col.Name)
		case domain.KindInt:
			md[i] = fmt.Sprintf("name=%s, type=INT64", col.Name)
		case domain.KindFloat:
			md[i] = fmt.Sprintf("name=%s, type=DOUBLE", col.Name)
		case domain.KindCategory:
			md[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY", col.Name)
		default:
			md[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8", col.Name)
		}
		manifest[i] = columnManifest{Name: col.Name, Kind: col.Kind.String()}
	}

	pw, err := writer.NewCSVWriter(md, fw, s.parallelism)
	if err != nil {
		return fmt.Errorf("create parquet writer for %s: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range f.Rows {
		rec := make([]interface{}, len(f.Columns))
		for i, col := range f.Columns {
			rec[i] = encodeValue(col.Kind, row[i])
		}
		if err := pw.Write(rec); err != nil {
			return fmt.Errorf("write row to %s: %w", path, err)
		}
	}

	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal column manifest: %w", err)
	}
	appendFooterKV(pw, columnsKey, string(manifestJSON))
	for k, v := range meta {
		appendFooterKV(pw, k, v)
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalise %s: %w", path, err)
	}
	return nil
}

// Read loads the full frame and footer metadata from path.
func (s *Store) Read(path string) (*domain.Frame, map[string]string, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, s.parallelism)
	if err != nil {
		return nil, nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	defer pr.ReadStop()

	meta := footerMetadata(pr)
	manifestJSON, ok := meta[columnsKey]
	if !ok {
		return nil, nil, fmt.Errorf("read %s: column manifest missing from footer", path)
	}
	var manifest []columnManifest
	if err := json.Unmarshal([]byte(manifestJSON), &manifest); err != nil {
		return nil, nil, fmt.Errorf("read %s: decode column manifest: %w", path, err)
	}
	delete(meta, columnsKey)

	columns := make([]domain.Column, len(manifest))
	for i, m := range manifest {
		kind, err := domain.KindFromString(m.Kind)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: column %s: %w", path, m.Name, err)
		}
		columns[i] = domain.Column{Name: m.Name, Kind: kind}
	}

	numRows := pr.GetNumRows()
	rows := make([][]any, numRows)
	for r := range rows {
		rows[r] = make([]any, len(columns))
	}

	for i, col := range columns {
		vals, _, _, err := pr.ReadColumnByIndex(int64(i), numRows)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: column %s: %w", path, col.Name, err)
		}
		for r, v := range vals {
			rows[r][i] = decodeValue(col.Kind, v)
		}
	}

	return &domain.Frame{Columns: columns, Rows: rows}, meta, nil
}

// ReadMetadata loads only the footer metadata, skipping row data.
func (s *Store) ReadMetadata(path string) (map[string]string, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, s.parallelism)
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	defer pr.ReadStop()

	meta := footerMetadata(pr)
	delete(meta, columnsKey)
	return meta, nil
}

func encodeValue(kind domain.Kind, v any) interface{} {
	switch kind {
	case domain.KindTime:
		if v == nil {
			return int64(nullInt64)
		}
		return v.(time.Time).UnixMicro()
	case domain.KindInt:
		if v == nil {
			return int64(nullInt64)
		}
		return v.(int64)
	case domain.KindFloat:
		if v == nil {
			return math.NaN()
		}
		return v.(float64)
	default:
		if v == nil {
			return ""
		}
		return v.(string)
	}
}

func decodeValue(kind domain.Kind, v interface{}) any {
	switch kind {
	case domain.KindTime:
		n := v.(int64)
		if n == nullInt64 {
			return nil
		}
		return time.UnixMicro(n).UTC()
	case domain.KindInt:
		n := v.(int64)
		if n == nullInt64 {
			return nil
		}
		return n
	case domain.KindFloat:
		f := v.(float64)
		if math.IsNaN(f) {
			return nil
		}
		return f
	default:
		s := v.(string)
		if s == "" {
			return nil
		}
		return s
	}
}

func appendFooterKV(pw *writer.CSVWriter, key, value string) {
	kv := parquet.NewKeyValue()
	kv.Key = key
	kv.Value = &value
	pw.Footer.KeyValueMetadata = append(pw.Footer.KeyValueMetadata, kv)
}

func footerMetadata(pr *reader.ParquetReader) map[string]string {
	meta := make(map[string]string)
	for _, kv := range pr.Footer.KeyValueMetadata {
		if kv.Value != nil {
			meta[kv.Key] = *kv.Value
		}
	}
	return meta
}
