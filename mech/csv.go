package mech

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// csvHeader is the exact header row required by spec.md section 6.
var csvHeader = []string{"Timestamp", "Clock", "Data", "DST", "Latch", "Motor1", "Motor2"}

// WriteCSV writes records as raw sample records in the UTF-8, LF-
// terminated, comma-separated format spec.md section 6 requires.
func WriteCSV(w io.Writer, records []SampleRecord) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = false

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("mech: writing csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(recordToRow(r)); err != nil {
			return fmt.Errorf("mech: writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportRawDataToFile writes records to path as CSV, creating or
// truncating the file.
func ExportRawDataToFile(path string, records []SampleRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("mech: creating %s: %w", path, err)
	}
	defer f.Close()
	return WriteCSV(f, records)
}

func recordToRow(r SampleRecord) []string {
	return []string{
		strconv.FormatFloat(r.Timestamp, 'f', -1, 64),
		boolDigit(r.Clock),
		boolDigit(r.Data),
		boolDigit(r.DST),
		boolDigit(r.Latch),
		boolDigit(r.Motor1),
		boolDigit(r.Motor2),
	}
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// CSVReader is a restartable iterator over a CSV file of sample records,
// yielding one SampleRecord at a time rather than loading the whole
// capture into memory.
type CSVReader struct {
	path string
	file *os.File
	r    *csv.Reader
}

// NewCSVReader opens path and positions the iterator just past the
// header row.
func NewCSVReader(path string) (*CSVReader, error) {
	r := &CSVReader{path: path}
	if err := r.Restart(); err != nil {
		return nil, err
	}
	return r, nil
}

// Restart reopens the file from the beginning, re-skipping the header.
func (r *CSVReader) Restart() error {
	if r.file != nil {
		r.file.Close()
	}
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("mech: opening %s: %w", r.path, err)
	}
	r.file = f
	r.r = csv.NewReader(f)
	if _, err := r.r.Read(); err != nil { // header
		f.Close()
		return fmt.Errorf("mech: reading header of %s: %w", r.path, err)
	}
	return nil
}

// Next yields the next record. ok is false, with a nil error, at end of
// file.
func (r *CSVReader) Next() (rec SampleRecord, ok bool, err error) {
	row, err := r.r.Read()
	if err == io.EOF {
		return SampleRecord{}, false, nil
	}
	if err != nil {
		return SampleRecord{}, false, fmt.Errorf("%w: reading %s: %v", ErrDecodeError, r.path, err)
	}
	rec, err = rowToRecord(row)
	if err != nil {
		return SampleRecord{}, false, err
	}
	return rec, true, nil
}

// Close releases the underlying file handle.
func (r *CSVReader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

func rowToRecord(row []string) (SampleRecord, error) {
	if len(row) != 7 {
		return SampleRecord{}, fmt.Errorf("%w: expected 7 columns, got %d", ErrDecodeError, len(row))
	}
	ts, err := strconv.ParseFloat(row[0], 64)
	if err != nil {
		return SampleRecord{}, fmt.Errorf("%w: parsing timestamp %q: %v", ErrDecodeError, row[0], err)
	}
	bits := make([]bool, 6)
	for i, col := range row[1:] {
		bits[i] = col == "1"
	}
	return SampleRecord{
		Timestamp: ts,
		Clock:     bits[0],
		Data:      bits[1],
		DST:       bits[2],
		Latch:     bits[3],
		Motor1:    bits[4],
		Motor2:    bits[5],
	}, nil
}

// ReadAllRecords drains a CSVReader to completion, for callers that want
// the whole capture at once (e.g. round-trip tests).
func ReadAllRecords(r *CSVReader) ([]SampleRecord, error) {
	var out []SampleRecord
	for {
		rec, ok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, rec)
	}
}
