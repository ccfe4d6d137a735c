package allocbench

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// PerformanceRecord is the outcome of a single engine invocation. Records are
// immutable once written; a run writes its own log and never edits another's.
type PerformanceRecord struct {
	Filename     string
	Status       Status
	Seconds      float64
	ErrorMessage string
}

var recordHeader = []string{"filename", "status", "execution_time_seconds", "error_message"}

// WriteRecords writes a run's performance log. Execution times are rounded to
// two decimals, which is plenty next to subprocess startup jitter.
func WriteRecords(path string, records []PerformanceRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create performance log %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(recordHeader); err != nil {
		return errors.Wrapf(err, "failed to write performance log %s", path)
	}
	for _, rec := range records {
		row := []string{
			rec.Filename,
			string(rec.Status),
			strconv.FormatFloat(rec.Seconds, 'f', 2, 64),
			rec.ErrorMessage,
		}
		if err := w.Write(row); err != nil {
			return errors.Wrapf(err, "failed to write performance log %s", path)
		}
	}
	w.Flush()
	return errors.Wrapf(w.Error(), "failed to flush performance log %s", path)
}

// ReadRecords loads a performance log for analysis. Rows that don't match the
// expected shape are skipped with a warning, never fatal.
func ReadRecords(path string, log *zap.SugaredLogger) ([]PerformanceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open performance log %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse performance log %s", path)
	}

	var records []PerformanceRecord
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == recordHeader[0] {
			continue
		}
		if len(row) != len(recordHeader) {
			log.Warnf("%s line %d: expected %d fields, got %d, skipping", path, i+1, len(recordHeader), len(row))
			continue
		}
		seconds, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			log.Warnf("%s line %d: bad execution time '%s', skipping", path, i+1, row[2])
			continue
		}
		records = append(records, PerformanceRecord{
			Filename:     row[0],
			Status:       Status(row[1]),
			Seconds:      seconds,
			ErrorMessage: row[3],
		})
	}
	return records, nil
}
