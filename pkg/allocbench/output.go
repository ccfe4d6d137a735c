package allocbench

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

type ProgressReport struct {
	Section      string
	Step         string
	Completeness float64
}

type Output interface {
	ReportProgress(report ProgressReport)
	ReportRun(result *HarnessResult)
	Errorf(format string, a ...interface{})
}

func NewOutput(name string) (Output, error) {
	if name == "auto" {
		fi, _ := os.Stdout.Stat()
		if fi.Mode()&os.ModeCharDevice == 0 {
			return &CsvOutput{
				ErrStream: os.Stderr,
				OutStream: os.Stdout,
			}, nil
		}
		return &InteractiveOutput{
			ErrStream: os.Stderr,
			OutStream: os.Stdout,
		}, nil
	}
	if name == "interactive" {
		return &InteractiveOutput{
			ErrStream: os.Stderr,
			OutStream: os.Stdout,
		}, nil
	}
	if name == "csv" {
		return &CsvOutput{
			ErrStream: os.Stderr,
			OutStream: os.Stdout,
		}, nil
	}
	return nil, fmt.Errorf("unknown output format: %s, supported formats are 'auto', 'interactive' and 'csv'", name)
}

type InteractiveOutput struct {
	ErrStream io.Writer
	OutStream io.Writer
	// Used to rate-limit progress reporting
	LastProgressReport ProgressReport
	LastProgressTime   time.Time
}

func (o *InteractiveOutput) ReportProgress(report ProgressReport) {
	now := time.Now()
	if report.Section == o.LastProgressReport.Section && report.Step == o.LastProgressReport.Step && now.Sub(o.LastProgressTime).Seconds() < 10 {
		return
	}
	o.LastProgressReport = report
	o.LastProgressTime = now
	_, err := fmt.Fprintf(o.ErrStream, "[%s][%s] %.02f%%\n", report.Section, report.Step, report.Completeness*100)
	if err != nil {
		panic(err)
	}
}

func (o *InteractiveOutput) ReportRun(result *HarnessResult) {
	s := strings.Builder{}

	s.WriteString("== Results ==\n")
	s.WriteString(fmt.Sprintf("Files processed: %d\n", len(result.Records)))
	s.WriteString(fmt.Sprintf("Succeeded: %d\n", result.Succeeded))
	s.WriteString(fmt.Sprintf("Failed: %d\n", result.Failed))
	s.WriteString(fmt.Sprintf("Total engine time: %.2fs\n", result.TotalSeconds))

	histo := result.Times
	if histo.TotalCount() > 0 {
		s.WriteString("\n")
		s.WriteString(fmt.Sprintf("Execution time per file:\n"))
		s.WriteString(fmt.Sprintf("  Min:    %.3fs\n", float64(histo.Min())/1000000.0))
		s.WriteString(fmt.Sprintf("  Mean:   %.3fs\n", histo.Mean()/1000000.0))
		s.WriteString(fmt.Sprintf("  Max:    %.3fs\n", float64(histo.Max())/1000000.0))
		s.WriteString(fmt.Sprintf("  Stddev: %.3fs\n", histo.StdDev()/1000000.0))
		s.WriteString("\n")
		s.WriteString(fmt.Sprintf("Distribution:\n"))
		s.WriteString(fmt.Sprintf("  P50: %.3fs\n", float64(histo.ValueAtQuantile(50))/1000000.0))
		s.WriteString(fmt.Sprintf("  P75: %.3fs\n", float64(histo.ValueAtQuantile(75))/1000000.0))
		s.WriteString(fmt.Sprintf("  P95: %.3fs\n", float64(histo.ValueAtQuantile(95))/1000000.0))
		s.WriteString(fmt.Sprintf("  P99: %.3fs\n", float64(histo.ValueAtQuantile(99))/1000000.0))
	}

	if result.Failed > 0 {
		s.WriteString("\n")
		s.WriteString("Failed files:\n")
		for _, f := range result.FailedFiles {
			s.WriteString(fmt.Sprintf("  - %s\n", f))
		}
	}

	_, err := fmt.Fprint(o.OutStream, s.String())
	if err != nil {
		panic(err)
	}
}

func (o *InteractiveOutput) Errorf(format string, a ...interface{}) {
	_, err := fmt.Fprintf(o.ErrStream, "ERROR: %s\n", fmt.Sprintf(format, a...))
	if err != nil {
		panic(err)
	}
}

// Writes simple progress to stderr, and then one aggregate result row for
// easy import into a spreadsheet or other app in CSV format to stdout
type CsvOutput struct {
	ErrStream io.Writer
	OutStream io.Writer
	// Used to rate-limit progress reporting
	LastProgressReport ProgressReport
	LastProgressTime   time.Time
}

func (o *CsvOutput) ReportProgress(report ProgressReport) {
	now := time.Now()
	if report.Section == o.LastProgressReport.Section && report.Step == o.LastProgressReport.Step && now.Sub(o.LastProgressTime).Seconds() < 10 {
		return
	}
	o.LastProgressReport = report
	o.LastProgressTime = now
	_, err := fmt.Fprintf(o.ErrStream, "[%s][%s] %.02f%%\n", report.Section, report.Step, report.Completeness*100)
	if err != nil {
		panic(err)
	}
}

func (o *CsvOutput) ReportRun(result *HarnessResult) {
	histo := result.Times

	columns := []string{"files", "succeeded", "failed", "total_s", "min_s", "mean_s", "max_s", "p95_s"}
	row := []float64{
		float64(len(result.Records)),
		float64(result.Succeeded),
		float64(result.Failed),
		result.TotalSeconds,
		float64(histo.Min()) / 1000000.0,
		histo.Mean() / 1000000.0,
		float64(histo.Max()) / 1000000.0,
		float64(histo.ValueAtQuantile(95)) / 1000000.0,
	}

	s := strings.Builder{}
	separator := ","
	s.WriteString(strings.Join(columns, separator))
	s.WriteString("\n")

	for i, cell := range row {
		if i > 0 {
			s.WriteString(separator)
		}
		s.WriteString(fmt.Sprintf("%.03f", cell))
	}
	s.WriteString("\n")

	_, err := fmt.Fprint(o.OutStream, s.String())
	if err != nil {
		panic(err)
	}
}

func (o *CsvOutput) Errorf(format string, a ...interface{}) {
	_, err := fmt.Fprintf(o.ErrStream, "ERROR: %s\n", fmt.Sprintf(format, a...))
	if err != nil {
		panic(err)
	}
}
