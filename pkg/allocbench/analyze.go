package allocbench

import (
	"encoding/csv"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var workloadFilePattern = regexp.MustCompile(`^workload_(\d+)t_(\d+)o_(\d+)k_(\d+)r_(\d+)\.json$`)

// WorkloadParams are the generation parameters a random-workload filename
// encodes.
type WorkloadParams struct {
	Txns     int
	MaxOps   int
	MaxKey   int
	ReadOnly int
	Case     int
}

func ParseWorkloadFilename(name string) (WorkloadParams, bool) {
	m := workloadFilePattern.FindStringSubmatch(name)
	if m == nil {
		return WorkloadParams{}, false
	}
	fields := make([]int, 5)
	for i := range fields {
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return WorkloadParams{}, false
		}
		fields[i] = v
	}
	return WorkloadParams{
		Txns:     fields[0],
		MaxOps:   fields[1],
		MaxKey:   fields[2],
		ReadOnly: fields[3],
		Case:     fields[4],
	}, true
}

func (p WorkloadParams) get(name string) int {
	switch name {
	case "txns":
		return p.Txns
	case "max_ops":
		return p.MaxOps
	case "max_key":
		return p.MaxKey
	case "read_only":
		return p.ReadOnly
	}
	panic("unknown parameter " + name)
}

// AnalysisRow summarizes execution time for one value of the varying
// parameter, with the other parameters held at the discovered baseline.
// Baseline is keyed by parameter name and never contains the varying
// parameter itself.
type AnalysisRow struct {
	Plot         string
	VaryVariable string
	VaryValue    float64
	Baseline     map[string]int
	Mean         float64
	Std          float64
	SampleCount  int
}

var varyParams = []struct {
	name string
	plot string
}{
	{"txns", "txn_count_vs_time"},
	{"max_ops", "op_per_txn_vs_time"},
	{"max_key", "max_key_vs_time"},
	{"read_only", "read_only_vs_time"},
}

var paramNames = []string{"txns", "max_ops", "max_key", "read_only"}

// Analyze runs one control-variable pass per parameter. For each pass, the
// other three parameters are pinned to their statistical mode across all
// parsed records; this recovers whatever baseline the generation campaign
// actually used without the analyzer needing the generation plan. Only
// successful records with a parseable filename contribute.
func Analyze(records []PerformanceRecord, log *zap.SugaredLogger) []AnalysisRow {
	type sample struct {
		params  WorkloadParams
		seconds float64
	}
	var samples []sample
	for _, rec := range records {
		if rec.Status != StatusSuccess {
			continue
		}
		p, ok := ParseWorkloadFilename(rec.Filename)
		if !ok {
			log.Warnf("skipping record with unrecognized filename '%s'", rec.Filename)
			continue
		}
		samples = append(samples, sample{params: p, seconds: rec.Seconds})
	}
	if len(samples) == 0 {
		return nil
	}

	var rows []AnalysisRow
	for _, vp := range varyParams {
		baseline := make(map[string]int, len(paramNames)-1)
		for _, other := range paramNames {
			if other == vp.name {
				continue
			}
			counts := make(map[int]int)
			for _, s := range samples {
				counts[s.params.get(other)]++
			}
			baseline[other] = mode(counts)
		}

		grouped := make(map[int][]float64)
		for _, s := range samples {
			matches := true
			for name, want := range baseline {
				if s.params.get(name) != want {
					matches = false
					break
				}
			}
			if matches {
				v := s.params.get(vp.name)
				grouped[v] = append(grouped[v], s.seconds)
			}
		}

		values := make([]int, 0, len(grouped))
		for v := range grouped {
			values = append(values, v)
		}
		sort.Ints(values)

		for _, v := range values {
			times := grouped[v]
			m := mean(times)
			rows = append(rows, AnalysisRow{
				Plot:         vp.plot,
				VaryVariable: vp.name,
				VaryValue:    float64(v),
				Baseline:     baseline,
				Mean:         m,
				Std:          stddev(times, m),
				SampleCount:  len(times),
			})
		}
	}
	return rows
}

// mode picks the most frequent value; ties break toward the smaller value so
// analysis output is stable across runs.
func mode(counts map[int]int) int {
	best := 0
	bestCount := -1
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best = v
			bestCount = c
		}
	}
	return best
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation, matching how the summary rows
// are consumed downstream as error bars.
func stddev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

var analysisHeader = []string{
	"plot", "vary_variable", "vary_value",
	"txn_count", "op_per_txn", "max_key", "read_only_percent",
	"mean", "std", "sample_count",
}

// WriteAnalysis writes the summary CSV. The baseline column belonging to the
// varying parameter is left empty on each row.
func WriteAnalysis(path string, rows []AnalysisRow) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create analysis summary %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(analysisHeader); err != nil {
		return errors.Wrapf(err, "failed to write analysis summary %s", path)
	}
	for _, row := range rows {
		record := []string{
			row.Plot,
			row.VaryVariable,
			formatFloat(row.VaryValue),
			baselineCell(row, "txns"),
			baselineCell(row, "max_ops"),
			baselineCell(row, "max_key"),
			baselineCell(row, "read_only"),
			formatFloat(row.Mean),
			formatFloat(row.Std),
			strconv.Itoa(row.SampleCount),
		}
		if err := w.Write(record); err != nil {
			return errors.Wrapf(err, "failed to write analysis summary %s", path)
		}
	}
	w.Flush()
	return errors.Wrapf(w.Error(), "failed to flush analysis summary %s", path)
}

func baselineCell(row AnalysisRow, param string) string {
	v, ok := row.Baseline[param]
	if !ok {
		return ""
	}
	return strconv.Itoa(v)
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
