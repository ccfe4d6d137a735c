package allocbench

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MissingParameterError means an operation references a parameter name the
// template never declares. This is a configuration mistake in the benchmark
// file, so generation aborts rather than skipping the instance.
type MissingParameterError struct {
	Template string
	Name     string
	Declared []string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("template '%s': operation references parameter '%s', declared params are %v", e.Template, e.Name, e.Declared)
}

// Instantiator turns benchmark templates into concrete workloads. Each
// generation case owns a random stream seeded with the case number alone, so
// output for a fixed case is byte-identical across runs and machines.
type Instantiator struct {
	TotalTxns int
	MaxKey    int
}

// InstantiateCase binds every template in the set against case-local random
// parameter values and returns the shuffled transaction population.
func (g *Instantiator) InstantiateCase(set *TemplateSet, caseNum int) (*Workload, error) {
	r := rand.New(rand.NewSource(int64(caseNum)))

	var txns []Transaction
	for _, tpl := range set.Templates {
		count := int(math.Round(float64(g.TotalTxns) * tpl.Percentage))
		if count < 1 {
			count = 1
		}
		for i := 0; i < count; i++ {
			values := make(map[string]int, len(tpl.Params))
			for _, name := range tpl.Params {
				values[name] = r.Intn(g.MaxKey) + 1
			}
			ops, err := instantiateOps(tpl, values, r, g.MaxKey)
			if err != nil {
				return nil, err
			}
			txns = append(txns, Transaction{
				Name:           fmt.Sprintf("%s_%d", tpl.Name, i+1),
				IsolationLevel: tpl.IsolationLevel,
				Operations:     ops,
			})
		}
	}

	r.Shuffle(len(txns), func(i, j int) {
		txns[i], txns[j] = txns[j], txns[i]
	})
	return &Workload{Templates: txns}, nil
}

// instantiateOps resolves each abstract operation to a concrete key. An
// operation with a param reference gets `table_<v1>_<v2>...` in declaration
// order; one without gets a fresh uniform draw per occurrence. UPDATE expands
// into a READ and a WRITE sharing the operation id and key.
func instantiateOps(tpl TxnTemplate, values map[string]int, r *rand.Rand, maxKey int) ([]Operation, error) {
	ops := make([]Operation, 0, len(tpl.Operations))
	for _, op := range tpl.Operations {
		var key string
		if op.Params.Empty() {
			key = fmt.Sprintf("%s_%d", op.Key, r.Intn(maxKey)+1)
		} else {
			parts := make([]string, 0, len(op.Params.Names))
			for _, name := range op.Params.Names {
				v, ok := values[name]
				if !ok {
					return nil, &MissingParameterError{Template: tpl.Name, Name: name, Declared: tpl.Params}
				}
				parts = append(parts, strconv.Itoa(v))
			}
			key = op.Key + "_" + strings.Join(parts, "_")
		}

		if op.Type == OpUpdate {
			ops = append(ops,
				Operation{ID: op.ID, Type: OpRead, Key: key},
				Operation{ID: op.ID, Type: OpWrite, Key: key})
		} else {
			ops = append(ops, Operation{ID: op.ID, Type: op.Type, Key: key})
		}
	}
	return ops, nil
}

func BenchWorkloadFilename(benchmark string, txns, maxKey, caseNum int) string {
	return fmt.Sprintf("%s_%dt_%dk_%d.json", benchmark, txns, maxKey, caseNum)
}

// GenerateBenchWorkloads instantiates every benchmark template file in
// benchmarkDir, writing one workload file per (benchmark, case) pair into
// outDir. Benchmark files are visited in lexically sorted order so that case
// seeding lines up across machines regardless of directory iteration order.
func (g *Instantiator) GenerateBenchWorkloads(benchmarkDir, outDir string, cases int, log *zap.SugaredLogger) (int, error) {
	paths, err := filepath.Glob(filepath.Join(benchmarkDir, "*.json"))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to list benchmark files in %s", benchmarkDir)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return 0, errors.Errorf("no benchmark files found in %s", benchmarkDir)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return 0, errors.Wrapf(err, "failed to create output directory %s", outDir)
	}

	generated := 0
	for _, path := range paths {
		set, err := ReadTemplateSet(path)
		if err != nil {
			return generated, err
		}
		if len(set.Templates) == 0 {
			log.Warnf("no templates in %s, skipping", filepath.Base(path))
			continue
		}
		benchmark := strings.TrimSuffix(filepath.Base(path), ".json")
		for caseNum := 1; caseNum <= cases; caseNum++ {
			wl, err := g.InstantiateCase(set, caseNum)
			if err != nil {
				return generated, err
			}
			out := filepath.Join(outDir, BenchWorkloadFilename(benchmark, g.TotalTxns, g.MaxKey, caseNum))
			if err := WriteWorkload(out, wl); err != nil {
				return generated, err
			}
			log.Infof("generated %s (%d transactions)", filepath.Base(out), len(wl.Templates))
			generated++
		}
	}
	return generated, nil
}
