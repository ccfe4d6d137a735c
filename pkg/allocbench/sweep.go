package allocbench

import (
	"hash/fnv"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SweepConfig is one point in the workload parameter space.
type SweepConfig struct {
	Txns     int
	MaxOps   int
	MaxKey   int
	ReadOnly int
}

// SweepPlan describes a one-factor-at-a-time generation campaign: every
// generated configuration equals the baseline except for a single parameter
// drawn from that parameter's value list. The analyzer's mode-based baseline
// discovery recovers the same baseline from the resulting filenames.
type SweepPlan struct {
	Baseline       SweepConfig
	TxnValues      []int
	MaxOpsValues   []int
	MaxKeyValues   []int
	ReadOnlyValues []int
}

func DefaultSweepPlan() SweepPlan {
	return SweepPlan{
		Baseline:       SweepConfig{Txns: 500, MaxOps: 10, MaxKey: 300, ReadOnly: 50},
		TxnValues:      []int{100, 200, 500},
		MaxOpsValues:   []int{10, 15, 20, 30, 40, 60, 80, 100},
		MaxKeyValues:   []int{100, 500, 600, 700, 800, 900, 1000},
		ReadOnlyValues: []int{0, 20, 40, 60, 80, 100},
	}
}

// Configs expands the plan into concrete configurations. A value equal to the
// baseline yields the baseline configuration itself; those repeats collapse to
// the same filenames, which is fine since seeding is filename-derived.
func (p SweepPlan) Configs() []SweepConfig {
	var out []SweepConfig
	for _, v := range p.TxnValues {
		cfg := p.Baseline
		cfg.Txns = v
		out = append(out, cfg)
	}
	for _, v := range p.MaxOpsValues {
		cfg := p.Baseline
		cfg.MaxOps = v
		out = append(out, cfg)
	}
	for _, v := range p.MaxKeyValues {
		cfg := p.Baseline
		cfg.MaxKey = v
		out = append(out, cfg)
	}
	for _, v := range p.ReadOnlyValues {
		cfg := p.Baseline
		cfg.ReadOnly = v
		out = append(out, cfg)
	}
	return out
}

// GenerateSweep writes `cases` workload files per configuration into outDir.
// Each file's random stream is seeded from its own filename, so regenerating
// a sweep reproduces every file exactly, including the overlap points shared
// between parameter groups.
func GenerateSweep(plan SweepPlan, outDir string, cases int, log *zap.SugaredLogger) (int, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return 0, errors.Wrapf(err, "failed to create output directory %s", outDir)
	}
	generated := 0
	for _, cfg := range plan.Configs() {
		for caseNum := 1; caseNum <= cases; caseNum++ {
			name := RandomWorkloadFilename(cfg.Txns, cfg.MaxOps, cfg.MaxKey, cfg.ReadOnly, caseNum)
			g := &RandomGenerator{
				Txns:            cfg.Txns,
				MaxOps:          cfg.MaxOps,
				MaxKey:          cfg.MaxKey,
				ReadOnlyPercent: cfg.ReadOnly,
				Rand:            rand.New(rand.NewSource(seedFromName(name))),
			}
			if err := WriteWorkload(filepath.Join(outDir, name), g.Generate()); err != nil {
				return generated, err
			}
			log.Infof("generated %s", name)
			generated++
		}
	}
	return generated, nil
}

func seedFromName(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}
