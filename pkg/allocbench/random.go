package allocbench

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RandomGenerator produces transactions with no template structure. The
// caller owns the seeded random stream, so reruns with the same seed give the
// same workload.
type RandomGenerator struct {
	Txns            int
	MaxOps          int
	MaxKey          int
	ReadOnlyPercent int

	Rand *rand.Rand
}

// Generate draws one read-only decision per transaction: a draw in [1,100] at
// or below ReadOnlyPercent gives an all-READ transaction, anything else a mix
// of uniformly chosen READs and WRITEs. Everything runs at SERIALIZABLE; the
// allocation engine is the one that relaxes levels afterwards.
func (g *RandomGenerator) Generate() *Workload {
	txns := make([]Transaction, 0, g.Txns)
	for i := 1; i <= g.Txns; i++ {
		var ops []Operation
		if g.Rand.Intn(100)+1 <= g.ReadOnlyPercent {
			ops = g.readOnlyOps()
		} else {
			ops = g.mixedOps()
		}
		txns = append(txns, Transaction{
			Name:           fmt.Sprintf("Txn_%d", i),
			IsolationLevel: Serializable,
			Operations:     ops,
		})
	}

	g.Rand.Shuffle(len(txns), func(i, j int) {
		txns[i], txns[j] = txns[j], txns[i]
	})
	return &Workload{Templates: txns}
}

func (g *RandomGenerator) readOnlyOps() []Operation {
	n := g.Rand.Intn(g.MaxOps) + 1
	ops := make([]Operation, 0, n)
	for id := 1; id <= n; id++ {
		ops = append(ops, Operation{ID: id, Type: OpRead, Key: g.randomKey()})
	}
	return ops
}

func (g *RandomGenerator) mixedOps() []Operation {
	n := g.Rand.Intn(g.MaxOps) + 1
	ops := make([]Operation, 0, n)
	for id := 1; id <= n; id++ {
		opType := OpRead
		if g.Rand.Intn(2) == 1 {
			opType = OpWrite
		}
		ops = append(ops, Operation{ID: id, Type: opType, Key: g.randomKey()})
	}
	return ops
}

func (g *RandomGenerator) randomKey() string {
	return fmt.Sprintf("key_%d", g.Rand.Intn(g.MaxKey)+1)
}

func RandomWorkloadFilename(txns, maxOps, maxKey, readOnly, caseNum int) string {
	return fmt.Sprintf("workload_%dt_%do_%dk_%dr_%d.json", txns, maxOps, maxKey, readOnly, caseNum)
}

// GenerateRandomWorkloads writes `cases` workload files into outDir, all drawn
// from the generator's single random stream.
func (g *RandomGenerator) GenerateRandomWorkloads(outDir string, cases int, log *zap.SugaredLogger) (int, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return 0, errors.Wrapf(err, "failed to create output directory %s", outDir)
	}
	generated := 0
	for caseNum := 1; caseNum <= cases; caseNum++ {
		wl := g.Generate()
		name := RandomWorkloadFilename(g.Txns, g.MaxOps, g.MaxKey, g.ReadOnlyPercent, caseNum)
		if err := WriteWorkload(filepath.Join(outDir, name), wl); err != nil {
			return generated, err
		}
		log.Infof("generated %s (%d transactions)", name, len(wl.Templates))
		generated++
	}
	return generated, nil
}
