package allocbench

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadOnlyWorkloadHasOnlyReads(t *testing.T) {
	g := &RandomGenerator{
		Txns:            200,
		MaxOps:          10,
		MaxKey:          50,
		ReadOnlyPercent: 100,
		Rand:            rand.New(rand.NewSource(1337)),
	}

	wl := g.Generate()
	assert.Len(t, wl.Templates, 200)
	for _, txn := range wl.Templates {
		assert.Equal(t, Serializable, txn.IsolationLevel)
		assert.True(t, len(txn.Operations) >= 1 && len(txn.Operations) <= 10)
		for _, op := range txn.Operations {
			assert.Equal(t, OpRead, op.Type)
		}
	}
}

func TestMixedWorkloadDrawsBothTypes(t *testing.T) {
	g := &RandomGenerator{
		Txns:            200,
		MaxOps:          10,
		MaxKey:          50,
		ReadOnlyPercent: 0,
		Rand:            rand.New(rand.NewSource(1337)),
	}

	wl := g.Generate()
	reads, writes := 0, 0
	for _, txn := range wl.Templates {
		for _, op := range txn.Operations {
			switch op.Type {
			case OpRead:
				reads++
			case OpWrite:
				writes++
			default:
				t.Fatalf("unexpected operation type %s", op.Type)
			}
			assert.True(t, strings.HasPrefix(op.Key, "key_"))
			keyNum, err := strconv.Atoi(strings.TrimPrefix(op.Key, "key_"))
			assert.NoError(t, err)
			assert.True(t, keyNum >= 1 && keyNum <= 50)
		}
	}
	// With ~1000 uniform draws, both types show up
	assert.True(t, reads > 0)
	assert.True(t, writes > 0)
}

func TestTransactionNamesAreCompleteAfterShuffle(t *testing.T) {
	g := &RandomGenerator{
		Txns:            50,
		MaxOps:          5,
		MaxKey:          10,
		ReadOnlyPercent: 30,
		Rand:            rand.New(rand.NewSource(42)),
	}

	wl := g.Generate()
	assert.NoError(t, wl.Validate())

	names := make([]string, 0, len(wl.Templates))
	for _, txn := range wl.Templates {
		names = append(names, txn.Name)
	}
	sort.Strings(names)
	expected := make([]string, 0, 50)
	for i := 1; i <= 50; i++ {
		expected = append(expected, fmt.Sprintf("Txn_%d", i))
	}
	sort.Strings(expected)
	assert.Equal(t, expected, names)
}

func TestSameSeedSameWorkload(t *testing.T) {
	newGen := func() *RandomGenerator {
		return &RandomGenerator{
			Txns:            100,
			MaxOps:          8,
			MaxKey:          300,
			ReadOnlyPercent: 50,
			Rand:            rand.New(rand.NewSource(7)),
		}
	}

	assert.Equal(t, newGen().Generate(), newGen().Generate())
}

func TestRandomWorkloadFilename(t *testing.T) {
	assert.Equal(t, "workload_500t_10o_300k_50r_2.json", RandomWorkloadFilename(500, 10, 300, 50, 2))
	assert.Equal(t, "SmallBank_10000t_1000k_1.json", BenchWorkloadFilename("SmallBank", 10000, 1000, 1))
}
