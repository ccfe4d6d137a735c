package allocbench

import (
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
)

type OpType string

const (
	OpRead  OpType = "READ"
	OpWrite OpType = "WRITE"
	// OpUpdate is only legal inside benchmark templates; instantiation expands
	// it into a READ followed by a WRITE on the same key.
	OpUpdate OpType = "UPDATE"
)

type IsolationLevel string

const (
	Serializable              IsolationLevel = "SERIALIZABLE"
	SnapshotIsolation         IsolationLevel = "SNAPSHOT_ISOLATION"
	ParallelSnapshotIsolation IsolationLevel = "PARALLEL_SNAPSHOT_ISOLATION"
	PrefixConsistency         IsolationLevel = "PREFIX_CONSISTENCY"
	CausalConsistency         IsolationLevel = "CAUSAL_CONSISTENCY"
	ReadAtomic                IsolationLevel = "READ_ATOMIC"
)

type Operation struct {
	ID   int    `json:"id"`
	Type OpType `json:"type"`
	Key  string `json:"key"`
}

type Transaction struct {
	Name           string         `json:"name"`
	IsolationLevel IsolationLevel `json:"isolationLevel"`
	Operations     []Operation    `json:"operations"`
}

// Workload is an ordered set of concrete transactions. The JSON field is named
// "templates" for compatibility with the allocation engine's wire format, even
// though it holds instantiated transactions rather than template definitions.
type Workload struct {
	Templates []Transaction `json:"templates"`
}

// Validate checks the invariants a generator must uphold: transaction names
// are unique within the workload, and any operation id used twice within a
// transaction is exactly one READ followed by one WRITE on the same key.
func (w *Workload) Validate() error {
	seen := make(map[string]bool, len(w.Templates))
	for _, txn := range w.Templates {
		if seen[txn.Name] {
			return fmt.Errorf("duplicate transaction name '%s'", txn.Name)
		}
		seen[txn.Name] = true
		if err := validateOperations(txn); err != nil {
			return err
		}
	}
	return nil
}

func validateOperations(txn Transaction) error {
	byID := make(map[int][]Operation)
	for _, op := range txn.Operations {
		if op.Type != OpRead && op.Type != OpWrite {
			return fmt.Errorf("transaction '%s': operation %d has type %s, only READ and WRITE may appear in a workload", txn.Name, op.ID, op.Type)
		}
		byID[op.ID] = append(byID[op.ID], op)
	}
	for id, ops := range byID {
		switch len(ops) {
		case 1:
		case 2:
			if ops[0].Type != OpRead || ops[1].Type != OpWrite {
				return fmt.Errorf("transaction '%s': operation id %d used twice must be a READ followed by a WRITE", txn.Name, id)
			}
			if ops[0].Key != ops[1].Key {
				return fmt.Errorf("transaction '%s': operation id %d read/write pair touches different keys '%s' and '%s'", txn.Name, id, ops[0].Key, ops[1].Key)
			}
		default:
			return fmt.Errorf("transaction '%s': operation id %d appears %d times", txn.Name, id, len(ops))
		}
	}
	return nil
}

// WriteWorkload persists a workload as indented JSON. Workload files are
// immutable once written; callers create a new file per generation case.
func WriteWorkload(path string, w *Workload) error {
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to encode workload for %s", path)
	}
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write workload file %s", path)
	}
	return nil
}

func ReadWorkload(path string) (*Workload, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read workload file %s", path)
	}
	w := &Workload{}
	if err := json.Unmarshal(data, w); err != nil {
		return nil, errors.Wrapf(err, "failed to parse workload file %s", path)
	}
	return w, nil
}
