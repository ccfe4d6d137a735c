package allocbench

import (
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
)

// ParamRef names the declared parameters an abstract operation's key is
// resolved from. A template operation may reference no parameter, a single
// one, or an ordered list whose resolved values are joined into one key.
// Both JSON shapes ("N1" and ["N1", "N2"]) are resolved here, once, at parse
// time.
type ParamRef struct {
	Names []string
}

func (p *ParamRef) Empty() bool {
	return len(p.Names) == 0
}

func (p *ParamRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		p.Names = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		p.Names = many
		return nil
	}
	return fmt.Errorf("operation params must be a string or a list of strings, got %s", string(data))
}

func (p ParamRef) MarshalJSON() ([]byte, error) {
	switch len(p.Names) {
	case 0:
		return []byte("null"), nil
	case 1:
		return json.Marshal(p.Names[0])
	default:
		return json.Marshal(p.Names)
	}
}

// TemplateOp is an abstract operation; Key holds the table name the concrete
// key is derived from.
type TemplateOp struct {
	ID     int      `json:"id"`
	Type   OpType   `json:"type"`
	Key    string   `json:"key"`
	Params ParamRef `json:"params,omitempty"`
}

type TxnTemplate struct {
	Name           string         `json:"name"`
	IsolationLevel IsolationLevel `json:"isolationLevel"`
	// Share of the total transaction budget this template is instantiated at.
	// Percentages across templates need not sum to 1; each is applied
	// independently and rounded up to at least one instance.
	Percentage float64      `json:"percentage"`
	Params     []string     `json:"params"`
	Operations []TemplateOp `json:"operations"`
}

type TemplateSet struct {
	Templates []TxnTemplate `json:"templates"`
}

func ReadTemplateSet(path string) (*TemplateSet, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read benchmark template file %s", path)
	}
	set := &TemplateSet{}
	if err := json.Unmarshal(data, set); err != nil {
		return nil, errors.Wrapf(err, "failed to parse benchmark template file %s", path)
	}
	for i := range set.Templates {
		if set.Templates[i].IsolationLevel == "" {
			set.Templates[i].IsolationLevel = Serializable
		}
	}
	return set, nil
}
