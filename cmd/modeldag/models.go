package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/untoldecay/modeldag/internal/model"
	"github.com/untoldecay/modeldag/internal/modelerr"
)

// modelFile is the on-disk JSON shape of the proposed model set a plan is
// built from. The core has no SQL dialect parser of its own (non-goal,
// per spec §1), so the CLI takes already-rendered SQL and a declared
// kind rather than parsing model definitions itself.
type modelFile struct {
	Models []modelDTO `json:"models"`
}

type modelDTO struct {
	Name        string       `json:"name"`
	SQL         string       `json:"sql"`
	Kind        string       `json:"kind"` // FULL | INCREMENTAL_BY_TIME | VIEW | EMBEDDED | SEED
	TimeColumn  string       `json:"time_column,omitempty"`
	Cron        string       `json:"cron,omitempty"`
	LookbackNo  int          `json:"lookback,omitempty"`
	Schema      []columnDTO  `json:"schema,omitempty"`
	Parents     []string     `json:"parents,omitempty"`
	Owner       string       `json:"owner,omitempty"`
	Description string       `json:"description,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Audits      []string     `json:"audits,omitempty"`
	StartDate   *int64       `json:"start_date,omitempty"`
	ForwardOnly bool         `json:"forward_only,omitempty"`
	StoragePart string       `json:"storage_part,omitempty"`
}

type columnDTO struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func loadModels(path string) ([]model.Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, modelerr.ConfigError("read models file %q: %v", path, err)
	}
	var file modelFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, modelerr.ConfigError("parse models file %q: %v", path, err)
	}
	out := make([]model.Model, 0, len(file.Models))
	for _, d := range file.Models {
		kind, err := kindFromDTO(d)
		if err != nil {
			return nil, modelerr.ConfigError("model %q: %v", d.Name, err)
		}
		schema := make([]model.ColumnDef, 0, len(d.Schema))
		for _, c := range d.Schema {
			schema = append(schema, model.ColumnDef{Name: c.Name, Type: c.Type})
		}
		out = append(out, model.Model{
			Name:        d.Name,
			RenderedSQL: d.SQL,
			Schema:      schema,
			Kind:        kind,
			Parents:     d.Parents,
			Metadata: model.Metadata{
				Owner:       d.Owner,
				Description: d.Description,
				Tags:        d.Tags,
				Audits:      d.Audits,
			},
			StartDate:   d.StartDate,
			ForwardOnly: d.ForwardOnly,
			StoragePart: d.StoragePart,
		})
	}
	return out, nil
}

func kindFromDTO(d modelDTO) (model.Kind, error) {
	switch d.Kind {
	case "", "FULL":
		return model.Full{}, nil
	case "INCREMENTAL_BY_TIME":
		if d.TimeColumn == "" || d.Cron == "" {
			return nil, fmt.Errorf("incremental_by_time requires time_column and cron")
		}
		return model.IncrementalByTime{TimeColumn: d.TimeColumn, CronExpr: d.Cron, LookbackNo: d.LookbackNo}, nil
	case "VIEW":
		return model.View{}, nil
	case "EMBEDDED":
		return model.Embedded{}, nil
	case "SEED":
		return model.Seed{}, nil
	default:
		return nil, fmt.Errorf("unrecognized kind %q", d.Kind)
	}
}
