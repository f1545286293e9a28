package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"workflow-architect/api/internal/util"
)

var errMissing = errors.New("required field is missing")

// Wire shapes: pointers tell "absent or null" apart from zero values.
type (
	wireResult struct {
		WorkflowSummary  *string      `json:"workflowSummary"`
		Steps            *[]wireStep  `json:"steps"`
		DatabaseSchema   *[]wireTable `json:"databaseSchema"`
		OptimizationTips *[]*string   `json:"optimizationTips"`
	}
	wireStep struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Type        *string `json:"type"`
	}
	wireTable struct {
		TableName *string      `json:"tableName"`
		Fields    *[]wireField `json:"fields"`
		Reasoning *string      `json:"reasoning"`
	}
	wireField struct {
		Name         *string `json:"name"`
		Type         *string `json:"type"`
		IsPrimaryKey *bool   `json:"isPrimaryKey"`
		IsForeignKey *bool   `json:"isForeignKey"`
		Description  *string `json:"description"`
	}
)

// Decode validates raw model output against the AnalysisResult shape.
// Either the whole result is returned or a *ResultParseError; never both.
// Naming conventions are not checked here.
func Decode(raw string) (*AnalysisResult, error) {
	txt := util.StripCodeFences(raw)
	if txt == "" {
		return nil, &ResultParseError{Err: errors.New("empty response")}
	}

	var w wireResult
	if err := json.Unmarshal([]byte(txt), &w); err != nil {
		return nil, &ResultParseError{Path: jsonErrPath(err), Err: err}
	}

	if w.WorkflowSummary == nil {
		return nil, missing("workflowSummary")
	}
	if w.Steps == nil {
		return nil, missing("steps")
	}
	if w.DatabaseSchema == nil {
		return nil, missing("databaseSchema")
	}
	if w.OptimizationTips == nil {
		return nil, missing("optimizationTips")
	}

	out := &AnalysisResult{
		WorkflowSummary:  *w.WorkflowSummary,
		Steps:            make([]WorkflowStep, 0, len(*w.Steps)),
		DatabaseSchema:   make([]TableSuggestion, 0, len(*w.DatabaseSchema)),
		OptimizationTips: make([]string, 0, len(*w.OptimizationTips)),
	}

	for i, s := range *w.Steps {
		p := fmt.Sprintf("steps[%d]", i)
		switch {
		case s.Title == nil:
			return nil, missing(p + ".title")
		case s.Description == nil:
			return nil, missing(p + ".description")
		case s.Type == nil:
			return nil, missing(p + ".type")
		}
		out.Steps = append(out.Steps, WorkflowStep{
			Title:       *s.Title,
			Description: *s.Description,
			Type:        StepType(*s.Type),
		})
	}

	for i, t := range *w.DatabaseSchema {
		p := fmt.Sprintf("databaseSchema[%d]", i)
		switch {
		case t.TableName == nil:
			return nil, missing(p + ".tableName")
		case t.Fields == nil:
			return nil, missing(p + ".fields")
		case t.Reasoning == nil:
			return nil, missing(p + ".reasoning")
		}
		table := TableSuggestion{
			TableName: *t.TableName,
			Fields:    make([]TableField, 0, len(*t.Fields)),
			Reasoning: *t.Reasoning,
		}
		for j, f := range *t.Fields {
			fp := fmt.Sprintf("%s.fields[%d]", p, j)
			switch {
			case f.Name == nil:
				return nil, missing(fp + ".name")
			case f.Type == nil:
				return nil, missing(fp + ".type")
			case f.IsPrimaryKey == nil:
				return nil, missing(fp + ".isPrimaryKey")
			case f.IsForeignKey == nil:
				return nil, missing(fp + ".isForeignKey")
			case f.Description == nil:
				return nil, missing(fp + ".description")
			}
			table.Fields = append(table.Fields, TableField{
				Name:         *f.Name,
				Type:         *f.Type,
				IsPrimaryKey: *f.IsPrimaryKey,
				IsForeignKey: *f.IsForeignKey,
				Description:  *f.Description,
			})
		}
		out.DatabaseSchema = append(out.DatabaseSchema, table)
	}

	for i, tip := range *w.OptimizationTips {
		if tip == nil {
			return nil, missing(fmt.Sprintf("optimizationTips[%d]", i))
		}
		out.OptimizationTips = append(out.OptimizationTips, *tip)
	}

	return out, nil
}

func missing(path string) error {
	return &ResultParseError{Path: path, Err: errMissing}
}

func jsonErrPath(err error) string {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		return strings.TrimPrefix(te.Field, ".")
	}
	return ""
}
