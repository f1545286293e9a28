package analysis

import "strings"

// StepType is the kind of a workflow step. Carried as a free string: the model may
// return values outside the four known ones.
type StepType string

const (
	StepStart    StepType = "start"
	StepProcess  StepType = "process"
	StepDecision StepType = "decision"
	StepEnd      StepType = "end"
)

// Known reports whether t is one of start | process | decision | end.
func (t StepType) Known() bool {
	switch StepType(strings.ToLower(strings.TrimSpace(string(t)))) {
	case StepStart, StepProcess, StepDecision, StepEnd:
		return true
	}
	return false
}

type WorkflowStep struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        StepType `json:"type"`
}

type TableField struct {
	Name         string `json:"name"`
	Type         string `json:"type"` // free-form, e.g. VARCHAR(50)
	IsPrimaryKey bool   `json:"isPrimaryKey"`
	IsForeignKey bool   `json:"isForeignKey"`
	Description  string `json:"description"`
}

type TableSuggestion struct {
	TableName string       `json:"tableName"`
	Fields    []TableField `json:"fields"`
	Reasoning string       `json:"reasoning"`
}

// AnalysisResult is produced wholesale by one inference call and replaced
// wholesale by the next one.
type AnalysisResult struct {
	WorkflowSummary  string            `json:"workflowSummary"`
	Steps            []WorkflowStep    `json:"steps"`
	DatabaseSchema   []TableSuggestion `json:"databaseSchema"`
	OptimizationTips []string          `json:"optimizationTips"`
}

// ReferenceFile is an optional attachment for a refinement request.
type ReferenceFile struct {
	Data     []byte
	MIMEType string
	Name     string
}

// Input is everything the Request Builder needs for one request.
type Input struct {
	Image        []byte
	ImageMIME    string // optional, sniffed from Image when empty
	Instructions string
	IsRefinement bool
	Reference    *ReferenceFile
}
