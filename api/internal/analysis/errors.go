package analysis

import "fmt"

// InvalidInputError means a required input is missing or unusable before a
// request is built. Call sites are expected to prevent it.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %s: %s", e.Field, e.Reason)
}

// TransportError means the inference call itself failed (network, auth, quota).
type TransportError struct {
	Engine string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: generate: %v", e.Engine, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResultParseError means the response does not decode into AnalysisResult.
// Path is the JSON path of the offending value, empty for the whole payload.
type ResultParseError struct {
	Path string
	Err  error
}

func (e *ResultParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse analysis result: %v", e.Err)
	}
	return fmt.Sprintf("parse analysis result: %s: %v", e.Path, e.Err)
}

func (e *ResultParseError) Unwrap() error { return e.Err }
