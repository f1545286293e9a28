package analysis

import (
	"context"
	"errors"
	"testing"
)

type fakeGen struct {
	raw  string
	err  error
	reqs []Request
}

func (f *fakeGen) Name() string     { return "fake" }
func (f *fakeGen) GetModel() string { return "fake-1" }
func (f *fakeGen) Generate(_ context.Context, req Request) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.raw, f.err
}

func TestServiceScenarioA(t *testing.T) {
	gen := &fakeGen{raw: `{"workflowSummary":"s","steps":[{"title":"Start","description":"...","type":"start"}],"databaseSchema":[],"optimizationTips":[]}`}
	svc := NewService(NewBuilder(""), nil)

	res, err := svc.Analyze(context.Background(), gen, Input{Image: testPNG})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(res.Steps) != 1 || res.Steps[0] != (WorkflowStep{Title: "Start", Description: "...", Type: StepStart}) {
		t.Fatalf("steps = %+v", res.Steps)
	}
	if len(gen.reqs) != 1 {
		t.Fatalf("expected exactly one call, got %d", len(gen.reqs))
	}
}

func TestServiceWrapsTransportErrors(t *testing.T) {
	cause := errors.New("quota exceeded")
	svc := NewService(nil, nil)

	_, err := svc.Analyze(context.Background(), &fakeGen{err: cause}, Input{Image: testPNG})
	var te *TransportError
	if !errors.As(err, &te) || te.Engine != "fake" {
		t.Fatalf("expected TransportError from fake, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("TransportError must unwrap to the cause")
	}

	_, err = svc.Analyze(context.Background(), nil, Input{Image: testPNG})
	if !errors.As(err, &te) {
		t.Fatalf("nil engine: expected TransportError, got %v", err)
	}
}

func TestServiceNeverCallsWithoutImage(t *testing.T) {
	gen := &fakeGen{}
	_, err := NewService(nil, nil).Analyze(context.Background(), gen, Input{Instructions: "x"})
	var ie *InvalidInputError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if len(gen.reqs) != 0 {
		t.Fatal("generator must not be called")
	}
}

func TestServiceParseFailure(t *testing.T) {
	gen := &fakeGen{raw: `{"workflowSummary":"s","steps":[],"databaseSchema":[]}`}
	res, err := NewService(nil, nil).Analyze(context.Background(), gen, Input{Image: testPNG})
	var pe *ResultParseError
	if res != nil || !errors.As(err, &pe) || pe.Path != "optimizationTips" {
		t.Fatalf("want ResultParseError at optimizationTips, got %v / %v", res, err)
	}
}
