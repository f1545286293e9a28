package analysis

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

var testPNG = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D}

func TestBuildRequiresImage(t *testing.T) {
	b := NewBuilder("")
	_, err := b.Build(Input{Instructions: "x"})
	var ie *InvalidInputError
	if !errors.As(err, &ie) || ie.Field != "image" {
		t.Fatalf("expected InvalidInputError for image, got %v", err)
	}
}

func TestBuildRejectsBadInputs(t *testing.T) {
	b := NewBuilder("")
	tests := []struct {
		name string
		in   Input
	}{
		{"pdf as primary", Input{Image: []byte("%PDF-1.4 ...")}},
		{"explicit non-image mime", Input{Image: testPNG, ImageMIME: "application/zip"}},
		{"empty reference", Input{Image: testPNG, Reference: &ReferenceFile{MIMEType: "application/pdf"}}},
		{"zip reference", Input{Image: testPNG, Reference: &ReferenceFile{Data: []byte{1}, MIMEType: "application/zip"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(tt.in)
			var ie *InvalidInputError
			if !errors.As(err, &ie) {
				t.Fatalf("expected InvalidInputError, got %v", err)
			}
		})
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	b := NewBuilder("")
	in := Input{
		Image:        testPNG,
		Instructions: "Thêm trường fStatus",
		IsRefinement: true,
		Reference:    &ReferenceFile{Data: []byte("ghi chú"), MIMEType: "text/plain", Name: "notes.txt"},
	}
	first, err := b.Build(in)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := b.Build(in)
		if err != nil {
			t.Fatal(err)
		}
		if again.Prompt != first.Prompt {
			t.Fatalf("prompt differs on run %d", i)
		}
		if !reflect.DeepEqual(again.Parts, first.Parts) {
			t.Fatalf("parts differ on run %d", i)
		}
	}
}

func TestNamingClauseAlwaysPresent(t *testing.T) {
	b := NewBuilder("")
	ref := &ReferenceFile{Data: testPNG, MIMEType: "image/png"}
	inputs := []Input{
		{Image: testPNG},
		{Image: testPNG, Instructions: "   "},
		{Image: testPNG, Instructions: "Chỉ tập trung vào quy trình thanh toán"},
		{Image: testPNG, Instructions: "Tách bảng lịch sử thầu", IsRefinement: true},
		{Image: testPNG, IsRefinement: true, Reference: ref},
	}
	for i, in := range inputs {
		req, err := b.Build(in)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if !strings.Contains(req.Prompt, NamingClause) {
			t.Fatalf("case %d: naming clause missing", i)
		}
		if strings.Count(req.Prompt, NamingClause) != 1 {
			t.Fatalf("case %d: naming clause repeated", i)
		}
		if got := req.Parts[1].Text; got != req.Prompt {
			t.Fatalf("case %d: text part is not the prompt", i)
		}
	}
}

func TestReferenceFollowsImage(t *testing.T) {
	b := NewBuilder("")
	ref := &ReferenceFile{Data: []byte("%PDF-1.7 body"), MIMEType: "application/pdf", Name: "hoso.pdf"}
	req, err := b.Build(Input{Image: testPNG, Instructions: "bổ sung", IsRefinement: true, Reference: ref})
	if err != nil {
		t.Fatal(err)
	}
	if len(req.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(req.Parts))
	}
	if req.Parts[0].MIMEType != "image/png" || !reflect.DeepEqual(req.Parts[0].Data, testPNG) {
		t.Fatalf("first part must be the primary image: %+v", req.Parts[0])
	}
	if !req.Parts[1].IsText() {
		t.Fatal("second part must be the prompt")
	}
	if req.Parts[2].MIMEType != "application/pdf" {
		t.Fatalf("last part must be the reference, got %q", req.Parts[2].MIMEType)
	}
	if !strings.Contains(req.Prompt, referenceClause) {
		t.Fatal("reference clause missing")
	}
}

func TestInitialAnalysisPrompt(t *testing.T) {
	b := NewBuilder("")
	req, err := b.Build(Input{Image: testPNG})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(req.Prompt, "Summarize the business workflow described.") {
		t.Fatal("base task text missing")
	}
	if !strings.Contains(req.Prompt, DefaultDomain) {
		t.Fatal("domain missing")
	}
	if strings.Contains(req.Prompt, refinementHeader) || strings.Contains(req.Prompt, referenceClause) {
		t.Fatal("no refinement or reference clause expected")
	}
	if len(req.Parts) != 2 || req.IsRefinement {
		t.Fatalf("unexpected request: %d parts, refinement=%v", len(req.Parts), req.IsRefinement)
	}
	if req.Schema["type"] != "object" {
		t.Fatal("schema not attached")
	}
}

func TestRefinementClauseQuotesInstructions(t *testing.T) {
	b := NewBuilder("")
	req, err := b.Build(Input{Image: testPNG, Instructions: "Tách bảng lịch sử thầu", IsRefinement: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(req.Prompt, refinementHeader+"Tách bảng lịch sử thầu\n") {
		t.Fatalf("refinement clause does not quote the instructions:\n%s", req.Prompt)
	}
	if !strings.Contains(req.Prompt, "fields start with 'f'") {
		t.Fatal("refinement clause must re-assert the naming rule")
	}
	if len(req.Parts) != 2 {
		t.Fatalf("no reference attachment expected, got %d parts", len(req.Parts))
	}
}

func TestCustomDomain(t *testing.T) {
	b := NewBuilder("  Quản lý kho vật tư ")
	if !strings.Contains(b.Prompt("", false), `"Quản lý kho vật tư"`) {
		t.Fatal("custom domain not used")
	}
}

func TestResponseSchemaContract(t *testing.T) {
	s := ResponseSchema()
	req, _ := s["required"].([]any)
	want := []any{"workflowSummary", "steps", "databaseSchema", "optimizationTips"}
	if !reflect.DeepEqual(req, want) {
		t.Fatalf("top-level required = %v", req)
	}
	fields := s["properties"].(map[string]any)["databaseSchema"].(map[string]any)["items"].(map[string]any)["properties"].(map[string]any)["fields"].(map[string]any)["items"].(map[string]any)
	if got := len(fields["required"].([]any)); got != 5 {
		t.Fatalf("field item requires %d properties, want 5", got)
	}

	s["type"] = "mutated"
	if ResponseSchema()["type"] != "object" {
		t.Fatal("ResponseSchema must return a fresh copy")
	}
}
