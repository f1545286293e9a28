package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"workflow-architect/api/internal/analysis"
	"workflow-architect/api/internal/engine"
	"workflow-architect/api/internal/handle"
)

type echoGen struct{}

func (echoGen) Name() string     { return "fake" }
func (echoGen) GetModel() string { return "fake-1" }
func (echoGen) Generate(context.Context, analysis.Request) (string, error) {
	return `{"workflowSummary":"s","steps":[],"databaseSchema":[],"optimizationTips":[]}`, nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := handle.New(&engine.Engines{Gemini: echoGen{}}, analysis.NewService(nil, nil), "gemini", 1<<20, nil)
	srv := httptest.NewServer(NewRouter(h, nil))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthz(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestAnalyzeRoute(t *testing.T) {
	srv := newServer(t)
	body := `{"image":"iVBORw0KGgoAAAANSUhEUg=="}`
	resp, err := http.Post(srv.URL+"/v1/workflow/analyze", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/v1/workflow/analyze")
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", resp2.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newServer(t)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/v1/workflow/analyze", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q", got)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv, nil) }()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Serve = %v", err)
	}
}
