package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"workflow-architect/api/internal/logger"
)

// Generator is the one external capability: send a request to a hosted
// model, get back the raw structured text.
type Generator interface {
	Name() string
	GetModel() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Service runs Build → Generate → Decode once per call. No retries.
type Service struct {
	builder *Builder
	log     *logger.Logger
}

func NewService(b *Builder, log *logger.Logger) *Service {
	if b == nil {
		b = NewBuilder("")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Service{builder: b, log: log}
}

func (s *Service) Analyze(ctx context.Context, gen Generator, in Input) (*AnalysisResult, error) {
	reqID := uuid.NewString()
	log := s.log.With("request_id", reqID, "refinement", in.IsRefinement)

	req, err := s.builder.Build(in)
	if err != nil {
		log.Error("build request", "error", err)
		return nil, err
	}
	if gen == nil {
		err := &TransportError{Engine: "none", Err: errors.New("no engine configured")}
		log.Error("generate", "error", err)
		return nil, err
	}
	log = log.With("engine", gen.Name(), "model", gen.GetModel(), "parts", len(req.Parts))

	started := time.Now()
	raw, err := gen.Generate(ctx, req)
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Engine: gen.Name(), Err: err}
		}
		log.Error("generate", "error", err, "elapsed", time.Since(started))
		return nil, err
	}

	res, err := Decode(raw)
	if err != nil {
		log.Error("decode response", "error", err, "raw_len", len(raw))
		log.Debug("raw response", "raw", raw)
		return nil, err
	}

	log.Info("analysis done",
		"elapsed", time.Since(started),
		"steps", len(res.Steps),
		"tables", len(res.DatabaseSchema),
	)
	return res, nil
}
