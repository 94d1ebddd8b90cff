package docfill

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Strategy converts a DOCX document to PDF.
type Strategy interface {
	Name() string
	Render(ctx context.Context, docx []byte) ([]byte, error)
}

// Rendition is a successful conversion.
type Rendition struct {
	Bytes    []byte
	Strategy string
}

// Renderer tries its strategies in order and returns the first success.
type Renderer struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewRenderer creates a renderer over the given strategies.
func NewRenderer(logger *zap.Logger, strategies ...Strategy) *Renderer {
	if logger == nil {
		logger = GetLogger()
	}
	return &Renderer{strategies: strategies, logger: logger}
}

// NewRendererFromConfig builds the office suite strategy followed, when
// enabled, by the in-process PDF writer. The writer only runs after the
// office suite was found and failed.
func NewRendererFromConfig(cfg RenderConfig, logger *zap.Logger) *Renderer {
	strategies := []Strategy{
		&SofficeStrategy{Candidates: cfg.Candidates, Timeout: cfg.Timeout},
	}
	if cfg.Fallback {
		strategies = append(strategies, &PDFFallback{
			FontPath:       cfg.FallbackFont,
			FontCandidates: DefaultFallbackFonts,
			Logger:         logger,
		})
	}
	return NewRenderer(logger, strategies...)
}

// Strategies returns the names of the configured strategies in order.
func (r *Renderer) Strategies() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// Render converts docx to PDF. Strategies run in order until one succeeds
// or one reports KindRendererUnavailable, which ends the chain. When no
// strategy succeeds the returned *RenderError carries the kind of the first
// failure and all failures as its cause.
func (r *Renderer) Render(ctx context.Context, docx []byte) (*Rendition, error) {
	if len(r.strategies) == 0 {
		return nil, &RenderError{Kind: KindRendererUnavailable}
	}

	errs := NewMultiError()
	kind := Kind("")
	for _, s := range r.strategies {
		start := time.Now()
		out, err := s.Render(ctx, docx)
		if err == nil {
			r.logger.Debug("rendered portable format",
				zap.String("strategy", s.Name()),
				zap.Int("bytes", len(out)),
				zap.Duration("duration", time.Since(start)))
			return &Rendition{Bytes: out, Strategy: s.Name()}, nil
		}

		r.logger.Warn("render strategy failed",
			zap.String("strategy", s.Name()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		errs.Add(err)
		if kind == "" {
			kind = renderKind(err)
		}
		// Unavailable ends the chain
		if ctx.Err() != nil || renderKind(err) == KindRendererUnavailable {
			break
		}
	}

	if errs.Len() == 1 && IsRenderError(errs.Err()) {
		return nil, errs.Err()
	}
	return nil, &RenderError{Kind: kind, Cause: errs.Err()}
}

func renderKind(err error) Kind {
	switch k := KindOf(err); k {
	case KindRendererUnavailable, KindRenderTimeout, KindRenderFailed:
		return k
	}
	return KindRenderFailed
}
