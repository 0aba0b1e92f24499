package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "github.com/yanqian/weather-copilot/pkg/errors"
	"github.com/yanqian/weather-copilot/pkg/metrics"
)

// AIParser is the pluggable natural-language parsing capability. It must be
// safe to call with a short deadline; the router treats a timeout exactly
// like a parser error.
type AIParser interface {
	ParseQuery(ctx context.Context, req Request) (AIResult, error)
}

// AIResult is the AI parser's envelope.
type AIResult struct {
	Parsed         ParsedQuery
	Model          string
	ProcessingTime time.Duration
	Usage          metrics.TokenUsage
}

// Config holds the immutable routing thresholds, injected at construction.
type Config struct {
	AIThreshold   float64
	MinConfidence float64
	AITimeout     time.Duration
	Timezone      *time.Location
}

// Router is the confidence gate: it reconciles the AI parse and the
// rule-based parse into one deterministic routing decision.
type Router struct {
	cfg      Config
	ai       AIParser
	fallback *RuleParser
	logger   *slog.Logger
	now      func() time.Time
}

// NewRouter constructs the router. The AI parser may be nil; routing then
// always takes the rule-based path.
func NewRouter(cfg Config, ai AIParser, fallback *RuleParser, logger *slog.Logger) *Router {
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = 5 * time.Second
	}
	return &Router{
		cfg:      cfg,
		ai:       ai,
		fallback: fallback,
		logger:   logger.With("component", "query.router"),
		now:      time.Now,
	}
}

// Route turns a raw request into one accepted interpretation or a
// PARSING_FAILED rejection. Low confidence is a result, not a fault; only
// validation failures and sub-threshold confidence surface as errors.
func (r *Router) Route(ctx context.Context, req Request) (RoutingResult, error) {
	if err := ValidateRequest(req); err != nil {
		return RoutingResult{}, err
	}
	start := r.now()

	result := r.interpret(ctx, req)
	result.ProcessingTime = r.now().Sub(start)

	sample := metrics.RoutingSample{
		Source:     string(result.Source),
		Confidence: result.Confidence,
		Latency:    result.ProcessingTime,
		Usage:      result.Usage,
	}

	if result.Confidence < r.cfg.MinConfidence {
		r.logger.Info("routing rejected", "sample", sample, "threshold", r.cfg.MinConfidence)
		return RoutingResult{}, apperrors.Wrap(apperrors.CodeParsingFailed,
			"the query could not be understood with enough confidence", nil)
	}

	sample.Accepted = true
	r.logger.Info("routing accepted",
		"sample", sample,
		"intent", result.Parsed.Intent.Primary)
	return result, nil
}

func (r *Router) interpret(ctx context.Context, req Request) RoutingResult {
	if r.ai == nil {
		return r.ruleBased(req)
	}

	aiRes, err := r.parseWithDeadline(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			r.logger.Warn("ai parser timed out, falling back", "timeout", r.cfg.AITimeout)
		} else {
			r.logger.Warn("ai parser failed, falling back", "error", err)
		}
		return r.ruleBased(req)
	}

	aiParsed := aiRes.Parsed.Normalize()
	if aiParsed.Confidence >= r.cfg.AIThreshold {
		return RoutingResult{
			Parsed:     aiParsed,
			Source:     SourceAI,
			Confidence: aiParsed.Confidence,
			Model:      aiRes.Model,
			Usage:      aiRes.Usage,
		}
	}

	// Low-confidence AI parse: let the deterministic path compete.
	fbParsed := r.fallback.Parse(req.Query, req.Context)
	if fbParsed.Confidence >= aiParsed.Confidence {
		merged := merge(aiParsed, fbParsed)
		return RoutingResult{
			Parsed:     merged,
			Source:     SourceHybrid,
			Confidence: merged.Confidence,
			Model:      aiRes.Model,
			Usage:      aiRes.Usage,
		}
	}

	// Low-confidence passthrough, never silently upgraded.
	return RoutingResult{
		Parsed:     aiParsed,
		Source:     SourceAI,
		Confidence: aiParsed.Confidence,
		Model:      aiRes.Model,
		Usage:      aiRes.Usage,
	}
}

// parseWithDeadline bounds the AI call even when the parser ignores its
// context: once the deadline fires the router stops waiting and proceeds,
// leaving the stray call to finish on its own goroutine.
func (r *Router) parseWithDeadline(ctx context.Context, req Request) (AIResult, error) {
	aiCtx, cancel := context.WithTimeout(ctx, r.cfg.AITimeout)
	defer cancel()

	type outcome struct {
		res AIResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := r.ai.ParseQuery(aiCtx, req)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-aiCtx.Done():
		return AIResult{}, aiCtx.Err()
	}
}

func (r *Router) ruleBased(req Request) RoutingResult {
	parsed := r.fallback.Parse(req.Query, req.Context)
	return RoutingResult{
		Parsed:     parsed,
		Source:     SourceRuleBased,
		Confidence: parsed.Confidence,
	}
}

// merge combines a weak AI parse with a rule-based parse: AI location and
// intent win when present and non-empty, the higher confidence wins.
func merge(ai, fb ParsedQuery) ParsedQuery {
	out := ai
	if ai.Location.Empty() {
		out.Location = fb.Location
	}
	if !ai.Intent.Primary.Valid() {
		out.Intent = fb.Intent
	}
	if len(ai.Metrics) == 0 {
		out.Metrics = fb.Metrics
	}
	if fb.TimeScope.Confidence > ai.TimeScope.Confidence {
		out.TimeScope = fb.TimeScope
	}
	if out.Preferences == (Preferences{}) {
		out.Preferences = fb.Preferences
	}
	out.Confidence = ai.Confidence
	if fb.Confidence > out.Confidence {
		out.Confidence = fb.Confidence
	}
	return out.Normalize()
}
