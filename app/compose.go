// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/fieldbase/fieldbase/adapters/metrics"
	"github.com/fieldbase/fieldbase/domain/access"
	"github.com/fieldbase/fieldbase/domain/composition"
	"github.com/fieldbase/fieldbase/domain/schema"
	"github.com/fieldbase/fieldbase/ports"
	"github.com/rs/zerolog"
)

// Metadata accompanies every successful execution.
type Metadata struct {
	Count         int       `json:"count"`
	CompositionID string    `json:"compositionId"`
	ExecutedAt    time.Time `json:"executedAt"`
}

// ErrorInfo is the error half of the public response envelope.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ExecuteResult is the outcome of one public execution request: either rows
// plus metadata, or an error with its HTTP status.
type ExecuteResult struct {
	Status   int
	Data     []map[string]any
	Metadata *Metadata
	Error    *ErrorInfo
}

// PreviewResult is the body of a preview response. Preview always answers
// HTTP 200; success and failure are discriminated here so the caller's UI
// can attribute a failure to a config field.
type PreviewResult struct {
	Success  bool             `json:"success"`
	Data     []map[string]any `json:"data,omitempty"`
	Metadata *Metadata        `json:"metadata,omitempty"`
	Error    *PreviewError    `json:"error,omitempty"`
}

// PreviewError carries a human-readable message and, when the failure maps
// to a config clause, its path.
type PreviewError struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ComposeService runs the composition pipeline: access gate, compile, bind,
// execute, shape. It holds no per-request state; all steps within a request
// run sequentially, requests run independently.
type ComposeService struct {
	workspaces   ports.WorkspaceStore
	compositions ports.CompositionStore
	registry     ports.SchemaRegistry
	executor     ports.QueryExecutor
	clock        ports.Clock
	logger       zerolog.Logger
	metrics      *metrics.Collector
	maxLimit     atomic.Int64
}

// ComposeConfig tunes the service.
type ComposeConfig struct {
	// MaxLimit caps result rows server-side. Zero means the compiler default.
	MaxLimit int
}

// NewComposeService creates the composition execution service.
func NewComposeService(
	workspaces ports.WorkspaceStore,
	compositions ports.CompositionStore,
	registry ports.SchemaRegistry,
	executor ports.QueryExecutor,
	clock ports.Clock,
	logger zerolog.Logger,
	cfg ComposeConfig,
) *ComposeService {
	s := &ComposeService{
		workspaces:   workspaces,
		compositions: compositions,
		registry:     registry,
		executor:     executor,
		clock:        clock,
		logger:       logger.With().Str("service", "compose").Logger(),
	}
	s.maxLimit.Store(int64(cfg.MaxLimit))
	return s
}

// SetMetrics attaches a metrics collector.
func (s *ComposeService) SetMetrics(m *metrics.Collector) {
	s.metrics = m
}

// SetMaxLimit updates the server-side row cap. Safe to call while requests
// are in flight; in-flight compiles keep the cap they started with.
func (s *ComposeService) SetMaxLimit(limit int) {
	s.maxLimit.Store(int64(limit))
}

// Execute handles the public path /c/{workspaceSlug}/{compositionSlug}.
// authenticated reports whether the caller presented a valid session.
func (s *ComposeService) Execute(ctx context.Context, workspaceSlug, compositionSlug string, params map[string]any, authenticated bool) ExecuteResult {
	started := s.clock.Now()

	ws, comp, found, err := s.resolve(ctx, workspaceSlug, compositionSlug)
	if err != nil {
		s.logger.Error().Err(err).Str("workspace", workspaceSlug).Msg("composition lookup failed")
		return s.finish(workspaceSlug, compositionSlug, started, internalError())
	}

	level := access.Level(comp.AccessLevel)
	decision := access.Check(level, authenticated, found, found && ws.Active && comp.Active)
	if !decision.Allowed {
		if s.metrics != nil {
			s.metrics.AccessDenials.WithLabelValues(decision.Reason).Inc()
		}
		return s.finish(workspaceSlug, compositionSlug, started, gateResult(decision))
	}

	plan, err := composition.Compile(ctx, comp.Config, ws.ID, s.registry, composition.CompileOptions{MaxLimit: int(s.maxLimit.Load())})
	if err != nil {
		return s.finish(workspaceSlug, compositionSlug, started, s.compileFailure(comp.Slug, err))
	}

	execResult, err := s.executor.Execute(ctx, plan, params)
	if err != nil {
		return s.finish(workspaceSlug, compositionSlug, started, s.executionFailure(comp.Slug, err))
	}

	return s.finish(workspaceSlug, compositionSlug, started, ExecuteResult{
		Status: 200,
		Data:   execResult.Rows,
		Metadata: &Metadata{
			Count:         execResult.Count,
			CompositionID: comp.ID,
			ExecutedAt:    s.clock.Now().UTC(),
		},
	})
}

// Preview compiles and executes an unsaved config. Access control is the
// caller's concern (an authenticated workspace member); failures come back
// as a structured body, never as an HTTP error.
func (s *ComposeService) Preview(ctx context.Context, workspaceID string, cfg composition.Config, params map[string]any) PreviewResult {
	plan, err := composition.Compile(ctx, cfg, workspaceID, s.registry, composition.CompileOptions{MaxLimit: int(s.maxLimit.Load())})
	if err != nil {
		var compileErrs composition.CompileErrors
		if errors.As(err, &compileErrs) {
			if s.metrics != nil {
				s.metrics.CompileFailures.Inc()
			}
			return PreviewResult{Success: false, Error: &PreviewError{
				Message: compileErrs[0].Message,
				Field:   compileErrs[0].Path,
			}}
		}
		s.logger.Error().Err(err).Str("workspace", workspaceID).Msg("preview compilation failed")
		return PreviewResult{Success: false, Error: &PreviewError{Message: "internal error"}}
	}

	execResult, err := s.executor.Execute(ctx, plan, params)
	if err != nil {
		var paramErr *composition.ParamError
		switch {
		case errors.As(err, &paramErr):
			return PreviewResult{Success: false, Error: &PreviewError{
				Message: paramErr.Message,
				Field:   paramErr.Param,
			}}
		case errors.Is(err, composition.ErrWorkspaceMismatch):
			return PreviewResult{Success: false, Error: &PreviewError{Message: "composition references another workspace"}}
		default:
			s.logger.Error().Err(err).Str("workspace", workspaceID).Msg("preview execution failed")
			return PreviewResult{Success: false, Error: &PreviewError{Message: "internal error"}}
		}
	}

	return PreviewResult{
		Success: true,
		Data:    execResult.Rows,
		Metadata: &Metadata{
			Count:      execResult.Count,
			ExecutedAt: s.clock.Now().UTC(),
		},
	}
}

// resolve loads the workspace and composition. found reports whether both
// exist; store errors other than not-found bubble up.
func (s *ComposeService) resolve(ctx context.Context, workspaceSlug, compositionSlug string) (schema.Workspace, composition.Composition, bool, error) {
	ws, err := s.workspaces.GetBySlug(ctx, workspaceSlug)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return schema.Workspace{}, composition.Composition{}, false, nil
		}
		return schema.Workspace{}, composition.Composition{}, false, err
	}

	comp, err := s.compositions.GetBySlug(ctx, ws.ID, compositionSlug)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return ws, composition.Composition{}, false, nil
		}
		return ws, composition.Composition{}, false, err
	}
	return ws, comp, true, nil
}

// finish records metrics and returns the result unchanged.
func (s *ComposeService) finish(workspaceSlug, compositionSlug string, started time.Time, result ExecuteResult) ExecuteResult {
	if s.metrics != nil {
		s.metrics.ExecutionsTotal.
			WithLabelValues(workspaceSlug, compositionSlug, strconv.Itoa(result.Status)).Inc()
		s.metrics.ExecutionDuration.
			WithLabelValues(workspaceSlug, compositionSlug).
			Observe(s.clock.Now().Sub(started).Seconds())
	}
	return result
}

func (s *ComposeService) compileFailure(slug string, err error) ExecuteResult {
	var compileErrs composition.CompileErrors
	if errors.As(err, &compileErrs) {
		if s.metrics != nil {
			s.metrics.CompileFailures.Inc()
		}
		s.logger.Debug().Str("composition", slug).Int("errors", len(compileErrs)).Msg("config failed compilation")
		return ExecuteResult{Status: 400, Error: &ErrorInfo{
			Code:    "compile_error",
			Message: "composition config failed compilation",
			Details: compileErrs,
		}}
	}
	s.logger.Error().Err(err).Str("composition", slug).Msg("schema resolution failed")
	return internalError()
}

func (s *ComposeService) executionFailure(slug string, err error) ExecuteResult {
	var paramErr *composition.ParamError
	switch {
	case errors.As(err, &paramErr):
		return ExecuteResult{Status: 400, Error: &ErrorInfo{
			Code:    "missing_param",
			Message: paramErr.Message,
			Details: map[string]string{"param": paramErr.Param},
		}}
	case errors.Is(err, composition.ErrWorkspaceMismatch):
		// Indistinguishable from a missing composition on purpose.
		return ExecuteResult{Status: 404, Error: &ErrorInfo{Code: "not_found", Message: "composition not found"}}
	default:
		s.logger.Error().Err(err).Str("composition", slug).Msg("execution failed")
		return internalError()
	}
}

func gateResult(d access.Decision) ExecuteResult {
	switch d.Status {
	case 401:
		return ExecuteResult{Status: 401, Error: &ErrorInfo{Code: "unauthorized", Message: "authentication required"}}
	case 403:
		return ExecuteResult{Status: 403, Error: &ErrorInfo{Code: "forbidden", Message: "composition is private"}}
	default:
		return ExecuteResult{Status: 404, Error: &ErrorInfo{Code: "not_found", Message: "composition not found"}}
	}
}

func internalError() ExecuteResult {
	return ExecuteResult{Status: 500, Error: &ErrorInfo{Code: "internal_error", Message: "internal error"}}
}
