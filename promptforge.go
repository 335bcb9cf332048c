// Package promptforge turns a raw natural-language request into a structured,
// machine-checkable prompt program, searches for a higher-quality variant of
// that program with a bounded feedback loop, validates and self-repairs the
// result, and renders it. A content-addressed cache wraps the whole pipeline.
package promptforge

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/promptforge/promptforge/cache"
	"github.com/promptforge/promptforge/compiler"
	"github.com/promptforge/promptforge/config"
	"github.com/promptforge/promptforge/constraint"
	"github.com/promptforge/promptforge/gateway"
	"github.com/promptforge/promptforge/internal/logging"
	"github.com/promptforge/promptforge/optimizer"
	"github.com/promptforge/promptforge/retrieval"
	"github.com/promptforge/promptforge/router"
)

var validate = validator.New()

// Engine is the compiled pipeline: Router -> Compiler -> Optimizer ->
// Validator, with the cache at the entry point. One Engine serves concurrent
// requests; each Process call snapshots its tunables at entry.
type Engine struct {
	cfg       *config.Config
	gw        gateway.Gateway
	router    *router.Router
	compiler  *compiler.Compiler
	optimizer *optimizer.Optimizer
	validator *constraint.Validator
	store     cache.Store
	logger    logging.Logger

	pool      *retrieval.Pool
	embedder  retrieval.Embedder
	sentiment router.Sentiment
}

// Option configures an Engine during construction.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithLogger replaces the default zap-backed logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCacheStore replaces the cache backend.
func WithCacheStore(store cache.Store) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithExamplePool seeds the retrieval pool.
func WithExamplePool(pool *retrieval.Pool) Option {
	return func(e *Engine) {
		e.pool = pool
	}
}

// WithEmbedder replaces the retrieval embedder.
func WithEmbedder(embedder retrieval.Embedder) Option {
	return func(e *Engine) {
		e.embedder = embedder
	}
}

// WithSentiment replaces the router's semantic fallback.
func WithSentiment(s router.Sentiment) Option {
	return func(e *Engine) {
		e.sentiment = s
	}
}

// New builds an Engine around the given gateway.
func New(gw gateway.Gateway, opts ...Option) (*Engine, error) {
	e := &Engine{gw: gw}
	for _, opt := range opts {
		opt(e)
	}

	if e.cfg == nil {
		e.cfg = config.NewConfig()
	}
	if e.logger == nil {
		e.logger = logging.NewLogger(e.cfg.LogLevel)
	}
	if e.store == nil {
		if e.cfg.CachePath != "" {
			store, err := cache.NewSQLiteStore(e.cfg.CachePath)
			if err != nil {
				return nil, err
			}
			e.store = store
		} else {
			e.store = cache.NewMemoryStore()
		}
	}
	if e.pool == nil {
		e.pool = retrieval.NewPool(nil)
	}

	retrieverOpts := []retrieval.Option{retrieval.WithQualityFloor(e.cfg.PoolQualityFloor)}
	if e.embedder != nil {
		retrieverOpts = append(retrieverOpts, retrieval.WithEmbedder(e.embedder))
	}
	retriever := retrieval.New(e.pool, e.logger, retrieverOpts...)

	routerOpts := []router.Option{}
	if e.sentiment != nil {
		routerOpts = append(routerOpts, router.WithSentiment(e.sentiment))
	}
	e.router = router.New(e.logger, routerOpts...)

	e.compiler = compiler.New(retriever, e.logger,
		compiler.WithRetrievalK(e.cfg.RetrievalK),
		compiler.WithComplexityTokenLimit(e.cfg.ComplexityTokenLimit),
	)

	timedGW := &timeoutGateway{inner: gw, timeout: e.cfg.GatewayTimeout}
	e.optimizer = optimizer.New(timedGW, e.logger,
		optimizer.WithMaxIterations(e.cfg.MaxIterations),
		optimizer.WithQualityThreshold(e.cfg.QualityThreshold),
	)
	e.validator = constraint.NewValidator(timedGW, e.logger)
	e.gw = timedGW

	return e, nil
}

// NewGatewayFromConfig builds the HTTP gateway described by cfg: endpoint,
// model, per-call timeout and the retry policy. Extra options are applied on
// top, so callers can still add headers or a rate limit.
func NewGatewayFromConfig(cfg *config.Config, logger logging.Logger, opts ...gateway.HTTPOption) *gateway.HTTPGateway {
	base := []gateway.HTTPOption{gateway.WithRetries(cfg.MaxRetries, cfg.RetryDelay)}
	return gateway.NewHTTPGateway(cfg.GatewayEndpoint, cfg.GatewayModel, cfg.GatewayTimeout, logger,
		append(base, opts...)...)
}

// Close releases the cache backend.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Process runs one request through the pipeline. The caller receives either a
// rendered result, possibly carrying warnings and degradation metadata, or a
// single typed fatal error; there is no silent partial success.
func (e *Engine) Process(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, &MalformedRequestError{Err: fmt.Errorf("request is nil")}
	}
	if err := validate.Struct(req); err != nil {
		return nil, &MalformedRequestError{Err: err}
	}

	key := cache.Key(req.Instruction, req.Context, req.Mode)
	entry, hit, err := e.store.Get(ctx, key)
	switch {
	case err != nil:
		// A broken cache degrades to a miss, but never silently.
		e.logger.Warn("cache get failed", "key", key, "error", err)
	case hit:
		e.logger.Debug("cache hit", "key", key, "hits", entry.HitCount)
		result := &Result{Metadata: Metadata{CacheHit: true}}
		if e.cfg.GenerateResponse {
			result.Response = entry.Rendered
		} else {
			result.Rendered = entry.Rendered
		}
		return result, nil
	}

	meta := Metadata{}

	intent, reason := e.router.Classify(req.inputs())
	meta.Intent = string(intent)
	meta.IntentReason = reason

	compileCtx, cancelCompile := context.WithTimeout(ctx, e.cfg.GatewayTimeout)
	prog, retrievalErr := e.compiler.Build(compileCtx, req.inputs(), intent)
	cancelCompile()
	meta.Tier = prog.StrategyMeta["tier"]
	if retrievalErr != nil {
		meta.RetrievalFailed = true
		meta.RetrievalError = retrievalErrName(retrievalErr)
	}

	if req.Mode == ModeOptimized && req.HighQuality {
		if len(prog.Verification) == 0 {
			// Nothing to score against: skip the optimizer and assume no
			// optimization is needed.
			meta.FinalScore = 1.0
			prog.Annotate("optimizer", "skipped_empty_verification")
		} else {
			optimized, trajectory, err := e.optimizer.Optimize(ctx, prog)
			if err != nil {
				return nil, err
			}
			prog = optimized
			meta.Iterations = len(trajectory)
			meta.FinalScore = trajectory.FinalScore()
			if req.IncludeTrajectory {
				meta.Trajectory = trajectory
			}
		}
	}

	rendered, err := prog.Render()
	if err != nil {
		return nil, fmt.Errorf("failed to render program %s: %w", prog.ID, err)
	}

	outcome := e.validator.Validate(ctx, prog, rendered)
	meta.Warnings = outcome.Warnings
	meta.RepairInvoked = outcome.RepairInvoked
	meta.RepairSucceeded = outcome.RepairSucceeded
	rendered = outcome.Rendered

	if !outcome.Passed && e.cfg.Strict {
		return nil, &ConstraintViolationError{Violations: outcome.Warnings}
	}

	result := &Result{
		Rendered: rendered,
		Program:  prog,
		Metadata: meta,
	}

	cached := rendered
	if e.cfg.GenerateResponse {
		response, err := e.gw.Generate(ctx, rendered)
		if err != nil {
			// The one required gateway call: a total outage here is fatal
			// rather than a degraded result.
			return nil, err
		}
		result.Response = response
		cached = response
	}

	if err := e.store.Put(ctx, key, cached); err != nil {
		e.logger.Warn("cache put failed", "key", key, "error", err)
	}
	return result, nil
}

// retrievalErrName maps a retrieval failure onto its family member name for
// the metadata block.
func retrievalErrName(err error) string {
	switch {
	case retrieval.IsKind(err, retrieval.KindEmptyPool):
		return "EmptyPoolError"
	case retrieval.IsKind(err, retrieval.KindPoolQuality):
		return "PoolQualityError"
	case retrieval.IsKind(err, retrieval.KindVectorIntegrity):
		return "VectorIntegrityError"
	default:
		return "RetrievalError"
	}
}

// timeoutGateway enforces the per-call timeout on every gateway invocation so
// a slow backend can never stall the pipeline past its budget.
type timeoutGateway struct {
	inner   gateway.Gateway
	timeout time.Duration
}

func (t *timeoutGateway) Generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Generate(callCtx, prompt)
}
