package checker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leslieo2/go-healthchecks/internal/constants"
	"github.com/leslieo2/go-healthchecks/internal/observability"
	"github.com/leslieo2/go-healthchecks/internal/security"
)

// Options configure a Checker.
type Options struct {
	Policy        security.AccessPolicy
	RemoteTimeout time.Duration
	Parallel      bool
	Client        *http.Client

	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Checker resolves, filters and runs the checks of a registry. It holds no
// mutable state and can be shared between requests.
type Checker struct {
	registry *Registry
	library  *Library
	opts     Options
}

func New(registry *Registry, library *Library, opts Options) *Checker {
	if registry == nil {
		registry = NewRegistry()
	}
	if library == nil {
		library = NewLibrary()
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = constants.DefaultRemoteTimeout
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewNopLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = observability.NewNopTracer()
	}

	return &Checker{registry: registry, library: library, opts: opts}
}

// Registry returns the checks this Checker runs.
func (c *Checker) Registry() *Registry {
	return c.registry
}

// Validate resolves every path reference once so misconfigured checks are
// reported at startup instead of on the first request.
func (c *Checker) Validate() error {
	var errs []error
	for _, name := range c.registry.Names() {
		ref, _ := c.registry.Lookup(name)
		if ref.kind != KindPath {
			continue
		}
		if _, err := c.library.Lookup(ref.target); err != nil {
			errs = append(errs, fmt.Errorf("check %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// resolve turns a reference into something callable with the request.
func (c *Checker) resolve(ref Reference) (RequestFunc, error) {
	switch ref.kind {
	case KindFunc:
		fn := ref.fn
		return func(r *http.Request) (any, error) { return fn(r.Context()) }, nil
	case KindRequestFunc:
		return ref.requestFn, nil
	case KindRemote:
		fn := remoteCheck(c.opts.Client, ref.target, c.opts.RemoteTimeout)
		return func(r *http.Request) (any, error) { return fn(r.Context()) }, nil
	case KindPath:
		resolved, err := c.library.Lookup(ref.target)
		if err != nil {
			return nil, err
		}
		return c.resolve(resolved)
	default:
		return nil, fmt.Errorf("%w: unknown reference kind %s", ErrUnresolvable, ref.kind)
	}
}

// CreateReport runs every check the request may see and ANDs their results.
// When checks are configured but the access policy hides all of them the
// caller gets ErrUnauthorized.
func (c *Checker) CreateReport(r *http.Request) (Report, error) {
	r = ensureRequest(r)
	ctx, span := c.opts.Tracer.StartSpan(r.Context(), "healthchecks.report")
	r = r.WithContext(ctx)

	names := c.registry.Names()
	allowed := c.opts.Policy.Filter(r, names)
	if len(names) > 0 && len(allowed) == 0 {
		observability.EndSpan(span, ErrUnauthorized)
		return Report{}, ErrUnauthorized
	}

	results := make([]any, len(allowed))
	var err error
	if c.opts.Parallel {
		err = c.runParallel(r, allowed, results)
	} else {
		for i, name := range allowed {
			if results[i], err = c.run(r, name); err != nil {
				break
			}
		}
	}
	if err != nil {
		observability.EndSpan(span, err)
		return Report{}, err
	}

	report := Report{Results: make(map[string]any, len(allowed)), Healthy: true}
	for i, name := range allowed {
		report.Results[name] = results[i]
		report.Healthy = report.Healthy && Truthy(results[i])
	}

	span.SetAttributes(
		attribute.Int("healthchecks.checks", len(allowed)),
		attribute.Bool("healthchecks.healthy", report.Healthy),
	)
	observability.EndSpan(span, nil)

	if c.opts.Metrics != nil {
		c.opts.Metrics.SetReportHealthy(report.Healthy)
	}
	return report, nil
}

func (c *Checker) runParallel(r *http.Request, names []string, results []any) error {
	g, ctx := errgroup.WithContext(r.Context())
	r = r.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			result, err := c.run(r, name)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	return g.Wait()
}

// CreateServiceResult runs the single check called name and optionally walks
// into its result along nested. A nil result means "not found": either the
// check is not configured or a nested segment is missing.
func (c *Checker) CreateServiceResult(r *http.Request, name string, nested ...string) (any, error) {
	r = ensureRequest(r)

	if _, ok := c.registry.Lookup(name); !ok {
		return nil, nil
	}
	if len(c.opts.Policy.Filter(r, []string{name})) == 0 {
		if c.opts.Metrics != nil {
			c.opts.Metrics.CheckRuns.WithLabelValues(name, observability.OutcomeUnauthorized).Inc()
		}
		return nil, ErrUnauthorized
	}

	result, err := c.run(r, name)
	if err != nil {
		return nil, err
	}
	return walk(result, nested), nil
}

// run executes one check. Errors and panics raised by the check itself are
// logged and become false; only resolution errors are returned.
func (c *Checker) run(r *http.Request, name string) (result any, err error) {
	ref, _ := c.registry.Lookup(name)
	fn, err := c.resolve(ref)
	if err != nil {
		c.opts.Logger.Error("Check cannot be resolved",
			zap.String("check", name),
			zap.String("reference", ref.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("check %q: %w", name, err)
	}

	ctx, span := c.opts.Tracer.StartSpan(r.Context(), "healthchecks.check",
		attribute.String("healthchecks.check", name),
		attribute.String("healthchecks.kind", ref.kind.String()),
	)
	start := time.Now()
	outcome := observability.OutcomeHealthy

	defer func() {
		if p := recover(); p != nil {
			c.opts.Logger.Error("Check panicked", zap.String("check", name), zap.Any("panic", p))
			result, err, outcome = false, nil, observability.OutcomeError
		}
		if outcome == observability.OutcomeHealthy && !Truthy(result) {
			outcome = observability.OutcomeUnhealthy
		}
		span.SetAttributes(attribute.String("healthchecks.outcome", outcome))
		span.End()
		if c.opts.Metrics != nil {
			c.opts.Metrics.RecordCheck(name, outcome, time.Since(start))
		}
	}()

	value, checkErr := fn(r.WithContext(ctx))
	if checkErr != nil {
		c.opts.Logger.Warn("Check failed",
			zap.String("check", name),
			zap.String("reference", ref.String()),
			zap.Error(checkErr),
		)
		span.RecordError(checkErr)
		outcome = observability.OutcomeError
		return false, nil
	}
	return coerce(value), nil
}

func ensureRequest(r *http.Request) *http.Request {
	if r != nil {
		return r
	}
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/", nil)
	return req
}
