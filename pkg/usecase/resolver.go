package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/whatcdk/pkg/domain/interfaces"
	"github.com/m-mizutani/whatcdk/pkg/domain/model"
	"github.com/m-mizutani/whatcdk/pkg/domain/types"
	"github.com/m-mizutani/whatcdk/pkg/utils/errs"
)

// FailurePolicy decides how products that could not be resolved appear in the result
type FailurePolicy string

const (
	// FailurePolicyOmit leaves failed products out of the result
	FailurePolicyOmit FailurePolicy = "omit"
	// FailurePolicyAbsent keeps failed products with an explicit nil release
	FailurePolicyAbsent FailurePolicy = "absent"
	// FailurePolicyFail makes any failed product fail the whole resolution
	FailurePolicyFail FailurePolicy = "fail"
)

// ParseFailurePolicy converts a configuration value to a FailurePolicy
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(s); p {
	case FailurePolicyOmit, FailurePolicyAbsent, FailurePolicyFail:
		return p, nil
	case "":
		return FailurePolicyOmit, nil
	default:
		return "", goerr.New("unknown failure policy",
			goerr.V("policy", s),
			goerr.T(types.ErrTagConfiguration))
	}
}

// ResolverOption is a functional option for the resolver
type ResolverOption func(*resolver)

// WithFailurePolicy sets how failed products are reported
func WithFailurePolicy(policy FailurePolicy) ResolverOption {
	return func(r *resolver) {
		r.policy = policy
	}
}

type resolver struct {
	registry *model.Registry
	cache    interfaces.ReleaseCache
	policy   FailurePolicy
	now      func() time.Time
}

// NewResolver creates a ResolverUseCase over registry, obtaining releases through cache
func NewResolver(registry *model.Registry, cache interfaces.ReleaseCache, opts ...ResolverOption) interfaces.ResolverUseCase {
	r := &resolver{
		registry: registry,
		cache:    cache,
		policy:   FailurePolicyOmit,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *resolver) Registry() *model.Registry {
	return r.registry
}

type outcome struct {
	index   int
	release *model.Release
	err     error
}

// pendingOutcome settles a product whose resolution did not finish before ctx was done.
// The last known release is used when the cache has one.
func (r *resolver) pendingOutcome(ctx context.Context, index int, p *model.Product) *outcome {
	if release, ok := r.cache.Last(p); ok {
		ctxlog.From(ctx).Warn("Resolution did not finish in time, using previous release",
			"product", p.Name,
			"tag", release.TagName,
		)
		return &outcome{index: index, release: release}
	}
	return &outcome{
		index: index,
		err:   goerr.Wrap(ctx.Err(), "resolution did not finish in time", goerr.V("product", p.Name)),
	}
}

// ResolveAll resolves all products concurrently. Products still pending when ctx is done count as failed.
func (r *resolver) ResolveAll(ctx context.Context) (*model.ResolutionResult, error) {
	logger := ctxlog.From(ctx).With("resolution_id", uuid.NewString())
	ctx = ctxlog.With(ctx, logger)

	products := r.registry.Products()
	logger.Debug("Resolving products", "count", len(products), "policy", r.policy)

	results := make(chan outcome, len(products))
	for i, p := range products {
		go func(i int, p *model.Product) {
			defer func() {
				if v := recover(); v != nil {
					results <- outcome{
						index: i,
						err: goerr.New("panic while resolving product",
							goerr.V("product", p.Name),
							goerr.V("recover", fmt.Sprint(v)),
							goerr.V("stack", string(debug.Stack()))),
					}
				}
			}()

			release, err := r.cache.Get(ctx, p)
			results <- outcome{index: i, release: release, err: err}
		}(i, p)
	}

	outcomes := make([]*outcome, len(products))
	pending := len(products)
wait:
	for pending > 0 {
		select {
		case o := <-results:
			outcomes[o.index] = &o
			pending--
		case <-ctx.Done():
			break wait
		}
	}

	result := &model.ResolutionResult{ResolvedAt: r.now()}
	var failed []string

	for i, p := range products {
		o := outcomes[i]
		if o == nil {
			o = r.pendingOutcome(ctx, i, p)
		}

		if o.err == nil {
			result.Entries = append(result.Entries, model.ResolvedProduct{Product: p, Release: o.release})
			continue
		}

		failed = append(failed, p.Name)
		errs.Report(ctx, "Failed to resolve product", o.err,
			"product", p.Name,
			"repository", p.Repository(),
			"rule", p.Rule.String(),
		)

		if p.Required || r.policy == FailurePolicyFail {
			return nil, goerr.Wrap(o.err, "failed to resolve product",
				goerr.V("product", p.Name),
				goerr.V("required", p.Required),
				goerr.V("policy", r.policy))
		}

		if r.policy == FailurePolicyAbsent {
			result.Entries = append(result.Entries, model.ResolvedProduct{Product: p})
		}
	}

	logger.Info("Resolved products",
		"resolved", len(products)-len(failed),
		"failed", failed,
	)

	return result, nil
}
