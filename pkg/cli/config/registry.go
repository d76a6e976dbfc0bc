package config

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/whatcdk/pkg/domain/interfaces"
	"github.com/m-mizutani/whatcdk/pkg/domain/model"
	"github.com/m-mizutani/whatcdk/pkg/domain/types"
	"github.com/m-mizutani/whatcdk/pkg/infra/registry"
	"github.com/m-mizutani/whatcdk/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Registry holds product registry and resolution configuration
type Registry struct {
	ProductsFile   string
	DefaultTTL     time.Duration
	TTLOverrides   []string
	FailurePolicy  string
	ResolveTimeout time.Duration
}

// Flags returns CLI flags for registry configuration
func (c *Registry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "products",
			Usage:       "Products file (.toml, .yaml). Built-in products are used when empty",
			Destination: &c.ProductsFile,
			Sources:     cli.EnvVars("WHATCDK_PRODUCTS"),
		},
		&cli.DurationFlag{
			Name:        "default-ttl",
			Usage:       "Cache TTL for products without their own TTL",
			Value:       model.DefaultTTL,
			Destination: &c.DefaultTTL,
			Sources:     cli.EnvVars("WHATCDK_DEFAULT_TTL"),
		},
		&cli.StringSliceFlag{
			Name:        "ttl",
			Usage:       "Per-product TTL override as name=duration (e.g. CDK=5m)",
			Destination: &c.TTLOverrides,
			Sources:     cli.EnvVars("WHATCDK_TTL"),
		},
		&cli.StringFlag{
			Name:        "failure-policy",
			Usage:       "How unresolved products are reported (omit, absent, fail)",
			Value:       string(usecase.FailurePolicyOmit),
			Destination: &c.FailurePolicy,
			Sources:     cli.EnvVars("WHATCDK_FAILURE_POLICY"),
		},
		&cli.DurationFlag{
			Name:        "resolve-timeout",
			Usage:       "Upper bound of one resolution of all products",
			Value:       10 * time.Second,
			Destination: &c.ResolveTimeout,
			Sources:     cli.EnvVars("WHATCDK_RESOLVE_TIMEOUT"),
		},
	}
}

// Build loads products and applies TTL overrides
func (c *Registry) Build() (*model.Registry, error) {
	products := model.DefaultProducts()
	if c.ProductsFile != "" {
		loaded, err := registry.LoadFile(c.ProductsFile)
		if err != nil {
			return nil, err
		}
		products = loaded
	}

	overrides, err := c.ttlOverrides()
	if err != nil {
		return nil, err
	}

	for _, p := range products {
		if ttl, ok := overrides[p.Name]; ok {
			p.TTL = ttl
			delete(overrides, p.Name)
		}
	}
	for name := range overrides {
		return nil, goerr.New("TTL override for unknown product",
			goerr.V("name", name),
			goerr.T(types.ErrTagConfiguration))
	}

	return model.NewRegistry(products...)
}

func (c *Registry) ttlOverrides() (map[string]time.Duration, error) {
	overrides := make(map[string]time.Duration, len(c.TTLOverrides))
	for _, s := range c.TTLOverrides {
		name, value, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, goerr.New("TTL override must be name=duration",
				goerr.V("override", s),
				goerr.T(types.ErrTagConfiguration))
		}

		ttl, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil || ttl < 0 {
			return nil, goerr.New("invalid TTL in override",
				goerr.V("override", s),
				goerr.T(types.ErrTagConfiguration))
		}
		overrides[name] = ttl
	}
	return overrides, nil
}

// Policy returns the parsed failure policy
func (c *Registry) Policy() (usecase.FailurePolicy, error) {
	return usecase.ParseFailurePolicy(c.FailurePolicy)
}

// NewResolver wires the fetcher, cache and resolver together
func (c *Registry) NewResolver(fetcher interfaces.ReleaseFetcher) (interfaces.ResolverUseCase, error) {
	reg, err := c.Build()
	if err != nil {
		return nil, err
	}
	policy, err := c.Policy()
	if err != nil {
		return nil, err
	}

	cache := usecase.NewReleaseCache(fetcher, usecase.WithDefaultTTL(c.DefaultTTL))
	return usecase.NewResolver(reg, cache, usecase.WithFailurePolicy(policy)), nil
}
