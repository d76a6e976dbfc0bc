package interfaces

import (
	"context"

	"github.com/m-mizutani/whatcdk/pkg/domain/model"
)

// ReleaseCache returns the release of a product, reusing results within the product's TTL
type ReleaseCache interface {
	// Get resolves the product's release through the cache
	Get(ctx context.Context, product *model.Product) (*model.Release, error)

	// Last returns the most recent release stored for the product regardless of freshness
	Last(product *model.Product) (*model.Release, bool)
}

// ResolverUseCase resolves every product of the registry
type ResolverUseCase interface {
	// ResolveAll returns the name to release mapping of all products
	ResolveAll(ctx context.Context) (*model.ResolutionResult, error)

	// Registry returns the products being resolved
	Registry() *model.Registry
}
