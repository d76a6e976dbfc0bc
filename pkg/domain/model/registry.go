package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/whatcdk/pkg/domain/types"
)

// DefaultTTL is used for products that do not set their own TTL
const DefaultTTL = time.Hour

// Registry is the static, ordered list of products. It is immutable after NewRegistry.
type Registry struct {
	products []*Product
	index    map[string]*Product
}

// NewRegistry validates products and builds a registry. Names must be unique.
func NewRegistry(products ...*Product) (*Registry, error) {
	if len(products) == 0 {
		return nil, goerr.New("product registry is empty", goerr.T(types.ErrTagConfiguration))
	}

	r := &Registry{
		index: make(map[string]*Product, len(products)),
	}
	for _, p := range products {
		if p == nil {
			return nil, goerr.New("product registry has a nil entry", goerr.T(types.ErrTagConfiguration))
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, ok := r.index[p.Name]; ok {
			return nil, goerr.New("duplicated product name",
				goerr.V("name", p.Name),
				goerr.T(types.ErrTagConfiguration))
		}

		copied := *p
		r.products = append(r.products, &copied)
		r.index[p.Name] = &copied
	}

	return r, nil
}

// Products returns the products in registration order
func (r *Registry) Products() []*Product {
	out := make([]*Product, len(r.products))
	copy(out, r.products)
	return out
}

// Lookup finds a product by display name
func (r *Registry) Lookup(name string) (*Product, bool) {
	p, ok := r.index[name]
	return p, ok
}

// Len returns the number of products
func (r *Registry) Len() int {
	return len(r.products)
}

// DefaultProducts returns the AWS CDK family shown by the overview
func DefaultProducts() []*Product {
	return []*Product{
		{
			Name:   "CDK",
			Owner:  "aws",
			Repo:   "aws-cdk",
			Rule:   PrefixMatch("v2"),
			TTL:    10 * time.Minute,
			StripV: true,
		},
		{
			Name:   "CDK v1",
			Owner:  "aws",
			Repo:   "aws-cdk",
			Rule:   PrefixMatch("v1"),
			TTL:    time.Hour,
			StripV: true,
		},
		{
			Name:  "cdktf",
			Owner: "hashicorp",
			Repo:  "terraform-cdk",
			Rule:  LatestStable(),
			TTL:   time.Hour,
		},
		{
			Name:  "cdk8s",
			Owner: "cdk8s-team",
			Repo:  "cdk8s-core",
			Rule:  LatestStable(),
			TTL:   time.Hour,
		},
	}
}
