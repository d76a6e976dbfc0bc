package usecase_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/whatcdk/pkg/domain/model"
	"github.com/m-mizutani/whatcdk/pkg/domain/types"
	"github.com/m-mizutani/whatcdk/pkg/usecase"
)

// MockCache is a mock implementation of ReleaseCache
type MockCache struct {
	GetFunc  func(ctx context.Context, product *model.Product) (*model.Release, error)
	LastFunc func(product *model.Product) (*model.Release, bool)
}

func (m *MockCache) Get(ctx context.Context, product *model.Product) (*model.Release, error) {
	return m.GetFunc(ctx, product)
}

func (m *MockCache) Last(product *model.Product) (*model.Release, bool) {
	if m.LastFunc == nil {
		return nil, false
	}
	return m.LastFunc(product)
}

func newRegistry(t *testing.T, products ...*model.Product) *model.Registry {
	t.Helper()
	reg, err := model.NewRegistry(products...)
	gt.NoError(t, err)
	return reg
}

// cdkFetcher serves aws/aws-cdk from the list endpoint and fails every "latest" call
func cdkFetcher() *MockFetcher {
	return &MockFetcher{
		FetchAllFunc: func(ctx context.Context, owner, repo string) ([]*model.Release, error) {
			return cdkReleases(), nil
		},
		FetchLatestFunc: func(ctx context.Context, owner, repo string) (*model.Release, error) {
			return nil, transportError()
		},
	}
}

func TestResolver_ResolveAll(t *testing.T) {
	ctx := context.Background()
	fetcher := &MockFetcher{
		FetchAllFunc: func(ctx context.Context, owner, repo string) ([]*model.Release, error) {
			return cdkReleases(), nil
		},
		FetchLatestFunc: func(ctx context.Context, owner, repo string) (*model.Release, error) {
			return newRelease("v2.1.0", time.Now()), nil
		},
	}
	reg := newRegistry(t, cdkProduct, cdkV1Product, cdk8sProduct)
	uc := usecase.NewResolver(reg, usecase.NewReleaseCache(fetcher))

	result, err := uc.ResolveAll(ctx)
	gt.NoError(t, err)
	gt.A(t, result.Entries).Length(3)

	// Entries follow registry order
	gt.Equal(t, result.Entries[0].Product.Name, "CDK")
	gt.Equal(t, result.Entries[1].Product.Name, "CDK v1")
	gt.Equal(t, result.Entries[2].Product.Name, "cdk8s")

	m := result.Map()
	gt.Equal(t, m["CDK"].TagName, "v2.34.0")
	gt.Equal(t, m["CDK v1"].TagName, "v1.9.0")
	gt.Equal(t, m["cdk8s"].TagName, "v2.1.0")

	// Second resolution is served from the cache
	calls := fetcher.CallCount()
	_, err = uc.ResolveAll(ctx)
	gt.NoError(t, err)
	gt.Equal(t, fetcher.CallCount(), calls)
}

func TestResolver_Isolation(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t, cdkProduct, cdk8sProduct)

	t.Run("omit policy drops failed product", func(t *testing.T) {
		uc := usecase.NewResolver(reg, usecase.NewReleaseCache(cdkFetcher()))

		result, err := uc.ResolveAll(ctx)
		gt.NoError(t, err)
		gt.A(t, result.Entries).Length(1)

		release, ok := result.Get("CDK")
		gt.True(t, ok)
		gt.Equal(t, release.TagName, "v2.34.0")

		_, ok = result.Get("cdk8s")
		gt.False(t, ok)
	})

	t.Run("absent policy keeps failed product as nil", func(t *testing.T) {
		uc := usecase.NewResolver(reg, usecase.NewReleaseCache(cdkFetcher()),
			usecase.WithFailurePolicy(usecase.FailurePolicyAbsent))

		result, err := uc.ResolveAll(ctx)
		gt.NoError(t, err)
		gt.A(t, result.Entries).Length(2)

		release, ok := result.Get("cdk8s")
		gt.True(t, ok)
		gt.Value(t, release).Nil()

		views, missing := result.Views()
		gt.A(t, views).Length(1)
		gt.Equal(t, missing, []string{"cdk8s"})
	})

	t.Run("fail policy fails the resolution", func(t *testing.T) {
		uc := usecase.NewResolver(reg, usecase.NewReleaseCache(cdkFetcher()),
			usecase.WithFailurePolicy(usecase.FailurePolicyFail))

		result, err := uc.ResolveAll(ctx)
		gt.Error(t, err)
		gt.Value(t, result).Nil()
		gt.True(t, goerr.HasTag(err, types.ErrTagTransport))
	})
}

func TestResolver_RequiredProduct(t *testing.T) {
	required := *cdk8sProduct
	required.Required = true
	reg := newRegistry(t, cdkProduct, &required)

	uc := usecase.NewResolver(reg, usecase.NewReleaseCache(cdkFetcher()))
	_, err := uc.ResolveAll(context.Background())
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("failed to resolve product")
}

func TestResolver_Timeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	cache := &MockCache{
		GetFunc: func(ctx context.Context, product *model.Product) (*model.Release, error) {
			if product.Name == "cdk8s" {
				select {
				case <-block:
				case <-ctx.Done():
				}
				return nil, goerr.Wrap(ctx.Err(), "gave up")
			}
			return newRelease("v2.34.0", time.Now()), nil
		},
	}
	reg := newRegistry(t, cdkProduct, cdk8sProduct)
	uc := usecase.NewResolver(reg, cache)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := uc.ResolveAll(ctx)
	gt.NoError(t, err)
	gt.A(t, result.Entries).Length(1)
	gt.Equal(t, result.Entries[0].Product.Name, "CDK")
}

func TestResolver_TimeoutKeepsPreviousRelease(t *testing.T) {
	clock := newFakeClock()
	var slow atomic.Bool
	block := make(chan struct{})
	defer close(block)

	fetcher := &MockFetcher{
		FetchAllFunc: func(ctx context.Context, owner, repo string) ([]*model.Release, error) {
			if slow.Load() {
				select {
				case <-block:
				case <-ctx.Done():
				}
				return nil, goerr.Wrap(ctx.Err(), "request timed out", goerr.T(types.ErrTagTransport))
			}
			return cdkReleases(), nil
		},
	}
	cache := usecase.NewReleaseCache(fetcher, usecase.WithClock(clock.Now))
	uc := usecase.NewResolver(newRegistry(t, cdkProduct), cache)

	result, err := uc.ResolveAll(context.Background())
	gt.NoError(t, err)
	gt.A(t, result.Entries).Length(1)

	slow.Store(true)
	clock.Advance(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	result, err = uc.ResolveAll(ctx)
	gt.NoError(t, err)
	release, ok := result.Get("CDK")
	gt.True(t, ok)
	gt.Value(t, release).NotNil()
	gt.Equal(t, release.TagName, "v2.34.0")
}

func TestResolver_PendingProductUsesLastRelease(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	cache := &MockCache{
		GetFunc: func(ctx context.Context, product *model.Product) (*model.Release, error) {
			<-block
			return nil, transportError()
		},
		LastFunc: func(product *model.Product) (*model.Release, bool) {
			if product.Name == "CDK" {
				return newRelease("v2.34.0", time.Now()), true
			}
			return nil, false
		},
	}
	uc := usecase.NewResolver(newRegistry(t, cdkProduct, cdk8sProduct), cache,
		usecase.WithFailurePolicy(usecase.FailurePolicyAbsent))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	result, err := uc.ResolveAll(ctx)
	gt.NoError(t, err)
	gt.A(t, result.Entries).Length(2)

	cdk, _ := result.Get("CDK")
	gt.Equal(t, cdk.TagName, "v2.34.0")
	cdk8s, ok := result.Get("cdk8s")
	gt.True(t, ok)
	gt.Value(t, cdk8s).Nil()
}

func TestResolver_Panic(t *testing.T) {
	cache := &MockCache{
		GetFunc: func(ctx context.Context, product *model.Product) (*model.Release, error) {
			if product.Name == "cdk8s" {
				panic("boom")
			}
			return newRelease("v2.34.0", time.Now()), nil
		},
	}
	reg := newRegistry(t, cdkProduct, cdk8sProduct)
	uc := usecase.NewResolver(reg, cache)

	result, err := uc.ResolveAll(context.Background())
	gt.NoError(t, err)
	gt.A(t, result.Entries).Length(1)
}

func TestResolver_RoundTrip(t *testing.T) {
	want := newRelease("v2.34.0", time.Date(2022, 7, 29, 0, 0, 0, 0, time.UTC))
	cache := &MockCache{
		GetFunc: func(ctx context.Context, product *model.Product) (*model.Release, error) {
			return want, nil
		},
	}
	uc := usecase.NewResolver(newRegistry(t, cdkProduct), cache)

	result, err := uc.ResolveAll(context.Background())
	gt.NoError(t, err)

	got, ok := result.Get("CDK")
	gt.True(t, ok)
	gt.True(t, got == want)
	gt.Equal(t, *got, *newRelease("v2.34.0", time.Date(2022, 7, 29, 0, 0, 0, 0, time.UTC)))
}

func TestParseFailurePolicy(t *testing.T) {
	for _, s := range []string{"omit", "absent", "fail"} {
		p, err := usecase.ParseFailurePolicy(s)
		gt.NoError(t, err)
		gt.Equal(t, string(p), s)
	}

	p, err := usecase.ParseFailurePolicy("")
	gt.NoError(t, err)
	gt.Equal(t, p, usecase.FailurePolicyOmit)

	_, err = usecase.ParseFailurePolicy("ignore")
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagConfiguration))
}
