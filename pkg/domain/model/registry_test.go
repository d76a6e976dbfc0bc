package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/whatcdk/pkg/domain/model"
	"github.com/m-mizutani/whatcdk/pkg/domain/types"
)

func TestNewRegistry(t *testing.T) {
	t.Run("default products are valid", func(t *testing.T) {
		reg, err := model.NewRegistry(model.DefaultProducts()...)
		gt.NoError(t, err)
		gt.Equal(t, reg.Len(), 4)

		names := []string{}
		for _, p := range reg.Products() {
			names = append(names, p.Name)
		}
		gt.Equal(t, names, []string{"CDK", "CDK v1", "cdktf", "cdk8s"})

		cdk, ok := reg.Lookup("CDK")
		gt.True(t, ok)
		gt.Equal(t, cdk.Rule, model.PrefixMatch("v2"))
		gt.Equal(t, cdk.TTL, 10*time.Minute)
	})

	t.Run("registry is not affected by later changes to the input", func(t *testing.T) {
		products := model.DefaultProducts()
		reg, err := model.NewRegistry(products...)
		gt.NoError(t, err)

		products[0].Name = "changed"
		_, ok := reg.Lookup("CDK")
		gt.True(t, ok)
	})

	t.Run("duplicated name", func(t *testing.T) {
		p := &model.Product{Name: "CDK", Owner: "aws", Repo: "aws-cdk", Rule: model.LatestStable()}
		_, err := model.NewRegistry(p, p)
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagConfiguration))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := model.NewRegistry()
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagConfiguration))
	})

	t.Run("invalid product", func(t *testing.T) {
		_, err := model.NewRegistry(&model.Product{Name: "x"})
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagConfiguration))
	})
}

func TestCacheEntry_IsFresh(t *testing.T) {
	fetched := time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC)
	entry := &model.CacheEntry{Key: "CDK", FetchedAt: fetched, TTL: 10 * time.Minute}

	gt.True(t, entry.IsFresh(fetched))
	gt.True(t, entry.IsFresh(fetched.Add(9*time.Minute)))
	gt.False(t, entry.IsFresh(fetched.Add(10*time.Minute)))
	gt.Equal(t, entry.Age(fetched.Add(time.Minute)), time.Minute)
}

func TestResolutionResult_Views(t *testing.T) {
	cdk := &model.Product{Name: "CDK", Owner: "aws", Repo: "aws-cdk", Rule: model.PrefixMatch("v2"), StripV: true}
	cdk8s := &model.Product{Name: "cdk8s", Owner: "cdk8s-team", Repo: "cdk8s-core", Rule: model.LatestStable()}
	published := time.Date(2022, 7, 29, 0, 0, 0, 0, time.UTC)

	result := &model.ResolutionResult{
		Entries: []model.ResolvedProduct{
			{Product: cdk, Release: &model.Release{TagName: "v2.34.0", PublishedAt: published, URL: "https://example.com/cdk"}},
			{Product: cdk8s},
		},
	}

	views, missing := result.Views()
	gt.A(t, views).Length(1)
	gt.Equal(t, *views[0], model.ReleaseView{
		Name:         "CDK",
		Tag:          "v2.34.0",
		Version:      "2.34.0",
		PublishedAt:  published,
		ChangelogURL: "https://example.com/cdk",
	})
	gt.Equal(t, missing, []string{"cdk8s"})

	m := result.Map()
	gt.Equal(t, len(m), 2)
	gt.Value(t, m["cdk8s"]).Nil()
}
