package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/whatcdk/pkg/domain/types"
)

// SelectLatestStable returns the first non-draft release of the list
func SelectLatestStable(releases []*Release) (*Release, error) {
	for _, r := range releases {
		if r != nil && !r.Draft {
			return r, nil
		}
	}

	return nil, goerr.New("no non-draft release",
		goerr.V("count", len(releases)),
		goerr.T(types.ErrTagNotFound))
}

// SelectByPrefix returns the first release, in list order, whose tag starts with prefix.
// Draft and prerelease entries are not skipped.
func SelectByPrefix(releases []*Release, prefix string) (*Release, error) {
	for _, r := range releases {
		if r != nil && strings.HasPrefix(r.TagName, prefix) {
			return r, nil
		}
	}

	return nil, goerr.New("no release matches prefix",
		goerr.V("prefix", prefix),
		goerr.V("count", len(releases)),
		goerr.T(types.ErrTagNotFound))
}

// SelectStableByPrefix is SelectByPrefix restricted to published, non-prerelease entries
func SelectStableByPrefix(releases []*Release, prefix string) (*Release, error) {
	for _, r := range releases {
		if r != nil && !r.Draft && !r.Prerelease && strings.HasPrefix(r.TagName, prefix) {
			return r, nil
		}
	}

	return nil, goerr.New("no stable release matches prefix",
		goerr.V("prefix", prefix),
		goerr.V("count", len(releases)),
		goerr.T(types.ErrTagNotFound))
}

// Select applies the product's rule to a release list
func (p *Product) Select(releases []*Release) (*Release, error) {
	switch p.Rule.Kind {
	case RuleLatestStable:
		return SelectLatestStable(releases)
	case RulePrefixMatch:
		if p.StableOnly {
			return SelectStableByPrefix(releases, p.Rule.Prefix)
		}
		return SelectByPrefix(releases, p.Rule.Prefix)
	default:
		return nil, goerr.New("unknown selection rule",
			goerr.V("name", p.Name),
			goerr.V("rule", p.Rule.Kind),
			goerr.T(types.ErrTagConfiguration))
	}
}
