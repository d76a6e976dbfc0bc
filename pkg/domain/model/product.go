package model

import (
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/whatcdk/pkg/domain/types"
)

// RuleKind identifies how a release is picked from a repository
type RuleKind string

const (
	// RuleLatestStable asks the API for the repository's latest release
	RuleLatestStable RuleKind = "latest"
	// RulePrefixMatch scans the release list for the first tag with a prefix
	RulePrefixMatch RuleKind = "prefix"
)

// SelectionRule is the policy used to pick one release of a product
type SelectionRule struct {
	Kind   RuleKind
	Prefix string // Used only by RulePrefixMatch
}

// LatestStable returns a rule that uses the "latest release" endpoint
func LatestStable() SelectionRule {
	return SelectionRule{Kind: RuleLatestStable}
}

// PrefixMatch returns a rule that picks the newest release whose tag starts with prefix
func PrefixMatch(prefix string) SelectionRule {
	return SelectionRule{Kind: RulePrefixMatch, Prefix: prefix}
}

func (r SelectionRule) String() string {
	if r.Kind == RulePrefixMatch {
		return fmt.Sprintf("%s(%s)", r.Kind, r.Prefix)
	}
	return string(r.Kind)
}

// Product is a logical entry of the overview bound to one repository and one rule
type Product struct {
	Name     string        // Display name, unique within a registry
	Owner    string        // Repository owner
	Repo     string        // Repository name
	Rule     SelectionRule // How the release is selected
	TTL      time.Duration // Freshness window; zero means registry default
	StripV   bool          // Present the version without a leading "v"
	Required bool          // Failure to resolve fails the whole resolution

	// StableOnly makes a prefix rule skip draft and prerelease entries.
	// Prefix matching keeps them by default to match the behavior consumers already rely on.
	StableOnly bool
}

// Key returns the cache key of the product
func (p *Product) Key() string {
	return p.Name
}

// Repository returns "owner/repo"
func (p *Product) Repository() string {
	return p.Owner + "/" + p.Repo
}

// Validate checks the product definition
func (p *Product) Validate() error {
	if p.Name == "" {
		return goerr.New("product name is empty",
			goerr.V("repository", p.Repository()),
			goerr.T(types.ErrTagConfiguration))
	}
	if p.Owner == "" || p.Repo == "" {
		return goerr.New("product repository is incomplete",
			goerr.V("name", p.Name),
			goerr.V("owner", p.Owner),
			goerr.V("repo", p.Repo),
			goerr.T(types.ErrTagConfiguration))
	}
	if p.TTL < 0 {
		return goerr.New("product ttl is negative",
			goerr.V("name", p.Name),
			goerr.V("ttl", p.TTL),
			goerr.T(types.ErrTagConfiguration))
	}

	switch p.Rule.Kind {
	case RuleLatestStable:
		if p.StableOnly {
			return goerr.New("stable_only applies to prefix rules only",
				goerr.V("name", p.Name),
				goerr.T(types.ErrTagConfiguration))
		}
	case RulePrefixMatch:
		if p.Rule.Prefix == "" {
			return goerr.New("prefix rule requires a prefix",
				goerr.V("name", p.Name),
				goerr.T(types.ErrTagConfiguration))
		}
	default:
		return goerr.New("unknown selection rule",
			goerr.V("name", p.Name),
			goerr.V("rule", p.Rule.Kind),
			goerr.T(types.ErrTagConfiguration))
	}

	return nil
}
