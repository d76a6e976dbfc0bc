package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/whatcdk/pkg/domain/types"
)

// Release is the subset of a GitHub release that selection and rendering depend on.
// Values are produced by the fetcher and never modified afterwards.
type Release struct {
	TagName     string    `json:"tag_name"`
	PublishedAt time.Time `json:"published_at"`
	URL         string    `json:"html_url"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
}

// Validate checks that the release can be presented without missing fields
func (r *Release) Validate() error {
	if r == nil {
		return goerr.New("release is nil", goerr.T(types.ErrTagTransport))
	}
	if r.TagName == "" {
		return goerr.New("release has no tag name", goerr.T(types.ErrTagTransport))
	}
	if r.PublishedAt.IsZero() {
		return goerr.New("release has no publish time",
			goerr.V("tag", r.TagName),
			goerr.T(types.ErrTagTransport))
	}
	if r.URL == "" {
		return goerr.New("release has no URL",
			goerr.V("tag", r.TagName),
			goerr.T(types.ErrTagTransport))
	}
	return nil
}

// ReleaseView is the record handed to the presentation layer
type ReleaseView struct {
	Name         string    `json:"name"`
	Tag          string    `json:"tag"`
	Version      string    `json:"version"`
	PublishedAt  time.Time `json:"published_at"`
	ChangelogURL string    `json:"changelog_url"`
}

// NewReleaseView builds the presented record of release for product
func NewReleaseView(product *Product, release *Release) *ReleaseView {
	return &ReleaseView{
		Name:         product.Name,
		Tag:          release.TagName,
		Version:      product.DisplayVersion(release.TagName),
		PublishedAt:  release.PublishedAt,
		ChangelogURL: release.URL,
	}
}

// DisplayVersion returns tag as it should be shown for the product
func (p *Product) DisplayVersion(tag string) string {
	if p.StripV {
		return strings.TrimPrefix(tag, "v")
	}
	return tag
}
