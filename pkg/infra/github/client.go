package github

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/whatcdk/pkg/domain/interfaces"
	"github.com/m-mizutani/whatcdk/pkg/domain/model"
	"github.com/m-mizutani/whatcdk/pkg/domain/types"
)

const (
	defaultPerPage  = 100
	defaultMaxPages = 1
)

type appAuth struct {
	appID          int64
	installationID int64
	privateKey     []byte
}

// config holds internal client configuration
type config struct {
	token      string
	app        *appAuth
	baseURL    string
	httpClient *http.Client
	perPage    int
	maxPages   int
}

// Option is a functional option for the release client
type Option func(*config)

// WithToken authenticates every request with a personal access token.
// An empty token keeps the client anonymous.
func WithToken(token string) Option {
	return func(c *config) {
		c.token = token
	}
}

// WithAppAuth authenticates as a GitHub App installation
func WithAppAuth(appID, installationID int64, privateKey []byte) Option {
	return func(c *config) {
		c.app = &appAuth{
			appID:          appID,
			installationID: installationID,
			privateKey:     privateKey,
		}
	}
}

// WithBaseURL sets the REST API endpoint, e.g. for GitHub Enterprise
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the underlying HTTP client. nil is ignored.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *config) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithMaxPages limits how many release list pages FetchAll follows
func WithMaxPages(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithPerPage sets the release list page size (max 100 on GitHub)
func WithPerPage(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.perPage = n
		}
	}
}

type client struct {
	githubClient *github.Client
	perPage      int
	maxPages     int
}

// NewClient creates a release fetcher backed by the GitHub REST API
func NewClient(opts ...Option) (interfaces.ReleaseFetcher, error) {
	cfg := &config{
		httpClient: &http.Client{},
		perPage:    defaultPerPage,
		maxPages:   defaultMaxPages,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.token != "" && cfg.app != nil {
		return nil, goerr.New("token and GitHub App credentials are mutually exclusive",
			goerr.T(types.ErrTagConfiguration))
	}

	httpClient := cfg.httpClient
	if cfg.app != nil {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		itr, err := ghinstallation.New(base, cfg.app.appID, cfg.app.installationID, cfg.app.privateKey)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create GitHub App transport",
				goerr.V("app_id", cfg.app.appID),
				goerr.V("installation_id", cfg.app.installationID),
				goerr.T(types.ErrTagConfiguration))
		}
		if cfg.baseURL != "" {
			itr.BaseURL = strings.TrimSuffix(cfg.baseURL, "/")
		}
		httpClient = &http.Client{Transport: itr, Timeout: httpClient.Timeout}
	}

	githubClient := github.NewClient(httpClient)
	if cfg.token != "" {
		githubClient = githubClient.WithAuthToken(cfg.token)
	}

	if cfg.baseURL != "" {
		u, err := url.Parse(cfg.baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, goerr.New("invalid GitHub API base URL",
				goerr.V("base_url", cfg.baseURL),
				goerr.T(types.ErrTagConfiguration))
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		githubClient.BaseURL = u
	}

	return &client{
		githubClient: githubClient,
		perPage:      cfg.perPage,
		maxPages:     cfg.maxPages,
	}, nil
}

// FetchLatest returns the latest published release of the repository
func (c *client) FetchLatest(ctx context.Context, owner, repo string) (*model.Release, error) {
	if err := validateRepository(owner, repo); err != nil {
		return nil, err
	}

	rel, resp, err := c.githubClient.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, goerr.Wrap(err, "repository has no latest release",
				goerr.V("owner", owner),
				goerr.V("repo", repo),
				goerr.T(types.ErrTagNotFound))
		}
		return nil, goerr.Wrap(err, "failed to get latest release",
			goerr.V("owner", owner),
			goerr.V("repo", repo),
			goerr.T(types.ErrTagTransport))
	}

	release, err := toRelease(rel)
	if err != nil {
		return nil, goerr.Wrap(err, "malformed latest release",
			goerr.V("owner", owner),
			goerr.V("repo", repo),
			goerr.T(types.ErrTagTransport))
	}

	return release, nil
}

// FetchAll lists releases of the repository, newest first, keeping the API order
func (c *client) FetchAll(ctx context.Context, owner, repo string) ([]*model.Release, error) {
	if err := validateRepository(owner, repo); err != nil {
		return nil, err
	}

	var releases []*model.Release
	opt := &github.ListOptions{PerPage: c.perPage}

	for page := 0; page < c.maxPages; page++ {
		items, resp, err := c.githubClient.Repositories.ListReleases(ctx, owner, repo, opt)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list releases",
				goerr.V("owner", owner),
				goerr.V("repo", repo),
				goerr.V("page", opt.Page),
				goerr.T(types.ErrTagTransport))
		}

		for _, item := range items {
			release, err := toRelease(item)
			if err != nil {
				return nil, goerr.Wrap(err, "malformed release in list",
					goerr.V("owner", owner),
					goerr.V("repo", repo),
					goerr.V("id", item.GetID()),
					goerr.T(types.ErrTagTransport))
			}
			releases = append(releases, release)
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}

	return releases, nil
}

func validateRepository(owner, repo string) error {
	if owner == "" || repo == "" {
		return goerr.New("repository owner and name are required",
			goerr.V("owner", owner),
			goerr.V("repo", repo),
			goerr.T(types.ErrTagConfiguration))
	}
	return nil
}

// toRelease narrows the GitHub release object to the fields selection relies on
func toRelease(rel *github.RepositoryRelease) (*model.Release, error) {
	if rel == nil {
		return nil, goerr.New("release object is null")
	}
	if rel.GetTagName() == "" {
		return nil, goerr.New("release has no tag_name", goerr.V("id", rel.GetID()))
	}

	return &model.Release{
		TagName:     rel.GetTagName(),
		PublishedAt: rel.GetPublishedAt().Time,
		URL:         rel.GetHTMLURL(),
		Draft:       rel.GetDraft(),
		Prerelease:  rel.GetPrerelease(),
	}, nil
}
