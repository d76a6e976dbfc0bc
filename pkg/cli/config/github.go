package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/whatcdk/pkg/domain/interfaces"
	"github.com/m-mizutani/whatcdk/pkg/domain/types"
	githubinfra "github.com/m-mizutani/whatcdk/pkg/infra/github"
	"github.com/urfave/cli/v3"
)

// GitHub holds GitHub API configuration. All credentials are optional;
// without them the API is used anonymously with a lower rate limit.
type GitHub struct {
	Token          string `masq:"secret"`
	AppID          int64
	InstallationID int64
	PrivateKey     string `masq:"secret"`
	PrivateKeyFile string
	BaseURL        string
	MaxPages       int
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub token for higher API rate limits",
			Destination: &c.Token,
			Sources:     cli.EnvVars("WHATCDK_GITHUB_TOKEN", "GITHUB_TOKEN"),
		},
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID, alternative to a token",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("WHATCDK_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("WHATCDK_GITHUB_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-private-key",
			Usage:       "GitHub App private key (PEM)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("WHATCDK_GITHUB_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-private-key-file",
			Usage:       "Path to GitHub App private key (PEM)",
			Destination: &c.PrivateKeyFile,
			Sources:     cli.EnvVars("WHATCDK_GITHUB_PRIVATE_KEY_FILE"),
		},
		&cli.StringFlag{
			Name:        "github-api-url",
			Usage:       "GitHub REST API base URL",
			Destination: &c.BaseURL,
			Sources:     cli.EnvVars("WHATCDK_GITHUB_API_URL"),
		},
		&cli.IntFlag{
			Name:        "github-max-pages",
			Usage:       "Max release list pages to read per repository",
			Value:       1,
			Destination: &c.MaxPages,
			Sources:     cli.EnvVars("WHATCDK_GITHUB_MAX_PAGES"),
		},
	}
}

// useApp reports whether GitHub App credentials are configured
func (c *GitHub) useApp() bool {
	return c.AppID != 0 || c.InstallationID != 0 || c.PrivateKey != "" || c.PrivateKeyFile != ""
}

func (c *GitHub) privateKey() ([]byte, error) {
	if c.PrivateKey != "" && c.PrivateKeyFile != "" {
		return nil, goerr.New("github-private-key and github-private-key-file are exclusive",
			goerr.T(types.ErrTagConfiguration))
	}
	if c.PrivateKeyFile != "" {
		data, err := os.ReadFile(c.PrivateKeyFile)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read GitHub App private key",
				goerr.V("path", c.PrivateKeyFile),
				goerr.T(types.ErrTagConfiguration))
		}
		return data, nil
	}
	return []byte(c.PrivateKey), nil
}

// Options converts the configuration into release client options
func (c *GitHub) Options() ([]githubinfra.Option, error) {
	opts := []githubinfra.Option{
		githubinfra.WithMaxPages(c.MaxPages),
	}
	if c.BaseURL != "" {
		opts = append(opts, githubinfra.WithBaseURL(c.BaseURL))
	}

	if c.useApp() {
		if c.AppID == 0 || c.InstallationID == 0 {
			return nil, goerr.New("GitHub App requires both app ID and installation ID",
				goerr.V("app_id", c.AppID),
				goerr.V("installation_id", c.InstallationID),
				goerr.T(types.ErrTagConfiguration))
		}
		key, err := c.privateKey()
		if err != nil {
			return nil, err
		}
		if len(key) == 0 {
			return nil, goerr.New("GitHub App requires a private key", goerr.T(types.ErrTagConfiguration))
		}
		opts = append(opts, githubinfra.WithAppAuth(c.AppID, c.InstallationID, key))
	}

	if c.Token != "" {
		opts = append(opts, githubinfra.WithToken(c.Token))
	}

	return opts, nil
}

// NewFetcher creates the release fetcher
func (c *GitHub) NewFetcher() (interfaces.ReleaseFetcher, error) {
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}
	return githubinfra.NewClient(opts...)
}
