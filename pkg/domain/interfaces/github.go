package interfaces

import (
	"context"

	"github.com/m-mizutani/whatcdk/pkg/domain/model"
)

// ReleaseFetcher retrieves release history of a repository from the hosting API
type ReleaseFetcher interface {
	// FetchLatest returns the release the API reports as latest. Fails with ErrTagNotFound when there is none.
	FetchLatest(ctx context.Context, owner, repo string) (*model.Release, error)

	// FetchAll returns releases in the order supplied by the API (newest first)
	FetchAll(ctx context.Context, owner, repo string) ([]*model.Release, error)
}
