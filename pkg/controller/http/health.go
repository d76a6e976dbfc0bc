package http

import (
	"net/http"

	"github.com/m-mizutani/whatcdk/pkg/domain/interfaces"
	"github.com/m-mizutani/whatcdk/pkg/domain/model"
	"github.com/m-mizutani/whatcdk/pkg/domain/types"
)

// newHealthHandler returns a handler for health check requests. It never calls the release API.
func newHealthHandler(resolverUC interfaces.ResolverUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := &model.HealthStatus{
			Status:   "healthy",
			Service:  "whatcdk",
			Version:  types.Version,
			Products: resolverUC.Registry().Len(),
		}

		writeJSON(w, r, http.StatusOK, status)
	}
}
