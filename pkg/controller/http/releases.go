package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/whatcdk/pkg/domain/interfaces"
	"github.com/m-mizutani/whatcdk/pkg/domain/model"
)

// ReleaseListResponse is the body of GET /api/releases
type ReleaseListResponse struct {
	ResolvedAt time.Time            `json:"resolved_at"`
	Releases   []*model.ReleaseView `json:"releases"`
	Missing    []string             `json:"missing"`
}

// ReleaseHandler serves resolved releases
type ReleaseHandler struct {
	resolverUC interfaces.ResolverUseCase
	timeout    time.Duration
	maxAge     time.Duration
}

// NewReleaseHandler creates a new ReleaseHandler
func NewReleaseHandler(resolverUC interfaces.ResolverUseCase, timeout, maxAge time.Duration) *ReleaseHandler {
	return &ReleaseHandler{
		resolverUC: resolverUC,
		timeout:    timeout,
		maxAge:     maxAge,
	}
}

func (h *ReleaseHandler) resolve(w http.ResponseWriter, r *http.Request) (*model.ResolutionResult, bool) {
	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.resolverUC.ResolveAll(ctx)
	if err != nil {
		ctxlog.From(ctx).Error("Failed to resolve releases", "error", err)
		writeError(w, r, goerr.Wrap(err, "failed to resolve releases"), http.StatusBadGateway)
		return nil, false
	}

	if h.maxAge > 0 {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(h.maxAge.Seconds())))
	}
	return result, true
}

// List handles GET /api/releases
func (h *ReleaseHandler) List(w http.ResponseWriter, r *http.Request) {
	result, ok := h.resolve(w, r)
	if !ok {
		return
	}

	views, missing := result.Views()
	writeJSON(w, r, http.StatusOK, &ReleaseListResponse{
		ResolvedAt: result.ResolvedAt,
		Releases:   views,
		Missing:    missing,
	})
}

// Get handles GET /api/releases/{name}
func (h *ReleaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	product, found := h.resolverUC.Registry().Lookup(name)
	if !found {
		writeError(w, r, goerr.New("unknown product", goerr.V("name", name)), http.StatusNotFound)
		return
	}

	result, ok := h.resolve(w, r)
	if !ok {
		return
	}

	release, _ := result.Get(name)
	if release == nil {
		writeError(w, r, goerr.New("release is not available", goerr.V("name", name)), http.StatusNotFound)
		return
	}

	writeJSON(w, r, http.StatusOK, model.NewReleaseView(product, release))
}
