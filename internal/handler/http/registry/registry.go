// Package registry implements the URL registry admin surface (C15): thin
// CRUD over the crawl-target table, with no crawling or extraction logic of
// its own.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cgast/embird/internal/domain/entity"
	"github.com/cgast/embird/internal/handler/http/pathutil"
	"github.com/cgast/embird/internal/handler/http/respond"
)

// Store is the subset of C4 this surface drives.
type Store interface {
	Create(ctx context.Context, source entity.SourceEntry) (entity.SourceEntry, error)
	Get(ctx context.Context, id int64) (entity.SourceEntry, error)
	List(ctx context.Context) ([]entity.SourceEntry, error)
	Delete(ctx context.Context, id int64) error
}

// Handler serves every C15 route.
type Handler struct {
	Store   Store
	Enabled bool
}

// Register mounts the registry routes on mux.
func Register(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("/api/urls", h.handleCollection)
	mux.HandleFunc("/api/urls/", h.handleItem)
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		if !h.Enabled {
			respond.Error(w, http.StatusForbidden, errors.New("url management is disabled"))
			return
		}
		h.create(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(r.URL.Path, "/api/urls/")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		if !h.Enabled {
			respond.Error(w, http.StatusForbidden, errors.New("url management is disabled"))
			return
		}
		h.delete(w, r, id)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sources, err := h.Store.List(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"urls": toSourceDTOs(sources)})
}

type createRequest struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	source := entity.SourceEntry{URL: strings.TrimSpace(req.URL), Type: entity.SourceType(strings.TrimSpace(req.Type))}
	if err := source.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.Store.Create(r.Context(), source)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toSourceDTO(created))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, id int64) {
	source, err := h.Store.Get(r.Context(), id)
	if errors.Is(err, entity.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, toSourceDTO(source))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, id int64) {
	err := h.Store.Delete(r.Context(), id)
	if errors.Is(err, entity.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
