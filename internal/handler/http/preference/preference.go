// Package preference implements the preference vector surface (C16): CRUD
// over user-authored (title, description, embedding) rows, re-embedding the
// description on every write.
package preference

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cgast/embird/internal/domain/entity"
	"github.com/cgast/embird/internal/handler/http/pathutil"
	"github.com/cgast/embird/internal/handler/http/respond"
)

// Store is the subset of C3's preference-vector table this surface drives.
type Store interface {
	Create(ctx context.Context, pref entity.PreferenceVector) (entity.PreferenceVector, error)
	Update(ctx context.Context, pref entity.PreferenceVector) (entity.PreferenceVector, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (entity.PreferenceVector, error)
	List(ctx context.Context) ([]entity.PreferenceVector, error)
}

// Embedder is the subset of C1 this surface drives to re-embed on write.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Handler serves every C16 route.
type Handler struct {
	Store    Store
	Embedder Embedder
	Enabled  bool
}

// Register mounts the preference-vector routes on mux.
func Register(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("/api/preference-vectors", h.handleCollection)
	mux.HandleFunc("/api/preference-vectors/", h.handleItem)
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		if !h.Enabled {
			respond.Error(w, http.StatusForbidden, errors.New("preference management is disabled"))
			return
		}
		h.create(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(r.URL.Path, "/api/preference-vectors/")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		if !h.Enabled {
			respond.Error(w, http.StatusForbidden, errors.New("preference management is disabled"))
			return
		}
		h.update(w, r, id)
	case http.MethodDelete:
		if !h.Enabled {
			respond.Error(w, http.StatusForbidden, errors.New("preference management is disabled"))
			return
		}
		h.delete(w, r, id)
	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.Store.List(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"preference_vectors": toPreferenceDTOs(prefs)})
}

type writeRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// embed calls C1 to re-embed the description. Per §4.C16, an embedding
// failure never fails the write: it is logged and the row persists with a
// nil embedding.
func (h *Handler) embed(ctx context.Context, description string) entity.Embedding {
	vector, err := h.Embedder.Embed(ctx, description)
	if err != nil {
		slog.Warn("preference: re-embed failed, persisting without embedding", slog.Any("error", err))
		return nil
	}
	return vector
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	pref := entity.PreferenceVector{Title: strings.TrimSpace(req.Title), Description: strings.TrimSpace(req.Description)}
	if err := pref.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}
	pref.Embedding = h.embed(r.Context(), pref.Description)

	created, err := h.Store.Create(r.Context(), pref)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toPreferenceDTO(created))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, id int64) {
	pref, err := h.Store.Get(r.Context(), id)
	if errors.Is(err, entity.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, toPreferenceDTO(pref))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, id int64) {
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	pref := entity.PreferenceVector{ID: id, Title: strings.TrimSpace(req.Title), Description: strings.TrimSpace(req.Description)}
	if err := pref.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}
	pref.Embedding = h.embed(r.Context(), pref.Description)

	updated, err := h.Store.Update(r.Context(), pref)
	if errors.Is(err, entity.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, toPreferenceDTO(updated))
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
