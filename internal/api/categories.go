package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/locallend/internal/model"
	"github.com/erazemk/locallend/internal/store"
)

// CategoriesHandler serves the category tree.
type CategoriesHandler struct {
	DB *sql.DB
}

type createCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parent_id"`
}

func (h *CategoriesHandler) respondList(w http.ResponseWriter, categories []model.Category, err error) {
	if err != nil {
		slog.Error("failed to list categories", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	jsonResponse(w, http.StatusOK, categories)
}

// List handles GET /api/categories.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	sort := r.URL.Query().Get("sort")
	switch sort {
	case "", model.CategorySortName, model.CategorySortNameDesc, model.CategorySortCreated, model.CategorySortPopular:
	default:
		jsonError(w, http.StatusBadRequest, "invalid sort")
		return
	}
	rootOnly := r.URL.Query().Get("root") == "true"

	categories, err := store.ListCategories(r.Context(), h.DB, sort, rootOnly)
	h.respondList(w, categories, err)
}

// Search handles GET /api/categories/search.
func (h *CategoriesHandler) Search(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("term"))
	if term == "" {
		jsonError(w, http.StatusBadRequest, "term required")
		return
	}
	categories, err := store.SearchCategories(r.Context(), h.DB, term)
	h.respondList(w, categories, err)
}

func (h *CategoriesHandler) category(w http.ResponseWriter, r *http.Request) *model.Category {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return nil
	}
	c, err := store.GetCategory(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get category", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get category")
		return nil
	}
	if c == nil {
		jsonError(w, http.StatusNotFound, "category not found")
		return nil
	}
	return c
}

// Get handles GET /api/categories/{id}.
func (h *CategoriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	if c := h.category(w, r); c != nil {
		jsonResponse(w, http.StatusOK, c)
	}
}

// Subcategories handles GET /api/categories/{id}/subcategories.
func (h *CategoriesHandler) Subcategories(w http.ResponseWriter, r *http.Request) {
	c := h.category(w, r)
	if c == nil {
		return
	}
	categories, err := store.ListSubcategories(r.Context(), h.DB, c.ID)
	h.respondList(w, categories, err)
}

// Create handles POST /api/categories.
func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if n := len(req.Name); n < 2 || n > 50 {
		jsonError(w, http.StatusBadRequest, "name must be between 2 and 50 characters")
		return
	}
	if len(req.Description) > 200 {
		jsonError(w, http.StatusBadRequest, "description must be at most 200 characters")
		return
	}

	if req.ParentID != nil {
		parent, err := store.GetCategory(r.Context(), h.DB, *req.ParentID)
		if err != nil {
			slog.Error("failed to get parent category", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to create category")
			return
		}
		if parent == nil {
			jsonError(w, http.StatusBadRequest, "parent category not found")
			return
		}
	}

	exists, err := store.CategoryNameExists(r.Context(), h.DB, req.Name)
	if err != nil {
		slog.Error("checking category name", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create category")
		return
	}
	if exists {
		jsonError(w, http.StatusConflict, "category already exists")
		return
	}

	c, err := store.CreateCategory(r.Context(), h.DB, req.Name, req.Description, req.ParentID)
	if err != nil {
		slog.Error("failed to create category", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create category")
		return
	}

	slog.Info("category created", "user", GetClaims(r.Context()).Username, "category", c.Name)
	jsonResponse(w, http.StatusCreated, c)
}
