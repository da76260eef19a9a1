package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/locallend/internal/booking"
	"github.com/erazemk/locallend/internal/imaging"
	"github.com/erazemk/locallend/internal/model"
	"github.com/erazemk/locallend/internal/store"
)

// MaxImagesPerItem bounds the photos attached to one item.
const MaxImagesPerItem = 5

// ItemsHandler handles the item catalog.
type ItemsHandler struct {
	DB       *sql.DB
	Bookings *booking.Service
}

// itemRequest is the body of item create and update.
type itemRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	CategoryID  int64   `json:"category_id"`
	Condition   string  `json:"condition"`
	Deposit     float64 `json:"deposit"`
}

type itemStatusRequest struct {
	Status string `json:"status"`
}

type imageResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// validate normalizes the request and returns a message for the first problem.
func (req *itemRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	switch {
	case req.Name == "" || len(req.Name) > 100:
		return "name must be between 1 and 100 characters"
	case len(req.Description) > 1000:
		return "description must be at most 1000 characters"
	case req.CategoryID <= 0:
		return "category_id required"
	case req.Condition != "" && !model.ValidCondition(req.Condition):
		return "invalid condition"
	case req.Deposit < 0:
		return "deposit must not be negative"
	}
	return ""
}

// parseFilter reads catalog filters, sorting and paging from the query string.
func parseFilter(r *http.Request) (store.ItemFilter, string) {
	q := r.URL.Query()
	f := store.ItemFilter{
		Query:     strings.TrimSpace(q.Get("query")),
		Condition: q.Get("condition"),
		Status:    q.Get("status"),
		Sort:      q.Get("sort"),
	}

	var ok bool
	if f.Page, ok = queryInt(r, "page", 0); !ok || f.Page < 0 {
		return f, "invalid page"
	}
	if f.Size, ok = queryInt(r, "size", model.DefaultPageSize); !ok || f.Size < 1 || f.Size > model.MaxPageSize {
		return f, "size must be between 1 and 100"
	}
	for name, dst := range map[string]*int64{"category_id": &f.CategoryID, "owner_id": &f.OwnerID} {
		if v := q.Get(name); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				return f, "invalid " + name
			}
			*dst = id
		}
	}

	switch {
	case f.Condition != "" && !model.ValidCondition(f.Condition):
		return f, "invalid condition"
	case f.Status != "" && !model.ValidItemStatus(f.Status):
		return f, "invalid status"
	}
	switch f.Sort {
	case "", model.SortNewest, model.SortName, model.SortTopRated:
	default:
		return f, "invalid sort"
	}
	return f, ""
}

func (h *ItemsHandler) page(w http.ResponseWriter, r *http.Request, f store.ItemFilter) {
	items, total, err := store.SearchItems(r.Context(), h.DB, f)
	if err != nil {
		slog.Error("failed to search items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	jsonResponse(w, http.StatusOK, model.NewPage(items, f.Page, f.Size, total))
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	f, msg := parseFilter(r)
	if msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}
	f.Query = ""
	h.page(w, r, f)
}

// Search handles GET /api/items/search.
func (h *ItemsHandler) Search(w http.ResponseWriter, r *http.Request) {
	f, msg := parseFilter(r)
	if msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}
	h.page(w, r, f)
}

// liveItem loads a non-deleted item by path ID, writing 400 or 404 when it cannot.
func (h *ItemsHandler) liveItem(w http.ResponseWriter, r *http.Request) *model.Item {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return nil
	}
	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return nil
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return nil
	}
	return item
}

// ownedItem is liveItem restricted to the owner or an admin.
func (h *ItemsHandler) ownedItem(w http.ResponseWriter, r *http.Request) *model.Item {
	item := h.liveItem(w, r)
	if item == nil {
		return nil
	}
	if id, admin := caller(r); !admin && item.OwnerID != id {
		jsonError(w, http.StatusForbidden, "not the owner of this item")
		return nil
	}
	return item
}

// checkCategory writes 400 when the request names an unknown category.
func (h *ItemsHandler) checkCategory(w http.ResponseWriter, r *http.Request, id int64) bool {
	c, err := store.GetCategory(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get category", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save item")
		return false
	}
	if c == nil {
		jsonError(w, http.StatusBadRequest, "category not found")
		return false
	}
	return true
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if item := h.liveItem(w, r); item != nil {
		jsonResponse(w, http.StatusOK, item)
	}
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}
	if !h.checkCategory(w, r, req.CategoryID) {
		return
	}

	ownerID, _ := caller(r)
	item, err := store.CreateItem(r.Context(), h.DB, &model.Item{
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Condition:   req.Condition,
		Deposit:     req.Deposit,
		OwnerID:     ownerID,
	})
	if err != nil {
		slog.Error("failed to create item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	slog.Info("item created", "user", GetClaims(r.Context()).Username, "item", item.Name, "id", item.ID)
	jsonResponse(w, http.StatusCreated, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	item := h.ownedItem(w, r)
	if item == nil {
		return
	}

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}
	if !h.checkCategory(w, r, req.CategoryID) {
		return
	}

	item.Name = req.Name
	item.Description = req.Description
	item.CategoryID = req.CategoryID
	item.Deposit = req.Deposit
	if req.Condition != "" {
		item.Condition = req.Condition
	}
	if err := store.UpdateItem(r.Context(), h.DB, item); err != nil {
		slog.Error("failed to update item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	updated, err := store.GetItem(r.Context(), h.DB, item.ID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

// SetStatus handles PATCH /api/items/{id}/status.
func (h *ItemsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var req itemStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, admin := caller(r)
	item, err := h.Bookings.SetItemStatus(r.Context(), userID, admin, id, req.Status)
	if err != nil {
		writeServiceError(w, r, "update item status", err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	userID, admin := caller(r)
	if err := h.Bookings.DeleteItem(r.Context(), userID, admin, id); err != nil {
		writeServiceError(w, r, "delete item", err)
		return
	}
	jsonMessage(w, "item deleted")
}

// Availability handles GET /api/items/{id}/availability.
func (h *ItemsHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	ranges, err := h.Bookings.Availability(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get availability", err)
		return
	}
	jsonResponse(w, http.StatusOK, ranges)
}

// UploadImage handles POST /api/items/{id}/images with a multipart "image" field.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	item := h.ownedItem(w, r)
	if item == nil {
		return
	}

	// Room for the multipart envelope around a maximum-size photo.
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+64<<10)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	count, err := store.CountItemImages(r.Context(), h.DB, item.ID)
	if err != nil {
		slog.Error("counting item images", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}
	if count >= MaxImagesPerItem {
		jsonError(w, http.StatusConflict, "item already has the maximum number of images")
		return
	}

	photo, err := imaging.Normalize(file)
	if errors.Is(err, imaging.ErrUnsupported) || errors.Is(err, imaging.ErrTooLarge) {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("processing image", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to process image")
		return
	}

	key := uuid.NewString()
	if err := store.AddItemImage(r.Context(), h.DB, item.ID, key, photo.MIME, photo.Data); err != nil {
		slog.Error("saving image", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	slog.Info("item image uploaded", "item", item.ID, "key", key, "bytes", len(photo.Data))
	jsonResponse(w, http.StatusCreated, imageResponse{Key: key, URL: store.ImageURL(item.ID, key)})
}

// GetImage handles GET /api/items/{id}/images/{key}.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	item := h.liveItem(w, r)
	if item == nil {
		return
	}

	img, err := store.GetItemImage(r.Context(), h.DB, item.ID, r.PathValue("key"))
	if err != nil {
		slog.Error("failed to get image", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if img == nil {
		jsonError(w, http.StatusNotFound, "image not found")
		return
	}

	w.Header().Set("Content-Type", img.MIME)
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.Write(img.Data)
}

// DeleteImage handles DELETE /api/items/{id}/images/{key}.
func (h *ItemsHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	item := h.ownedItem(w, r)
	if item == nil {
		return
	}

	deleted, err := store.DeleteItemImage(r.Context(), h.DB, item.ID, r.PathValue("key"))
	if err != nil {
		slog.Error("failed to delete image", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete image")
		return
	}
	if !deleted {
		jsonError(w, http.StatusNotFound, "image not found")
		return
	}
	jsonMessage(w, "image deleted")
}
