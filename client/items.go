package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/erazemk/locallend/internal/model"
)

// ItemQuery selects a page of the catalog. Zero fields are not sent.
type ItemQuery struct {
	Query      string
	CategoryID int64
	Condition  string
	Status     string
	OwnerID    int64
	Sort       string // createdAt,desc, name,asc or averageRating,desc
	Page       int
	Size       int
}

func (q ItemQuery) values(withQuery bool) url.Values {
	v := url.Values{}
	if withQuery && q.Query != "" {
		v.Set("query", q.Query)
	}
	if q.CategoryID > 0 {
		v.Set("category_id", strconv.FormatInt(q.CategoryID, 10))
	}
	if q.Condition != "" {
		v.Set("condition", q.Condition)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.OwnerID > 0 {
		v.Set("owner_id", strconv.FormatInt(q.OwnerID, 10))
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Size > 0 {
		v.Set("size", strconv.Itoa(q.Size))
	}
	return v
}

// ItemInput is the body of an item creation or full update.
type ItemInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	CategoryID  int64   `json:"category_id"`
	Condition   string  `json:"condition,omitempty"`
	Deposit     float64 `json:"deposit"`
}

// Image is an uploaded item photo.
type Image struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func (c *Client) itemPage(ctx context.Context, path string, query url.Values) (*ItemPage, error) {
	var page ItemPage
	if err := c.do(ctx, http.MethodGet, path, query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Items returns one page of the catalog. A free-text query goes to the
// search endpoint. When search finds nothing, the matching listing page is
// filtered locally by substring instead.
func (c *Client) Items(ctx context.Context, q ItemQuery) (*ItemPage, error) {
	if q.Query == "" {
		return c.itemPage(ctx, "/items", q.values(false))
	}

	page, err := c.itemPage(ctx, "/items/search", q.values(true))
	if err != nil || page.TotalElements > 0 {
		return page, err
	}

	listing, err := c.itemPage(ctx, "/items", q.values(false))
	if err != nil {
		return nil, err
	}
	var matched []Item
	for _, item := range listing.Content {
		if matchesQuery(item, q.Query) {
			matched = append(matched, item)
		}
	}
	fallback := model.NewPage(matched, listing.Page, listing.Size, int64(len(matched)))
	return &fallback, nil
}

func matchesQuery(item Item, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	return strings.Contains(strings.ToLower(item.Name), query) ||
		strings.Contains(strings.ToLower(item.Description), query)
}

// Item returns one item.
func (c *Client) Item(ctx context.Context, id int64) (*Item, error) {
	var item Item
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/items/%d", id), nil, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem lists a new item owned by the logged-in user.
func (c *Client) CreateItem(ctx context.Context, in ItemInput) (*Item, error) {
	var item Item
	if err := c.do(ctx, http.MethodPost, "/items", nil, in, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem replaces an item's details.
func (c *Client) UpdateItem(ctx context.Context, id int64, in ItemInput) (*Item, error) {
	var item Item
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/items/%d", id), nil, in, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// SetItemStatus marks an item AVAILABLE or UNAVAILABLE.
func (c *Client) SetItemStatus(ctx context.Context, id int64, status string) (*Item, error) {
	var item Item
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/items/%d/status", id), nil, map[string]string{"status": status}, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem removes an item. The server refuses while bookings are open.
func (c *Client) DeleteItem(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/items/%d", id), nil, nil, nil)
}

// Availability lists the date ranges in which an item is already booked.
func (c *Client) Availability(ctx context.Context, id int64) ([]DateRange, error) {
	var ranges []DateRange
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/items/%d/availability", id), nil, nil, &ranges); err != nil {
		return nil, err
	}
	return ranges, nil
}

// UploadImage attaches a JPEG or PNG photo to an item.
func (c *Client) UploadImage(ctx context.Context, itemID int64, filename string, r io.Reader) (*Image, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/items/%d/images", itemID), nil, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var img Image
	if err := decodeBody(resp, &img); err != nil {
		return nil, err
	}
	return &img, nil
}

// DownloadImage copies an item photo to w and returns its content type.
func (c *Client) DownloadImage(ctx context.Context, itemID int64, key string, w io.Writer) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/items/%d/images/%s", itemID, url.PathEscape(key)), nil, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.send(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("downloading image: %w", err)
	}
	return resp.Header.Get("Content-Type"), nil
}

// DeleteImage removes a photo from an item.
func (c *Client) DeleteImage(ctx context.Context, itemID int64, key string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/items/%d/images/%s", itemID, url.PathEscape(key)), nil, nil, nil)
}
