package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/erazemk/locallend/internal/auth"
	"github.com/erazemk/locallend/internal/db"
	"github.com/erazemk/locallend/internal/model"
	"github.com/erazemk/locallend/internal/store"
)

const testJWTSecret = "test-secret"

type testServer struct {
	*httptest.Server
	db *sql.DB
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	database := db.NewSeededTestDB(t)
	server := httptest.NewServer(NewRouter(database, testJWTSecret, cfg))
	t.Cleanup(server.Close)
	return &testServer{Server: server, db: database}
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// call sends a JSON request and decodes the response into out when it is not nil.
func (s *testServer) call(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()
	req, err := authRequest(method, s.URL+path, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	return s.send(t, req, out)
}

func (s *testServer) send(t *testing.T, req *http.Request, out any) int {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", req.Method, req.URL.Path, err)
		}
	}
	return resp.StatusCode
}

type account struct {
	ID    int64
	Token string
}

func (s *testServer) register(t *testing.T, username string) account {
	t.Helper()
	var resp AuthResponse
	status := s.call(t, "POST", "/api/auth/register", "", map[string]string{
		"username": username,
		"name":     strings.ToUpper(username[:1]) + username[1:],
		"email":    username + "@example.com",
		"password": "password123",
	}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d", username, status)
	}
	return account{ID: resp.User.ID, Token: resp.Token}
}

func (s *testServer) admin(t *testing.T) account {
	t.Helper()
	hash, err := auth.HashPassword("admin-password")
	if err != nil {
		t.Fatal(err)
	}
	u, err := store.CreateUser(context.Background(), s.db, &model.User{
		Username:     "admin",
		Name:         "Admin",
		Email:        "admin@example.com",
		PasswordHash: hash,
		Role:         model.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("creating admin: %v", err)
	}
	token, _, err := auth.Issue(testJWTSecret, u.ID, u.Username, u.Role, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return account{ID: u.ID, Token: token}
}

func (s *testServer) toolsCategory(t *testing.T) int64 {
	t.Helper()
	var categories []model.Category
	if status := s.call(t, "GET", "/api/categories/search?term=tool", "", nil, &categories); status != http.StatusOK {
		t.Fatalf("category search: %d", status)
	}
	if len(categories) != 1 || categories[0].Name != "Tools" {
		t.Fatalf("expected Tools category, got %+v", categories)
	}
	return categories[0].ID
}

func (s *testServer) createItem(t *testing.T, owner account, name string) *model.Item {
	t.Helper()
	var item model.Item
	status := s.call(t, "POST", "/api/items", owner.Token, map[string]any{
		"name":        name,
		"description": "Cordless, two batteries",
		"category_id": s.toolsCategory(t),
		"condition":   model.ConditionExcellent,
		"deposit":     25,
	}, &item)
	if status != http.StatusCreated {
		t.Fatalf("create item: expected 201, got %d", status)
	}
	return &item
}

// dates returns a booking range starting offset days from today.
func dates(offset, days int) (string, string) {
	start := model.DateOf(time.Now()).AddDays(offset)
	return start.String(), start.AddDays(days).String()
}

func bookingBody(itemID int64, offset, days int) map[string]any {
	start, end := dates(offset, days)
	return map[string]any{
		"item_id":       itemID,
		"start_date":    start,
		"end_date":      end,
		"booking_notes": "For the weekend",
		"accept_terms":  true,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, Config{})
	s.register(t, "ana")

	status := s.call(t, "POST", "/api/auth/register", "", map[string]string{
		"username": "ana", "name": "Ana", "email": "other@example.com", "password": "password123",
	}, nil)
	if status != http.StatusConflict {
		t.Errorf("duplicate username: expected 409, got %d", status)
	}

	status = s.call(t, "POST", "/api/auth/register", "", map[string]string{
		"username": "bo", "name": "Bo", "email": "bo@example.com", "password": "password123",
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("short username: expected 400, got %d", status)
	}

	status = s.call(t, "POST", "/api/auth/register", "", map[string]string{
		"username": "boris", "name": "Boris", "email": "boris@example.com", "password": "short",
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("short password: expected 400, got %d", status)
	}

	var resp AuthResponse
	status = s.call(t, "POST", "/api/auth/login", "", map[string]string{
		"username_or_email": "ANA@example.com", "password": "password123",
	}, &resp)
	if status != http.StatusOK {
		t.Fatalf("login by email: expected 200, got %d", status)
	}
	if resp.Type != "Bearer" || resp.Token == "" || resp.User.Username != "ana" {
		t.Errorf("unexpected login response %+v", resp)
	}

	status = s.call(t, "POST", "/api/auth/login", "", map[string]string{
		"username_or_email": "ana", "password": "wrong-password",
	}, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("bad password: expected 401, got %d", status)
	}

	var me model.User
	if status := s.call(t, "GET", "/api/auth/me", resp.Token, nil, &me); status != http.StatusOK || me.Username != "ana" {
		t.Errorf("me: status %d, user %+v", status, me)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	s := newTestServer(t, Config{})

	for _, path := range []string{"/api/auth/me", "/api/bookings/my-bookings"} {
		if status := s.call(t, "GET", path, "", nil, nil); status != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, status)
		}
	}
	if status := s.call(t, "GET", "/api/auth/me", "not-a-token", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("garbage token: expected 401, got %d", status)
	}

	// The catalog is public.
	if status := s.call(t, "GET", "/api/items", "", nil, nil); status != http.StatusOK {
		t.Errorf("items: expected 200, got %d", status)
	}
}

func TestUserIDHeader(t *testing.T) {
	s := newTestServer(t, Config{})
	ana := s.register(t, "ana")

	req, _ := authRequest("GET", s.URL+"/api/auth/me", ana.Token, nil)
	req.Header.Set(UserIDHeader, strconv.FormatInt(ana.ID, 10))
	if status := s.send(t, req, nil); status != http.StatusOK {
		t.Errorf("matching header: expected 200, got %d", status)
	}

	req, _ = authRequest("GET", s.URL+"/api/auth/me", ana.Token, nil)
	req.Header.Set(UserIDHeader, strconv.FormatInt(ana.ID+1, 10))
	if status := s.send(t, req, nil); status != http.StatusForbidden {
		t.Errorf("mismatched header: expected 403, got %d", status)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t, Config{})
	ana := s.register(t, "ana")

	if status := s.call(t, "POST", "/api/auth/logout", ana.Token, nil, nil); status != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", status)
	}
	if status := s.call(t, "GET", "/api/auth/me", ana.Token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("revoked token: expected 401, got %d", status)
	}
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(t, Config{})
	ana := s.register(t, "ana")

	status := s.call(t, "PUT", "/api/auth/password", ana.Token, map[string]string{
		"current_password": "nope-nope", "new_password": "new-password",
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("wrong current password: expected 400, got %d", status)
	}

	status = s.call(t, "PUT", "/api/auth/password", ana.Token, map[string]string{
		"current_password": "password123", "new_password": "new-password",
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("change password: expected 200, got %d", status)
	}

	status = s.call(t, "POST", "/api/auth/login", "", map[string]string{
		"username_or_email": "ana", "password": "new-password",
	}, nil)
	if status != http.StatusOK {
		t.Errorf("login with new password: expected 200, got %d", status)
	}
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, Config{AuthAttemptsPerMinute: 2})

	body := map[string]string{"username_or_email": "nobody", "password": "password123"}
	for i := 0; i < 2; i++ {
		if status := s.call(t, "POST", "/api/auth/login", "", body, nil); status != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, status)
		}
	}
	if status := s.call(t, "POST", "/api/auth/login", "", body, nil); status != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", status)
	}
}

func TestAuthRateLimitIgnoresForwardedFor(t *testing.T) {
	body := map[string]string{"username_or_email": "nobody", "password": "password123"}
	login := func(s *testServer, i int) int {
		req, err := authRequest("POST", s.URL+"/api/auth/login", "", body)
		if err != nil {
			t.Fatalf("building request: %v", err)
		}
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		return s.send(t, req, nil)
	}

	s := newTestServer(t, Config{AuthAttemptsPerMinute: 2})
	limited := 0
	for i := 0; i < 10; i++ {
		if login(s, i) == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 8 {
		t.Errorf("spoofed addresses: expected 8 limited attempts, got %d", limited)
	}

	proxied := newTestServer(t, Config{AuthAttemptsPerMinute: 2, TrustProxy: true})
	for i := 0; i < 10; i++ {
		if status := login(proxied, i); status != http.StatusUnauthorized {
			t.Errorf("behind trusted proxy, attempt %d: expected 401, got %d", i+1, status)
		}
	}
}

func TestIPLimiterEvictsIdleAddresses(t *testing.T) {
	now := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	l := newIPLimiter(1)
	l.now = func() time.Time { return now }

	if !l.allow("192.0.2.1:1000") || l.allow("192.0.2.1:1001") {
		t.Fatal("expected one request per minute from the same host")
	}
	l.allow("192.0.2.2:1000")
	if len(l.limiters) != 2 {
		t.Fatalf("expected 2 tracked hosts, got %d", len(l.limiters))
	}

	now = now.Add(limiterIdleTTL)
	if !l.allow("192.0.2.3:1000") {
		t.Fatal("new host should be allowed")
	}
	if len(l.limiters) != 1 {
		t.Errorf("idle hosts should be evicted, %d tracked", len(l.limiters))
	}
	if !l.allow("192.0.2.1:1000") {
		t.Error("evicted host should start with a fresh allowance")
	}
}

func TestAdminAccess(t *testing.T) {
	s := newTestServer(t, Config{})
	ana := s.register(t, "ana")
	admin := s.admin(t)

	if status := s.call(t, "GET", "/api/users", ana.Token, nil, nil); status != http.StatusForbidden {
		t.Errorf("user listing users: expected 403, got %d", status)
	}
	if status := s.call(t, "GET", "/api/bookings/overdue", ana.Token, nil, nil); status != http.StatusForbidden {
		t.Errorf("user listing overdue: expected 403, got %d", status)
	}

	var users []model.User
	if status := s.call(t, "GET", "/api/users", admin.Token, nil, &users); status != http.StatusOK || len(users) != 2 {
		t.Errorf("admin listing users: status %d, %d users", status, len(users))
	}

	path := fmt.Sprintf("/api/users/%d/role", ana.ID)
	if status := s.call(t, "PUT", path, admin.Token, map[string]string{"role": "SUPERUSER"}, nil); status != http.StatusBadRequest {
		t.Errorf("invalid role: expected 400, got %d", status)
	}
	if status := s.call(t, "PUT", path, admin.Token, map[string]string{"role": model.RoleAdmin}, nil); status != http.StatusOK {
		t.Fatalf("promote: expected 200, got %d", status)
	}
	// The promotion applies to the existing token.
	if status := s.call(t, "GET", "/api/users", ana.Token, nil, nil); status != http.StatusOK {
		t.Errorf("promoted user listing users: expected 200, got %d", status)
	}

	if status := s.call(t, "DELETE", fmt.Sprintf("/api/users/%d", admin.ID), admin.Token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("self delete: expected 400, got %d", status)
	}
	if status := s.call(t, "DELETE", fmt.Sprintf("/api/users/%d", ana.ID), admin.Token, nil, nil); status != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", status)
	}
	if status := s.call(t, "GET", "/api/auth/me", ana.Token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("deleted user: expected 401, got %d", status)
	}
}

func TestCategoriesAPI(t *testing.T) {
	s := newTestServer(t, Config{})
	admin := s.admin(t)
	ana := s.register(t, "ana")

	var categories []model.Category
	if status := s.call(t, "GET", "/api/categories?sort=name&root=true", "", nil, &categories); status != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", status)
	}
	if len(categories) != len(db.DefaultCategories) || categories[0].Name != "Appliances" {
		t.Errorf("unexpected categories %+v", categories)
	}
	if status := s.call(t, "GET", "/api/categories?sort=random", "", nil, nil); status != http.StatusBadRequest {
		t.Errorf("bad sort: expected 400, got %d", status)
	}

	tools := s.toolsCategory(t)
	body := map[string]any{"name": "Power Tools", "parent_id": tools}
	if status := s.call(t, "POST", "/api/categories", ana.Token, body, nil); status != http.StatusForbidden {
		t.Errorf("user creating category: expected 403, got %d", status)
	}
	var created model.Category
	if status := s.call(t, "POST", "/api/categories", admin.Token, body, &created); status != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", status)
	}
	if status := s.call(t, "POST", "/api/categories", admin.Token, map[string]any{"name": "power tools"}, nil); status != http.StatusConflict {
		t.Errorf("duplicate name: expected 409, got %d", status)
	}

	var subs []model.Category
	if status := s.call(t, "GET", fmt.Sprintf("/api/categories/%d/subcategories", tools), "", nil, &subs); status != http.StatusOK {
		t.Fatalf("subcategories: expected 200, got %d", status)
	}
	if len(subs) != 1 || subs[0].ID != created.ID {
		t.Errorf("unexpected subcategories %+v", subs)
	}

	var parent model.Category
	s.call(t, "GET", fmt.Sprintf("/api/categories/%d", tools), "", nil, &parent)
	if !parent.HasSubcategories {
		t.Error("expected parent to report subcategories")
	}
	if status := s.call(t, "GET", "/api/categories/999", "", nil, nil); status != http.StatusNotFound {
		t.Errorf("missing category: expected 404, got %d", status)
	}
}

func TestItemCatalogAPI(t *testing.T) {
	s := newTestServer(t, Config{})
	ana := s.register(t, "ana")
	bo := s.register(t, "boris")

	s.createItem(t, ana, "Drill")
	s.createItem(t, ana, "Ladder")
	s.createItem(t, bo, "Hammer drill")

	var page model.Page[model.Item]
	if status := s.call(t, "GET", "/api/items?size=2&sort=name,asc", "", nil, &page); status != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", status)
	}
	if page.TotalElements != 3 || page.TotalPages != 2 || !page.First || page.Last || len(page.Content) != 2 {
		t.Errorf("unexpected page %+v", page)
	}
	if page.Content[0].Name != "Drill" {
		t.Errorf("expected Drill first, got %s", page.Content[0].Name)
	}

	if status := s.call(t, "GET", "/api/items/search?query=DRILL", "", nil, &page); status != http.StatusOK {
		t.Fatalf("search: expected 200, got %d", status)
	}
	if page.TotalElements != 2 {
		t.Errorf("search: expected 2 matches, got %d", page.TotalElements)
	}

	if status := s.call(t, "GET", fmt.Sprintf("/api/items?owner_id=%d", bo.ID), "", nil, &page); status != http.StatusOK || page.TotalElements != 1 {
		t.Errorf("owner filter: status %d, %d items", status, page.TotalElements)
	}

	for _, q := range []string{"size=0", "size=101", "page=-1", "condition=SHINY", "sort=price", "category_id=x"} {
		if status := s.call(t, "GET", "/api/items?"+q, "", nil, nil); status != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, status)
		}
	}
}

func TestItemOwnership(t *testing.T) {
	s := newTestServer(t, Config{})
	ana := s.register(t, "ana")
	bo := s.register(t, "boris")
	item := s.createItem(t, ana, "Drill")
	path := fmt.Sprintf("/api/items/%d", item.ID)

	if item.Condition != model.ConditionExcellent || item.Status != model.ItemStatusAvailable || item.OwnerID != ana.ID {
		t.Errorf("unexpected item %+v", item)
	}

	update := map[string]any{"name": "Drill v2", "category_id": item.CategoryID, "deposit": 30}
	if status := s.call(t, "PUT", path, bo.Token, update, nil); status != http.StatusForbidden {
		t.Errorf("foreign update: expected 403, got %d", status)
	}
	var updated model.Item
	if status := s.call(t, "PUT", path, ana.Token, update, &updated); status != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", status)
	}
	if updated.Name != "Drill v2" || updated.Deposit != 30 || updated.Condition != model.ConditionExcellent {
		t.Errorf("unexpected update result %+v", updated)
	}

	status := s.call(t, "PATCH", path+"/status", ana.Token, map[string]string{"status": model.ItemStatusBorrowed}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("manual BORROWED: expected 400, got %d", status)
	}
	status = s.call(t, "PATCH", path+"/status", ana.Token, map[string]string{"status": model.ItemStatusUnavailable}, &updated)
	if status != http.StatusOK || updated.Status != model.ItemStatusUnavailable {
		t.Errorf("status change: %d %+v", status, updated)
	}

	if status := s.call(t, "DELETE", path, bo.Token, nil, nil); status != http.StatusForbidden {
		t.Errorf("foreign delete: expected 403, got %d", status)
	}
	if status := s.call(t, "DELETE", path, ana.Token, nil, nil); status != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", status)
	}
	if status := s.call(t, "GET", path, "", nil, nil); status != http.StatusNotFound {
		t.Errorf("deleted item: expected 404, got %d", status)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for x := 0; x < 40; x++ {
		for y := 0; y < 30; y++ {
			img.Set(x, y, color.RGBA{200, 80, 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func (s *testServer) upload(t *testing.T, itemID int64, token string, data []byte, out any) int {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()

	req, _ := http.NewRequest("POST", fmt.Sprintf("%s/api/items/%d/images", s.URL, itemID), &body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.send(t, req, out)
}

func TestItemImages(t *testing.T) {
	s := newTestServer(t, Config{})
	ana := s.register(t, "ana")
	bo := s.register(t, "boris")
	item := s.createItem(t, ana, "Drill")

	if status := s.upload(t, item.ID, bo.Token, pngBytes(t), nil); status != http.StatusForbidden {
		t.Errorf("foreign upload: expected 403, got %d", status)
	}
	if status := s.upload(t, item.ID, ana.Token, []byte("GIF89a not really"), nil); status != http.StatusBadRequest {
		t.Errorf("gif upload: expected 400, got %d", status)
	}

	var img imageResponse
	if status := s.upload(t, item.ID, ana.Token, pngBytes(t), &img); status != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d", status)
	}

	var got model.Item
	s.call(t, "GET", fmt.Sprintf("/api/items/%d", item.ID), "", nil, &got)
	if len(got.Images) != 1 || got.Images[0] != img.URL {
		t.Errorf("item images = %v, want [%s]", got.Images, img.URL)
	}

	resp, err := http.Get(s.URL + img.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/jpeg" {
		t.Errorf("get image: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	if status := s.call(t, "DELETE", img.URL, ana.Token, nil, nil); status != http.StatusOK {
		t.Fatalf("delete image: expected 200, got %d", status)
	}
	if status := s.call(t, "GET", img.URL, "", nil, nil); status != http.StatusNotFound {
		t.Errorf("deleted image: expected 404, got %d", status)
	}

	if status := s.upload(t, item.ID, ana.Token, pngBytes(t), &img); status != http.StatusCreated {
		t.Fatalf("second upload: expected 201, got %d", status)
	}
	if status := s.call(t, "DELETE", fmt.Sprintf("/api/items/%d", item.ID), ana.Token, nil, nil); status != http.StatusOK {
		t.Fatalf("delete item: expected 200, got %d", status)
	}
	if status := s.call(t, "GET", img.URL, "", nil, nil); status != http.StatusNotFound {
		t.Errorf("image of deleted item: expected 404, got %d", status)
	}
}

func TestBookingAPIFlow(t *testing.T) {
	s := newTestServer(t, Config{})
	owner := s.register(t, "owner")
	borrower := s.register(t, "borrower")
	item := s.createItem(t, owner, "Drill")

	// camelCase bodies fail loudly.
	start, end := dates(5, 2)
	status := s.call(t, "POST", "/api/bookings", borrower.Token, map[string]any{
		"itemId": item.ID, "startDate": start, "endDate": end, "acceptTerms": true,
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("camelCase body: expected 400, got %d", status)
	}

	if status := s.call(t, "POST", "/api/bookings", owner.Token, bookingBody(item.ID, 5, 2), nil); status != http.StatusBadRequest {
		t.Errorf("own item: expected 400, got %d", status)
	}
	if status := s.call(t, "POST", "/api/bookings", borrower.Token, bookingBody(item.ID, 0, 2), nil); status != http.StatusBadRequest {
		t.Errorf("starting today: expected 400, got %d", status)
	}

	var b model.Booking
	if status := s.call(t, "POST", "/api/bookings", borrower.Token, bookingBody(item.ID, 5, 2), &b); status != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", status)
	}
	if b.Status != model.BookingPending || b.DepositAmount != 25 || b.DurationDays != 2 {
		t.Errorf("unexpected booking %+v", b)
	}
	path := fmt.Sprintf("/api/bookings/%d", b.ID)

	if status := s.call(t, "PATCH", path+"/confirm", borrower.Token, nil, nil); status != http.StatusForbidden {
		t.Errorf("borrower confirming: expected 403, got %d", status)
	}
	if status := s.call(t, "PATCH", path+"/confirm", owner.Token, map[string]string{"owner_notes": "Ring twice"}, &b); status != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", status)
	}
	if b.Status != model.BookingConfirmed || b.OwnerNotes != "Ring twice" {
		t.Errorf("unexpected confirmed booking %+v", b)
	}

	if status := s.call(t, "POST", "/api/bookings", borrower.Token, bookingBody(item.ID, 6, 3), nil); status != http.StatusConflict {
		t.Errorf("overlapping booking: expected 409, got %d", status)
	}
	var ranges []model.DateRange
	s.call(t, "GET", fmt.Sprintf("/api/items/%d/availability", item.ID), "", nil, &ranges)
	if len(ranges) != 1 || ranges[0].BookingID != b.ID {
		t.Errorf("availability = %+v", ranges)
	}

	if status := s.call(t, "PATCH", path+"/activate", borrower.Token, map[string]bool{"deposit_paid": true}, &b); status != http.StatusOK {
		t.Fatalf("activate: expected 200, got %d", status)
	}
	var got model.Item
	s.call(t, "GET", fmt.Sprintf("/api/items/%d", item.ID), "", nil, &got)
	if b.Status != model.BookingActive || !b.DepositPaid || got.Status != model.ItemStatusBorrowed {
		t.Errorf("after activation: booking %s, item %s", b.Status, got.Status)
	}

	if status := s.call(t, "DELETE", fmt.Sprintf("/api/items/%d", item.ID), owner.Token, nil, nil); status != http.StatusConflict {
		t.Errorf("delete with open booking: expected 409, got %d", status)
	}

	if status := s.call(t, "PATCH", path+"/complete", owner.Token, nil, &b); status != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d", status)
	}
	s.call(t, "GET", fmt.Sprintf("/api/items/%d", item.ID), "", nil, &got)
	if b.Status != model.BookingCompleted || got.Status != model.ItemStatusAvailable {
		t.Errorf("after completion: booking %s, item %s", b.Status, got.Status)
	}

	if status := s.call(t, "PATCH", path+"/cancel", borrower.Token, nil, nil); status != http.StatusConflict {
		t.Errorf("cancel completed: expected 409, got %d", status)
	}

	var mine []model.Booking
	if status := s.call(t, "GET", "/api/bookings/my-bookings?status=COMPLETED", borrower.Token, nil, &mine); status != http.StatusOK || len(mine) != 1 {
		t.Errorf("my-bookings: status %d, %d bookings", status, len(mine))
	}
	var owned []model.Booking
	if status := s.call(t, "GET", "/api/bookings/my-owned", owner.Token, nil, &owned); status != http.StatusOK || len(owned) != 1 {
		t.Errorf("my-owned: status %d, %d bookings", status, len(owned))
	}
	if status := s.call(t, "GET", "/api/bookings/my-owned?status=LOST", owner.Token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("bad status filter: expected 400, got %d", status)
	}
}

func TestRatingsAPI(t *testing.T) {
	s := newTestServer(t, Config{})
	owner := s.register(t, "owner")
	borrower := s.register(t, "borrower")
	stranger := s.register(t, "stranger")
	item := s.createItem(t, owner, "Drill")

	var b model.Booking
	s.call(t, "POST", "/api/bookings", borrower.Token, bookingBody(item.ID, 3, 1), &b)
	canRatePath := fmt.Sprintf("/api/ratings/can-rate/%d", b.ID)

	var cr model.CanRate
	if status := s.call(t, "GET", canRatePath, borrower.Token, nil, &cr); status != http.StatusOK || cr.CanRate {
		t.Errorf("can-rate before completion: status %d, %+v", status, cr)
	}

	for _, step := range []struct {
		action string
		token  string
	}{{"confirm", owner.Token}, {"activate", borrower.Token}, {"complete", borrower.Token}} {
		if status := s.call(t, "PATCH", fmt.Sprintf("/api/bookings/%d/%s", b.ID, step.action), step.token, nil, nil); status != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", step.action, status)
		}
	}

	if status := s.call(t, "GET", canRatePath, borrower.Token, nil, &cr); status != http.StatusOK || !cr.CanRate {
		t.Errorf("can-rate after completion: status %d, %+v", status, cr)
	}
	if status := s.call(t, "GET", canRatePath, stranger.Token, nil, nil); status != http.StatusForbidden {
		t.Errorf("stranger can-rate: expected 403, got %d", status)
	}

	var rating model.Rating
	status := s.call(t, "POST", "/api/ratings", borrower.Token, map[string]any{
		"booking_id": b.ID, "rating_type": model.RatingBorrowerToOwner, "rating": 3,
		"comment": "Late to hand over", "is_anonymous": true,
	}, &rating)
	if status != http.StatusCreated {
		t.Fatalf("rate owner: expected 201, got %d", status)
	}
	if rating.RaterID != nil || rating.RaterUsername != "" {
		t.Errorf("anonymous rating leaked rater: %+v", rating)
	}

	status = s.call(t, "POST", "/api/ratings", borrower.Token, map[string]any{
		"booking_id": b.ID, "rating_type": model.RatingBorrowerToOwner, "rating": 5,
	}, nil)
	if status != http.StatusConflict {
		t.Errorf("duplicate rating: expected 409, got %d", status)
	}

	s.call(t, "POST", "/api/ratings", borrower.Token, map[string]any{
		"booking_id": b.ID, "rating_type": model.RatingItem, "rating": 4,
	}, nil)

	var received []model.Rating
	s.call(t, "GET", fmt.Sprintf("/api/ratings/user/%d", owner.ID), "", nil, &received)
	if len(received) != 1 || received[0].RaterID != nil {
		t.Errorf("received ratings = %+v", received)
	}
	var given []model.Rating
	s.call(t, "GET", fmt.Sprintf("/api/ratings/user/%d?type=given", borrower.ID), "", nil, &given)
	if len(given) != 1 || given[0].Type != model.RatingItem {
		t.Errorf("given ratings = %+v", given)
	}
	var itemRatings []model.Rating
	s.call(t, "GET", fmt.Sprintf("/api/ratings/item/%d", item.ID), "", nil, &itemRatings)
	if len(itemRatings) != 1 || itemRatings[0].Value != 4 {
		t.Errorf("item ratings = %+v", itemRatings)
	}

	var profile model.PublicUser
	if status := s.call(t, "GET", fmt.Sprintf("/api/users/%d", owner.ID), "", nil, &profile); status != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d", status)
	}
	if profile.TrustScore != 3.5 || profile.TrustCategory != "High" || profile.LenderRatingCount != 1 {
		t.Errorf("unexpected profile %+v", profile)
	}
}
