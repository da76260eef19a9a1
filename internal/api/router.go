// Package api serves the LocalLend REST API under /api.
package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/erazemk/locallend/internal/booking"
	"github.com/erazemk/locallend/internal/model"
)

// Config holds optional router settings.
type Config struct {
	// Bookings runs the lending lifecycle. Defaults to a service with
	// booking.DefaultPolicy.
	Bookings *booking.Service
	// AuthAttemptsPerMinute limits register and login per client address.
	// Zero disables the limit.
	AuthAttemptsPerMinute int
	// TrustProxy takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable it only behind a reverse proxy that sets them.
	TrustProxy bool
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, cfg Config) http.Handler {
	svc := cfg.Bookings
	if svc == nil {
		svc = booking.NewService(db, booking.DefaultPolicy())
	}

	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	categoriesHandler := &CategoriesHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db, Bookings: svc}
	bookingsHandler := &BookingsHandler{Bookings: svc}
	ratingsHandler := &RatingsHandler{DB: db, Bookings: svc}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	limiter := newIPLimiter(cfg.AuthAttemptsPerMinute)
	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Auth.
	mux.Handle("POST /api/auth/register", limiter.Limit(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/auth/login", limiter.Limit(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))
	mux.Handle("GET /api/auth/me", authed(authHandler.Me))
	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))

	// Users.
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.HandleFunc("GET /api/users/{id}", usersHandler.Profile)
	mux.Handle("PUT /api/users/me", authed(usersHandler.UpdateMe))
	mux.Handle("PUT /api/users/{id}/role", admin(usersHandler.SetRole))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Categories: public reads, admin writes.
	mux.HandleFunc("GET /api/categories", categoriesHandler.List)
	mux.HandleFunc("GET /api/categories/search", categoriesHandler.Search)
	mux.HandleFunc("GET /api/categories/{id}", categoriesHandler.Get)
	mux.HandleFunc("GET /api/categories/{id}/subcategories", categoriesHandler.Subcategories)
	mux.Handle("POST /api/categories", admin(categoriesHandler.Create))

	// Items: public catalog, owner writes.
	mux.HandleFunc("GET /api/items", itemsHandler.List)
	mux.HandleFunc("GET /api/items/search", itemsHandler.Search)
	mux.HandleFunc("GET /api/items/{id}", itemsHandler.Get)
	mux.HandleFunc("GET /api/items/{id}/availability", itemsHandler.Availability)
	mux.HandleFunc("GET /api/items/{id}/images/{key}", itemsHandler.GetImage)
	mux.Handle("POST /api/items", authed(itemsHandler.Create))
	mux.Handle("PUT /api/items/{id}", authed(itemsHandler.Update))
	mux.Handle("PATCH /api/items/{id}/status", authed(itemsHandler.SetStatus))
	mux.Handle("DELETE /api/items/{id}", authed(itemsHandler.Delete))
	mux.Handle("POST /api/items/{id}/images", authed(itemsHandler.UploadImage))
	mux.Handle("DELETE /api/items/{id}/images/{key}", authed(itemsHandler.DeleteImage))

	// Bookings.
	mux.Handle("POST /api/bookings", authed(bookingsHandler.Create))
	mux.Handle("GET /api/bookings/my-bookings", authed(bookingsHandler.Mine))
	mux.Handle("GET /api/bookings/my-owned", authed(bookingsHandler.Owned))
	mux.Handle("GET /api/bookings/overdue", admin(bookingsHandler.Overdue))
	mux.Handle("GET /api/bookings/{id}", authed(bookingsHandler.Get))
	mux.Handle("PATCH /api/bookings/{id}/confirm", authed(bookingsHandler.Confirm))
	mux.Handle("PATCH /api/bookings/{id}/reject", authed(bookingsHandler.Reject))
	mux.Handle("PATCH /api/bookings/{id}/activate", authed(bookingsHandler.Activate))
	mux.Handle("PATCH /api/bookings/{id}/complete", authed(bookingsHandler.Complete))
	mux.Handle("PATCH /api/bookings/{id}/cancel", authed(bookingsHandler.Cancel))

	// Ratings.
	mux.Handle("POST /api/ratings", authed(ratingsHandler.Create))
	mux.Handle("GET /api/ratings/can-rate/{bookingId}", authed(ratingsHandler.CanRate))
	mux.HandleFunc("GET /api/ratings/user/{id}", ratingsHandler.ForUser)
	mux.HandleFunc("GET /api/ratings/item/{id}", ratingsHandler.ForItem)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Handle("/api/*", mux)
	return r
}
