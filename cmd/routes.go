package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.requestID, app.logRequest, secureHeaders, makeResponseJSON)
	fileMiddleware := alice.New(app.recoverPanic, app.requestID, app.logRequest, secureHeaders)

	api := strings.TrimRight(app.cfg.Server.APIPrefix, "/")
	uploads := strings.TrimRight(app.cfg.Server.UploadsPrefix, "/")
	h := app.listingHandler

	mux := pat.New()

	// Listings
	mux.Post(api+"/products", standardMiddleware.ThenFunc(h.CreateListing))
	mux.Get(api+"/products", standardMiddleware.ThenFunc(h.GetListings))
	mux.Get(api+"/products/export.xlsx", standardMiddleware.ThenFunc(h.ExportListings))
	mux.Get(api+"/products/:id", standardMiddleware.ThenFunc(h.GetListingByID))
	mux.Put(api+"/products/:id", standardMiddleware.ThenFunc(h.UpdateListing))
	mux.Del(api+"/products/:id", standardMiddleware.ThenFunc(h.DeleteListing))

	// Uploaded photos
	mux.Get(uploads+"/", fileMiddleware.Then(http.StripPrefix(uploads+"/", noDirListing(http.FileServer(http.Dir(app.uploads.Dir))))))

	// Live feed
	mux.Get("/ws/products", fileMiddleware.Then(app.wsManager))

	mux.Get("/healthz", standardMiddleware.ThenFunc(app.healthz))
	mux.NotFound = standardMiddleware.ThenFunc(notFound)

	return mux
}

func (app *application) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := app.db.PingContext(ctx); err != nil {
		app.log.WithError(err).Error("health check: database unreachable")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "database unreachable"})
		return
	}
	subscribers, _ := app.wsManager.Clients(ctx)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "subscribers": subscribers})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
}

func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
