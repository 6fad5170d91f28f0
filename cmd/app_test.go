package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kostBack/internal/config"
	"kostBack/internal/models"
)

func newTestApp(t *testing.T) (*application, sqlmock.Sqlmock, *test.Hook) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	cfg.Uploads.Dir = t.TempDir()
	cfg.Cleaner.Schedule = ""

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	app, err := initializeApp(cfg, db, nil, logger)
	require.NoError(t, err)
	return app, mock, hook
}

func TestRoutes_ListingLifecycle(t *testing.T) {
	app, mock, _ := newTestApp(t)
	srv := httptest.NewServer(app.routes())
	defer srv.Close()

	mock.ExpectExec(`INSERT INTO products`).WillReturnResult(sqlmock.NewResult(7, 1))
	resp, err := http.Post(srv.URL+"/api/products", "application/x-www-form-urlencoded",
		strings.NewReader(`namaKost=Kost+A&fasilitasKamar=%5B%22AC%22%2C%22Kasur%22%5D`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var created map[string]int64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, int64(7), created["id"])

	mock.ExpectExec(`UPDATE products`).WillReturnResult(sqlmock.NewResult(0, 0))
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/products/999", strings.NewReader(`{"namaKost":"X"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoutes_ServesUploads(t *testing.T) {
	app, _, _ := newTestApp(t)
	require.NoError(t, os.WriteFile(filepath.Join(app.uploads.Dir, "fotoKost-1.png"), []byte("\x89PNG\r\n\x1a\n"), 0o644))

	rec := httptest.NewRecorder()
	app.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/fotoKost-1.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	app.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_NotFoundIsJSON(t *testing.T) {
	app, _, _ := newTestApp(t)

	rec := httptest.NewRecorder()
	app.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	app, mock, _ := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go app.wsManager.Run(ctx)

	mock.ExpectPing()
	rec := httptest.NewRecorder()
	app.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","subscribers":0}`, rec.Body.String())
}

func TestRecoverPanic(t *testing.T) {
	app, _, hook := newTestApp(t)
	h := app.recoverPanic(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "close", rec.Header().Get("Connection"))
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestLogRequestRecordsStatus(t *testing.T) {
	app, _, hook := newTestApp(t)
	h := app.requestID(app.logRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/tea", nil)
	req.Header.Set("X-Request-ID", "req-9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, "req-9", entry.Data["request_id"])
	assert.Equal(t, "/tea", entry.Data["uri"])
}

func TestSecureHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	secureHeaders(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "deny", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestWebSocketFeed(t *testing.T) {
	app, mock, _ := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go app.wsManager.Run(ctx)

	srv := httptest.NewServer(app.routes())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/products", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		n, err := app.wsManager.Clients(ctx)
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	mock.ExpectExec(`DELETE FROM products`).WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(0, 1))
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/products/4", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event models.ListingEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, models.EventListingDeleted, event.Type)
	assert.Equal(t, int64(4), event.ID)
}

func TestPublishDoesNotBlockWithoutRun(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ws := NewWebSocketManager(logger)
	for i := 0; i < eventBuffer+5; i++ {
		ws.Publish(models.ListingEvent{Type: models.EventListingCreated, ID: int64(i)})
	}
}

func TestStartUploadCleaner(t *testing.T) {
	app, _, _ := newTestApp(t)

	c, err := startUploadCleaner(context.Background(), app)
	require.NoError(t, err)
	assert.Nil(t, c)

	app.cfg.Cleaner.Schedule = "not a schedule"
	_, err = startUploadCleaner(context.Background(), app)
	assert.Error(t, err)

	app.cfg.Cleaner.Schedule = "@every 1h"
	c, err = startUploadCleaner(context.Background(), app)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Len(t, c.Entries(), 1)
	c.Stop()
}

func TestSweepUploads(t *testing.T) {
	app, mock, _ := newTestApp(t)
	app.cfg.Cleaner.Grace = time.Hour

	old := time.Now().Add(-3 * time.Hour)
	for _, name := range []string{"fotoKost-1.jpg", "fotoKost-2.jpg"} {
		p := filepath.Join(app.uploads.Dir, name)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(p, old, old))
	}
	mock.ExpectQuery(`SELECT fotoKost, fotoLuarKamar, fotoDalamKamar FROM products`).
		WillReturnRows(sqlmock.NewRows([]string{"fotoKost", "fotoLuarKamar", "fotoDalamKamar"}).
			AddRow("fotoKost-2.jpg", nil, nil))

	assert.Equal(t, 1, app.sweepUploads(context.Background()))
	_, err := os.Stat(filepath.Join(app.uploads.Dir, "fotoKost-2.jpg"))
	assert.NoError(t, err)
}
