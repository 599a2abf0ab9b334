// Package web serves the HTML form of the tool.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/replication"
)

// Manager runs the operations offered by the form.
type Manager interface {
	CreateTable(ctx context.Context, tableName string) pgrepl.Report
	AddRow(ctx context.Context, tableName, data string) pgrepl.Report
	DeleteRow(ctx context.Context, tableName string, id int64) pgrepl.Report
	DropTable(ctx context.Context, tableName string) pgrepl.Report
	SetupReplication(ctx context.Context) pgrepl.Report
	ListTables(ctx context.Context) (pgrepl.Tables, error)
	ShowRows(ctx context.Context, tableName string) (pgrepl.Rows, error)
	ReplicationStatus(ctx context.Context) (replication.Status, error)
}

// NewRouter constructs the HTTP router of the form.
func NewRouter(manager Manager, logger logrus.FieldLogger) http.Handler {
	h := &handler{manager: manager, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/", h.index)
	r.Post("/tables", h.createTable)
	r.Get("/tables/{table}", h.showRows)
	r.Post("/tables/drop", h.dropTable)
	r.Post("/rows", h.addRow)
	r.Post("/rows/delete", h.deleteRow)
	r.Post("/replication/setup", h.setupReplication)
	r.Get("/replication/status", h.replicationStatus)

	return r
}

func requestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.WithFields(logrus.Fields{
					"request_id":  middleware.GetReqID(r.Context()),
					"remote_addr": r.RemoteAddr,
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      ww.Status(),
					"duration_ms": time.Since(start).Milliseconds(),
				}).Info("request handled")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
