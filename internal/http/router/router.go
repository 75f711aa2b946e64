// Package router registers every route of the API on a ServeMux and wraps
// it in the middleware stack.
//
// Route table:
//
//	GET    /students        → list all students
//	GET    /students/{id}   → get one student (or null)
//	POST   /students        → create a student
//	PUT    /students/{id}   → replace a student
//	PATCH  /students/{id}   → update some fields of a student
//	DELETE /students/{id}   → delete a student
//	GET    /healthz         → liveness
//	GET    /metrics         → Prometheus metrics
package router

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/aanand-mishra/scholarship-api/internal/http/handlers/student"
	"github.com/aanand-mishra/scholarship-api/internal/http/middleware"
	"github.com/aanand-mishra/scholarship-api/internal/storage"
	"github.com/aanand-mishra/scholarship-api/internal/update"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Store       storage.Storage
	Builder     *update.Builder
	Log         *zap.Logger
	Metrics     *middleware.Metrics
	CORSOrigins []string
}

// New returns the fully wired HTTP handler.
func New(d Deps) http.Handler {
	if d.Builder == nil {
		d.Builder = update.Default()
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	router := http.NewServeMux()

	handle := func(pattern string, h http.HandlerFunc) {
		router.Handle(pattern, d.Metrics.Instrument(pattern, h))
	}

	handle("GET /students", student.GetList(d.Store, d.Log))
	handle("GET /students/{id}", student.GetByID(d.Store, d.Log))
	handle("POST /students", student.New(d.Store, d.Log))
	handle("PUT /students/{id}", student.Replace(d.Store, d.Log))
	handle("PATCH /students/{id}", student.Patch(d.Store, d.Builder, d.Log))
	handle("DELETE /students/{id}", student.Delete(d.Store, d.Log))

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		router.Handle("GET /metrics", d.Metrics.Handler())
	}

	mws := []middleware.Middleware{middleware.RequestID, middleware.Logger(d.Log)}
	if len(d.CORSOrigins) > 0 {
		mws = append(mws, middleware.CORS(d.CORSOrigins))
	}
	return middleware.Chain(router, mws...)
}
