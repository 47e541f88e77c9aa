// Package server exposes identity resolution over HTTP.
//
//	GET  /identity      resolve the caller's token to a user id
//	GET  /keys          list loaded key ids
//	GET  /healthz       liveness with key count
//	GET  /metrics       prometheus metrics
//	GET  /audit         recent resolutions (admin, audit enabled)
//	POST /keys/reload   reload the key directory (admin)
package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"git.sr.ht/~jakintosh/ssoguard/internal/database"
	"git.sr.ht/~jakintosh/ssoguard/pkg/identity"
	"git.sr.ht/~jakintosh/ssoguard/pkg/keys"
)

// KeySource is the key set the server reports on and reloads. *keys.Ring
// satisfies it.
type KeySource interface {
	Current() *keys.Store
	Reload()
}

// AuditStore records identity resolutions. *database.SQLiteStore
// satisfies it.
type AuditStore interface {
	InsertVerification(v *database.Verification) error
	RecentVerifications(limit int) ([]database.Verification, error)
}

type Server struct {
	resolver *identity.Resolver
	keys     KeySource
	audit    AuditStore
	admin    *adminCredentials
	metrics  *Metrics
	now      func() time.Time
}

type Option func(*Server)

// WithAudit records every /identity request in store.
func WithAudit(store AuditStore) Option {
	return func(s *Server) {
		s.audit = store
	}
}

// WithAdmin enables the admin endpoints behind basic auth. passwordHash is a
// bcrypt hash.
func WithAdmin(user string, passwordHash string) Option {
	return func(s *Server) {
		s.admin = &adminCredentials{
			user: user,
			hash: []byte(passwordHash),
		}
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

func New(
	resolver *identity.Resolver,
	keySource KeySource,
	opts ...Option,
) *Server {
	s := &Server{
		resolver: resolver,
		keys:     keySource,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.metrics.watchKeys(keySource)
	return s
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.Use(s.metrics.instrument)

	r.HandleFunc("/identity", s.handleIdentity).Methods(http.MethodGet)
	r.HandleFunc("/keys", s.handleKeys).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	if s.admin != nil {
		admin := r.NewRoute().Subrouter()
		admin.Use(s.admin.require)
		admin.HandleFunc("/keys/reload", s.handleReload).Methods(http.MethodPost)
		if s.audit != nil {
			admin.HandleFunc("/audit", s.handleAudit).Methods(http.MethodGet)
		}
	}

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		log.Printf("%s %s: %d (%s)\n", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
