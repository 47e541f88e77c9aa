package server

import (
	"log"
	"net/http"
	"strconv"

	"git.sr.ht/~jakintosh/ssoguard/internal/database"
	"git.sr.ht/~jakintosh/ssoguard/pkg/api"
	"git.sr.ht/~jakintosh/ssoguard/pkg/identity"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	res := api.NewResponse("api.identity.read")
	token := identity.TokenFromRequest(r)

	userID := s.resolver.FetchUserID(token, res)
	if !res.Failed() {
		res.Put("userId", userID)
	}

	outcome := outcomeOf(res)
	s.metrics.resolutions.WithLabelValues(outcome).Inc()
	s.record(token, userID, outcome, res.ResponseCode)

	res.Write(w)
}

func outcomeOf(res *api.Response) string {
	switch {
	case !res.Failed():
		return database.OutcomeResolved
	case res.ResponseCode == http.StatusBadRequest:
		return database.OutcomeMissing
	case res.ResponseCode == http.StatusUnauthorized:
		return database.OutcomeRejected
	default:
		return database.OutcomeFault
	}
}

func (s *Server) record(token, userID, outcome string, status int) {
	if s.audit == nil {
		return
	}
	v := &database.Verification{
		UserID:    userID,
		Outcome:   outcome,
		Status:    status,
		CreatedAt: s.now(),
	}
	if token != "" {
		v.Fingerprint = database.Fingerprint(token)
	}
	if err := s.audit.InsertVerification(v); err != nil {
		log.Printf("server: failed to record verification: %v\n", err)
	}
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	res := api.NewResponse("api.keys.list")
	store := s.keys.Current()
	res.Put("keys", store.KeyIDs())
	res.Put("count", store.Len())
	res.Write(w)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	res := api.NewResponse("api.keys.reload")
	s.keys.Reload()
	res.Put("count", s.keys.Current().Len())
	res.Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	res := api.NewResponse("api.health")
	res.Put("keys", s.keys.Current().Len())
	res.Write(w)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	res := api.NewResponse("api.audit.list")

	limit, ok := parseLimit(r.URL.Query().Get("limit"))
	if !ok {
		res.Fail(http.StatusBadRequest, "limit must be an integer between 1 and "+strconv.Itoa(maxAuditLimit))
		res.Write(w)
		return
	}

	verifications, err := s.audit.RecentVerifications(limit)
	if err != nil {
		log.Printf("server: failed to read audit log: %v\n", err)
		res.Fail(http.StatusInternalServerError, "failed to read audit log")
		res.Write(w)
		return
	}

	res.Put("verifications", verifications)
	res.Put("count", len(verifications))
	res.Write(w)
}

func parseLimit(raw string) (int, bool) {
	if raw == "" {
		return defaultAuditLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxAuditLimit {
		return 0, false
	}
	return limit, true
}
