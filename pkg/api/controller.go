package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"osops-utils/pkg/auth"
	"osops-utils/pkg/discovery"
	"osops-utils/pkg/errs"
	"osops-utils/pkg/model"
	"osops-utils/pkg/registry"
	"osops-utils/pkg/version"
)

// Server is the controller: it owns the node registry and answers
// resolution requests on behalf of registered nodes.
type Server struct {
	Store registry.Store
	// Token is the bootstrap bearer token agents use. Empty disables the
	// token check unless users are configured.
	Token  string
	Signer *auth.Signer
	// Users holds operator accounts; nil disables /api/v1/auth.
	Users *gorm.DB
	Solo  bool
	Log   logrus.FieldLogger
}

func (s *Server) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// Handler returns the controller's routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return logRequests(s.log(), mux)
}

// RegisterRoutes wires the HTTP handlers on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if s.Signer == nil {
		s.Signer = auth.NewSigner("")
	}
	authorized := s.authFunc()
	guard := func(method string, h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !authorized(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if r.Method != method {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/v1/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"build": version.Build})
	})

	mux.HandleFunc("/api/v1/nodes", guard(http.MethodGet, s.handleListNodes))
	mux.HandleFunc("/api/v1/nodes/register", guard(http.MethodPost, s.handleRegister))
	mux.HandleFunc("/api/v1/nodes/get", guard(http.MethodGet, s.handleGetNode))
	mux.HandleFunc("/api/v1/nodes/delete", guard(http.MethodPost, s.handleDeleteNode))
	mux.HandleFunc("/api/v1/search", guard(http.MethodGet, s.handleSearch))

	mux.HandleFunc("/api/v1/resolve/local-address", guard(http.MethodGet, s.handleLocalAddress))
	mux.HandleFunc("/api/v1/resolve/access", guard(http.MethodGet, s.handleAccess))
	mux.HandleFunc("/api/v1/resolve/bind", guard(http.MethodGet, s.handleBind))
	mux.HandleFunc("/api/v1/resolve/realservers", guard(http.MethodGet, s.handleRealservers))
	mux.HandleFunc("/api/v1/resolve/access-ip", guard(http.MethodGet, s.handleAccessIP))

	if s.Users != nil {
		(&AuthHandler{DB: s.Users, Signer: s.Signer}).RegisterRoutes(mux)
	}
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.Store.ListNodes(r.Context())
	if err != nil {
		s.log().WithError(err).Error("list nodes")
		http.Error(w, "failed to list nodes", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var n model.Node
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if n.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	saved, err := s.Store.UpsertNode(r.Context(), n)
	if err != nil {
		s.log().WithError(err).WithField("node", n.Name).Error("persist node")
		http.Error(w, "failed to persist node", http.StatusBadGateway)
		return
	}
	s.log().WithFields(logrus.Fields{
		"node":        saved.Name,
		"environment": saved.Environment,
		"roles":       saved.Roles,
		"revision":    saved.Revision,
	}).Info("registered node")
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	n, ok := s.lookupNode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	err := s.Store.DeleteNode(r.Context(), name)
	switch {
	case errors.Is(err, registry.ErrNodeNotFound):
		http.Error(w, "node not found", http.StatusNotFound)
	case err != nil:
		s.log().WithError(err).WithField("node", name).Error("delete node")
		http.Error(w, "failed to delete node", http.StatusBadGateway)
	default:
		s.log().WithField("node", name).Info("deleted node")
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		q = registry.Wildcard + ":" + registry.Wildcard
	}
	if _, err := registry.ParseQuery(q); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	nodes, err := s.Store.Search(r.Context(), q)
	if err != nil {
		s.log().WithError(err).WithField("query", q).Error("search")
		http.Error(w, "search failed", http.StatusBadGateway)
		return
	}
	if nodes == nil {
		nodes = []model.Node{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleLocalAddress(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resolverFor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	quiet, _ := strconv.ParseBool(q.Get("quiet"))
	iface, addr, err := res.LocalInterfaceAndAddress(q.Get("network"), quiet)
	if err != nil {
		s.writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LocalAddressResponse{Interface: iface, Address: addr})
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resolverFor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var opts []discovery.AccessOption
	if k := q.Get("kinds"); k != "" {
		kinds, err := discovery.ParseKinds(strings.Split(k, ","))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts = append(opts, discovery.WithKinds(kinds...))
	}
	ep, err := res.ResolveAccessEndpoint(r.Context(), q.Get("role"), q.Get("server"), q.Get("service"), opts...)
	s.writeEndpoint(w, ep, err)
}

func (s *Server) handleBind(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resolverFor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	ep, err := res.ResolveBindEndpoint(q.Get("server"), q.Get("service"), nil)
	s.writeEndpoint(w, ep, err)
}

func (s *Server) handleRealservers(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resolverFor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	eps, err := res.ResolveRealserverEndpoints(r.Context(), q.Get("role"), q.Get("server"), q.Get("service"))
	if err != nil {
		s.writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eps)
}

func (s *Server) handleAccessIP(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resolverFor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	addr, err := res.ResolveAccessIPForRole(r.Context(), q.Get("role"), q.Get("network"))
	if err != nil {
		s.writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AccessIPResponse{Address: addr})
}

func (s *Server) lookupNode(w http.ResponseWriter, r *http.Request) (model.Node, bool) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = r.URL.Query().Get("node")
	}
	if name == "" {
		http.Error(w, "node name is required", http.StatusBadRequest)
		return model.Node{}, false
	}
	n, ok, err := s.Store.GetNode(r.Context(), name)
	if err != nil {
		s.log().WithError(err).WithField("node", name).Error("get node")
		http.Error(w, "failed to load node", http.StatusBadGateway)
		return model.Node{}, false
	}
	if !ok {
		http.Error(w, "node not found", http.StatusNotFound)
		return model.Node{}, false
	}
	return n, true
}

// resolverFor builds a resolver from the point of view of the registered
// node named by the node parameter.
func (s *Server) resolverFor(w http.ResponseWriter, r *http.Request) (*discovery.Resolver, bool) {
	n, ok := s.lookupNode(w, r)
	if !ok {
		return nil, false
	}
	log := s.log().WithField("node", n.Name)
	return discovery.New(&n, s.Store, discovery.WithLogger(log), discovery.WithSolo(s.Solo)), true
}

func (s *Server) writeEndpoint(w http.ResponseWriter, ep *model.Endpoint, err error) {
	if err != nil {
		s.writeResolveError(w, err)
		return
	}
	if ep == nil {
		http.Error(w, "no endpoint", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

// writeResolveError maps resolution failures to 409 and everything else
// (registry I/O) to 502.
func (s *Server) writeResolveError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, errs.ErrUnsupportedVendor):
		status = http.StatusBadRequest
	case errs.Resolution(err):
		status = http.StatusConflict
	default:
		s.log().WithError(err).Error("resolution failed")
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed to write response")
	}
}

func (s *Server) authFunc() func(r *http.Request) bool {
	if s.Token == "" && s.Users == nil {
		return func(_ *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		h := r.Header.Get("X-Auth-Token")
		if h == "" {
			// also allow simple Bearer token
			authz := r.Header.Get("Authorization")
			if strings.HasPrefix(authz, "Bearer ") {
				h = strings.TrimPrefix(authz, "Bearer ")
			}
		}
		if h == "" {
			return false
		}
		if s.Token != "" && h == s.Token {
			return true
		}
		_, err := s.Signer.Parse(h)
		return err == nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(log logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("request")
	})
}
