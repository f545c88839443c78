// Package drifttest provides a small in-memory drift server for tests. It
// speaks the default wire profile: data envelopes, version conditions,
// batches and cursor pagination, with hooks for failure injection.
package drifttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/gorilla/mux"

	"github.com/driftbase/driftbase/log"
	"github.com/driftbase/driftbase/protocol"
)

// ProtocolVersion is the storage protocol version the test server speaks.
const ProtocolVersion = "1.9"

// DefaultBatchMaxOps is the default batch size limit.
const DefaultBatchMaxOps = 25

// Server is an in-memory drift server. All state lives in process and is
// dropped on Close.
type Server struct {
	router  *mux.Router
	srv     *httptest.Server
	profile protocol.Profile

	lock  sync.RWMutex
	root  *node
	clock int64

	requests  int64
	failNext  int32
	authToken atomic.Value // string
	readonly  int32
	batchMax  int
	protoVer  atomic.Value // string
}

// New starts a test server. Callers must Close it.
func New() *Server {
	s := &Server{
		profile:  protocol.Default(),
		root:     newNode(),
		batchMax: DefaultBatchMaxOps,
	}
	s.authToken.Store("")
	s.protoVer.Store(ProtocolVersion)

	r := mux.NewRouter()
	v1 := r.PathPrefix(s.profile.PathPrefix).Subrouter()
	v1.HandleFunc("/", s.handleHello).Methods(http.MethodGet)
	v1.HandleFunc(s.profile.BatchPath, s.handleBatch).Methods(http.MethodPost)

	v1.HandleFunc("/buckets", s.handleList).Methods(http.MethodGet)
	v1.HandleFunc("/buckets", s.handleDeleteAll).Methods(http.MethodDelete)
	v1.HandleFunc("/buckets/{bucket}", s.handleResource)
	v1.HandleFunc("/buckets/{bucket}/collections", s.handleList).Methods(http.MethodGet)
	v1.HandleFunc("/buckets/{bucket}/collections", s.handleDeleteAll).Methods(http.MethodDelete)
	v1.HandleFunc("/buckets/{bucket}/collections/{collection}", s.handleResource)
	v1.HandleFunc("/buckets/{bucket}/collections/{collection}/records", s.handleList).Methods(http.MethodGet)
	v1.HandleFunc("/buckets/{bucket}/collections/{collection}/records", s.handleDeleteAll).Methods(http.MethodDelete)
	v1.HandleFunc("/buckets/{bucket}/collections/{collection}/records/{record}", s.handleResource)
	s.router = r

	s.srv = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	// Keep-alive would let the net/http transport transparently retry
	// idempotent requests on reused connections, hiding injected failures.
	s.srv.Config.SetKeepAlivesEnabled(false)
	return s
}

// serveHTTP wraps the router with request counting, failure injection and
// authentication. Batch sub-requests are dispatched to the router directly
// and skip this wrapper.
func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&s.requests, 1)

	for {
		n := atomic.LoadInt32(&s.failNext)
		if n <= 0 {
			break
		}
		if atomic.CompareAndSwapInt32(&s.failNext, n, n-1) {
			hj, ok := w.(http.Hijacker)
			if !ok {
				log.Errorf("drifttest: cannot hijack connection for failure injection")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				log.Errorf("drifttest: failed to hijack connection: %s", err)
				return
			}
			_ = conn.Close()
			return
		}
	}

	if token := s.authToken.Load().(string); token != "" {
		if r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, s.profile, http.StatusUnauthorized, "please authenticate yourself")
			return
		}
	}

	s.router.ServeHTTP(w, r)
}

// URL returns the server's base URL.
func (s *Server) URL() string {
	return s.srv.URL
}

// Close shuts the server down and drops all state.
func (s *Server) Close() {
	s.srv.Close()
}

// Requests returns the number of requests received so far. Batch
// sub-requests count as one request, the enclosing envelope.
func (s *Server) Requests() int64 {
	return atomic.LoadInt64(&s.requests)
}

// FailNext makes the server kill the connection of the next n requests
// without responding, simulating transport failures.
func (s *Server) FailNext(n int) {
	atomic.StoreInt32(&s.failNext, int32(n))
}

// RequireToken makes the server require bearer token authentication. An
// empty token disables the requirement.
func (s *Server) RequireToken(token string) {
	s.authToken.Store(token)
}

// SetReadonly toggles readonly mode, in which all writes are rejected.
func (s *Server) SetReadonly(readonly bool) {
	v := int32(0)
	if readonly {
		v = 1
	}
	atomic.StoreInt32(&s.readonly, v)
}

func (s *Server) isReadonly() bool {
	return atomic.LoadInt32(&s.readonly) != 0
}

// SetProtocolVersion overrides the protocol version reported by the hello
// endpoint.
func (s *Server) SetProtocolVersion(v string) {
	s.protoVer.Store(v)
}

// SetBatchMax overrides the batch size limit. Must be called before any
// request is served.
func (s *Server) SetBatchMax(n int) {
	s.batchMax = n
}

// Info returns the server descriptor served by the hello endpoint.
func (s *Server) Info() *protocol.ServerInfo {
	return &protocol.ServerInfo{
		ProjectName:     "drifttest",
		ProjectVersion:  "0.1.0",
		ProtocolVersion: s.protoVer.Load().(string),
		Capabilities: map[string]json.RawMessage{
			"batch": json.RawMessage(`{}`),
		},
		Settings: protocol.ServerSettings{
			BatchMaxOps: s.batchMax,
			Readonly:    s.isReadonly(),
		},
	}
}
