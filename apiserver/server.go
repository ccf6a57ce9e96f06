package apiserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/mapquest/osmserver/osm"
)

// Server wires the datastore to an HTTP router per §6. Any path not
// matched by Routes falls through to notImplemented, since the core
// engine is deliberately a subset of the full OSM API.
type Server struct {
	handlers *Handlers
	router   *mux.Router
	httpSrv  *http.Server
}

// NewServer builds a Server backed by ds, listening on the configured
// port with the configured API call timeout applied to both read and
// write deadlines.
func NewServer(ds *osm.Datastore) *Server {
	BuildRender()

	h := NewHandlers(ds)
	router := mux.NewRouter()
	for _, route := range h.Routes() {
		router.HandleFunc(route.Path, route.Controller).Methods(http.MethodGet)
	}
	router.NotFoundHandler = http.HandlerFunc(notImplemented)

	timeout := parseTimeout(osm.Config.APICallTimeout)

	s := &Server{
		handlers: h,
		router:   router,
	}
	s.httpSrv = &http.Server{
		Addr:         addrFromConfig(),
		Handler:      router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	return s
}

// ListenAndServe blocks serving HTTP until the listener fails.
func (s *Server) ListenAndServe() error {
	osm.Log().Infof("apiserver listening on %s", s.httpSrv.Addr)
	return s.httpSrv.ListenAndServe()
}

func notImplemented(w http.ResponseWriter, req *http.Request) {
	writeError(w, osm.NotImplementedf("no handler for %s %s", req.Method, req.URL.Path))
}

func addrFromConfig() string {
	port := osm.Config.Port
	if port == 0 {
		port = 8080
	}
	return ":" + strconv.Itoa(port)
}

func parseTimeout(raw string) time.Duration {
	if raw == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		osm.Log().Warnf("invalid api-call-timeout %q, defaulting to 30s: %v", raw, err)
		return 30 * time.Second
	}
	return d
}
