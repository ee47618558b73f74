package transport

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// Router is the HTTP front door. Backing services are mounted under their
// own path prefix; GET / lists the mounted prefixes. Mount everything before
// serving.
type Router struct {
	mux      *mux.Router
	prefixes []string
}

func NewRouter() *Router {
	r := &Router{mux: mux.NewRouter()}
	r.mux.Methods("GET").Path("/").HandlerFunc(r.index)
	return r
}

// Mount serves h under /prefix/, stripping /prefix before h sees the request.
func (r *Router) Mount(prefix string, h http.Handler) {
	p := "/" + strings.Trim(prefix, "/")
	r.mux.PathPrefix(p + "/").Handler(http.StripPrefix(p, h))
	r.prefixes = append(r.prefixes, p)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(struct {
		Services []string `json:"services"`
	}{r.prefixes})
}
