package apiserver

import (
	"net/http"

	"github.com/mapquest/osmserver/osm"
)

// Route pairs a gorilla/mux path pattern with its controller, the same
// shape the console registers its own routes with.
type Route struct {
	Path       string
	Controller func(w http.ResponseWriter, req *http.Request)
}

// Routes returns every route the core engine serves (§6); anything not
// matched here falls through to a 501 handler (see notImplemented in
// server.go).
func (h *Handlers) Routes() []Route {
	prefix := "/api/" + osm.Config.APIVersion
	return []Route{
		{Path: prefix + "/capabilities", Controller: h.Capabilities},
		{Path: prefix + "/map", Controller: h.Map},
		{Path: prefix + "/{namespace:changeset|node|way|relation}/{id}", Controller: h.Element},
		{Path: prefix + "/{plural:nodes|ways|relations}", Controller: h.MultiElement},
		{Path: prefix + "/node/{id}/ways", Controller: h.NodeWays},
		{Path: prefix + "/{namespace:node|way|relation}/{id}/relations", Controller: h.ElementRelations},
		{Path: prefix + "/{namespace:way|relation}/{id}/full", Controller: h.ElementFull},
	}
}
