package apiserver

import "github.com/unrolled/render"

// Render is the global render.Render instance every handler uses to
// write responses, mirroring the console's package-level Render.
var Render *render.Render

// BuildRender constructs Render. It must run before any handler is
// invoked.
func BuildRender() {
	Render = render.New(render.Options{
		IndentXML:      true,
		XMLContentType: "text/xml; charset=utf-8",
	})
}
