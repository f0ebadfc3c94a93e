// Package web holds the server-rendered pages and the assets they load.
package web

import "embed"

// TemplatesFS holds one template set; every file defines named blocks
// (pages end in _page, the rest are fragments refreshed over HTMX).
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS is served under /static/.
//
//go:embed static/app.css static/app.js
var StaticFS embed.FS
