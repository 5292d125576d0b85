// Package oidcgate embeds the page templates and static files served by the
// HTTP layer.
package oidcgate

import (
	"embed"
	"io/fs"
)

//go:embed all:frontend/templates all:frontend/static
var frontend embed.FS

// Templates returns the embedded tree rooted at frontend/templates.
func Templates() (fs.FS, error) { return fs.Sub(frontend, "frontend/templates") }

// Static returns the embedded tree rooted at frontend/static.
func Static() (fs.FS, error) { return fs.Sub(frontend, "frontend/static") }
