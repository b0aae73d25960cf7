// Package web carries the dashboard's templates and stylesheet inside the binary.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates static
var assets embed.FS

// Templates is rooted at templates/ and holds layouts/, partials/ and pages/.
var Templates = sub("templates")

// Static is rooted at static/ and is served under /static/.
var Static = sub("static")

func sub(dir string) fs.FS {
	f, err := fs.Sub(assets, dir)
	if err != nil {
		panic(err)
	}
	return f
}
