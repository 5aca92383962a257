// Package ui serves the browser chat page, from the user's UI directory when
// configured or from the embedded copy otherwise.
package ui

import (
	"embed"
	"io/fs"
)

//go:embed all:ui
var embeddedUI embed.FS

// GetEmbedFS returns the embedded UI filesystem.
// The returned fs.FS is rooted at the "ui" directory.
func GetEmbedFS() fs.FS {
	sub, err := fs.Sub(embeddedUI, "ui")
	if err != nil {
		// "ui" is embedded at compile time, so this should never happen
		panic("failed to get embedded ui subdirectory: " + err.Error())
	}
	return sub
}
