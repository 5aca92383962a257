package ui

import (
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"switchboard/pkg/logger"
)

// StaticServer serves static files from user directory or embedded FS.
type StaticServer struct {
	userDir string
	embedFS fs.FS
}

// NewStaticServer creates a new static file server.
// userDir is the user's UI directory (takes priority), embedFS is the fallback.
func NewStaticServer(userDir string, embedFS fs.FS) *StaticServer {
	return &StaticServer{
		userDir: userDir,
		embedFS: embedFS,
	}
}

// ServeHTTP implements http.Handler.
func (s *StaticServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := r.URL.Path
	if path == "" || path == "/" {
		path = "/index.html"
	}

	cleanPath := filepath.Clean(strings.TrimPrefix(path, "/"))
	if strings.HasPrefix(cleanPath, "..") || strings.Contains(cleanPath, ".."+string(os.PathSeparator)) {
		logger.Warn().
			Str("path", r.URL.Path).
			Str("clean_path", cleanPath).
			Msg("Path traversal attempt blocked")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	// Try user directory first
	if s.userDir != "" {
		fullPath := filepath.Join(s.userDir, cleanPath)

		// Verify the resolved path is still under userDir
		absUserDir, err := filepath.Abs(s.userDir)
		if err == nil {
			absFullPath, err := filepath.Abs(fullPath)
			if err == nil && strings.HasPrefix(absFullPath, absUserDir+string(os.PathSeparator)) {
				if data, err := os.ReadFile(fullPath); err == nil {
					s.serveContent(w, cleanPath, data)
					return
				}
			}
		}
	}

	// Fall back to embedded FS
	if s.embedFS != nil {
		if data, err := fs.ReadFile(s.embedFS, cleanPath); err == nil {
			s.serveContent(w, cleanPath, data)
			return
		}
	}

	http.NotFound(w, r)
}

// serveContent writes the content with appropriate Content-Type.
func (s *StaticServer) serveContent(w http.ResponseWriter, path string, data []byte) {
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
