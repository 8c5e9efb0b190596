package main

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
)

//go:embed www/index.html
var embeddedFiles embed.FS

// indexPage returns STATIC_DIR/index.html, or the page built into the binary
// when the directory has none.
func indexPage(staticDir string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(staticDir, "index.html"))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return embeddedFiles.ReadFile("www/index.html")
}

func (s *Server) addStaticRoutes(r *mux.Router) {
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)

	assets := filepath.Join(s.staticDir, "static")
	if info, err := os.Stat(assets); err == nil && info.IsDir() {
		r.PathPrefix("/static/").Handler(
			http.StripPrefix("/static/", http.FileServer(http.Dir(assets))),
		).Methods(http.MethodGet)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := indexPage(s.staticDir)
	if err != nil {
		s.log.WithError(err).Error("Failed to read index page")
		s.sendErrorResponse(w, CodeInternalError, "index page unavailable", "", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}
