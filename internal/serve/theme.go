package serve

import (
	_ "embed"
	"net/http"
)

// themeScript picks light or dark before first paint so the page does not
// flash the wrong theme. Load it synchronously in <head>.
//
//go:embed theme.js
var themeScript []byte

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(themeScript)
}
