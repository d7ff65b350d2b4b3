package httpadapter

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

type pages struct {
	set *template.Template
}

func loadPages() *pages {
	funcs := template.FuncMap{
		"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
		"conf":  func(v float64) string { return fmt.Sprintf("%.4g", v) },
		"inc":   func(i int) int { return i + 1 },
	}
	return &pages{set: template.Must(template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))}
}

// render buffers the page so a template failure can still produce a clean 500.
func (p *pages) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := p.set.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("template_render_failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (p *pages) renderError(w http.ResponseWriter, status int, message string) {
	p.render(w, status, "error.html", map[string]any{"Message": message})
}
