package server

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// ParseTemplate parses one of the embedded page templates.
func ParseTemplate(name string) (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/"+name)
}
