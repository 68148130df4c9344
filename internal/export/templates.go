package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var sheetTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}
	sheetTemplate = template.Must(template.New("sheet").Funcs(funcMap).Parse(sheetTemplateHTML))
}

// TemplateData holds data for set-list sheet rendering.
type TemplateData struct {
	ServiceName   string
	ServiceDate   time.Time
	WorkspaceName string
	Songs         []TemplateSong
}

// TemplateSong is one rendered song on the sheet.
type TemplateSong struct {
	Title       string
	Author      string
	Key         string
	ContentHTML template.HTML
}

// RenderSheetHTML renders the chord sheet template with provided data.
func RenderSheetHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := sheetTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const sheetTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.ServiceName}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.4; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; margin-bottom: 0.25rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .song { page-break-before: always; }
    .song:first-of-type { page-break-before: auto; }
    .song h2 { margin-bottom: 0.1rem; }
    .song .credit { color: #666; font-size: 0.85em; margin-bottom: 1rem; }
    .song .key { float: right; font-weight: bold; }
    .section { font-weight: bold; text-transform: uppercase; font-size: 0.8em; letter-spacing: 0.05em; margin: 1rem 0 0.25rem; color: #444; }
    .line { white-space: pre; }
    .seg { display: inline-block; vertical-align: bottom; }
    .chord { display: block; font-family: "Courier New", monospace; font-weight: bold; color: #b03030; font-size: 0.85em; min-height: 1em; }
    .word { display: block; }
    .blank { height: 1em; }
  </style>
</head>
<body>
  <h1>{{.ServiceName}}</h1>
  <div class="meta">{{.WorkspaceName}} | {{formatDate .ServiceDate "Jan 2, 2006"}}</div>
  {{range .Songs}}
  <div class="song">
    <span class="key">{{.Key}}</span>
    <h2>{{.Title}}</h2>
    {{if .Author}}<div class="credit">{{.Author}}</div>{{end}}
    <div class="sheet">{{.ContentHTML}}</div>
  </div>
  {{end}}
</body>
</html>`
