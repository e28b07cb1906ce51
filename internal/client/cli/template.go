package cli

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

var templateFuncs = template.FuncMap{
	"join":   strings.Join,
	"state":  taskState,
	"qstate": questState,
	"ms": func(ms int64) string {
		return (time.Duration(ms) * time.Millisecond).String()
	},
	"ts": func(t time.Time) string {
		return t.Local().Format(time.RFC3339)
	},
}

var (
	taskTemplate = template.Must(template.New("task").Funcs(templateFuncs).Parse(`
=== Task Details ===

ID:       {{.UniqueTaskID}}
Title:    {{.Title}}
Priority: {{.Priority}}
Types:    {{join .Types ", "}}
State:    {{state .}}
{{- if .Text }}
Text:     {{.Text}}
{{- end}}
{{- if .StartTime }}
Start:    {{ts .StartTime}}
{{- end}}
{{- if .EndTime }}
End:      {{ts .EndTime}}
{{- end}}
{{- if .DurationMs }}
Duration: {{ms .DurationMs}}
{{- end}}
{{- if .RepeatCount }}
Repeats:  {{.RepeatCount}}
{{- end}}
{{- if .QuestID }}
Quest:    {{.QuestID}}
{{- end}}
`))

	questTemplate = template.Must(template.New("quest").Funcs(templateFuncs).Parse(`
=== Quest Details ===

ID:    {{.UniqueQuestID}}
Title: {{.Title}}
State: {{qstate .}}
{{- if .Description }}
About: {{.Description}}
{{- end}}
{{- range $i, $t := .Tasks }}
  {{$i}}. {{$t.Title}} [{{state $t}}] {{$t.UniqueTaskID}}
{{- end}}
`))

	progressTemplate = template.Must(template.New("progress").Funcs(templateFuncs).Parse(`
Task {{.Task.UniqueTaskID}} ({{.Task.Title}}): {{state .Task}}
{{- if .Task.RepeatCount }}
Repeats: {{.Task.RepeatCount}}
{{- end}}
{{- if .Next }}
Next quest task: {{.Next.Title}} ({{.Next.UniqueTaskID}})
{{- end}}
{{- if .Quest }}
Quest {{.Quest.Title}}: {{qstate .Quest}}
{{- end}}
`))
)

func (c *Cli) render(tmpl *template.Template, data any) error {
	if err := tmpl.Execute(c.io, data); err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	return nil
}
