// Package callback implements spec.md §4.8: running a configured shell
// command once per finished task, with the task's id, command, path and
// result substituted into it.
//
// The template language is Go's own text/template rather than a
// third-party templating library: none of the example repos in this
// module's lineage pull in one, and the substitution here is a single
// flat record with no looping or conditional logic, which is exactly
// text/template's comfortable range. Option("missingkey=error") is set
// so a typo'd field name fails the callback instead of silently
// rendering "<no value>".
package callback

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/taskd-project/taskd/internal/logger"
	"github.com/taskd-project/taskd/internal/task"
)

// Data is the template context exposed to a callback command.
type Data struct {
	ID      int
	Command string
	Path    string
	Result  string
}

// Render expands tmplSrc against the finished task, failing if the
// template references a field Data doesn't have.
func Render(tmplSrc string, t *task.Task) (string, error) {
	tmpl, err := template.New("callback").Option("missingkey=error").Parse(tmplSrc)
	if err != nil {
		return "", fmt.Errorf("parse callback template: %w", err)
	}

	data := Data{
		ID:      t.ID,
		Command: t.Command,
		Path:    t.Path,
	}
	if t.Result != nil {
		data.Result = t.Result.String()
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render callback template: %w", err)
	}
	return buf.String(), nil
}

// Run renders the template and starts the resulting command without
// waiting for it; a goroutine collects its exit status. Failures are
// logged but never propagated: a broken callback must not affect task
// scheduling, per spec.md §4.8.
func Run(tmplSrc string, t *task.Task) {
	taskLog := logger.WithTask(t.ID)

	rendered, err := Render(tmplSrc, t)
	if err != nil {
		taskLog.Error().Err(err).Msg("callback template failed")
		return
	}

	cmd := shellCommand(rendered)
	start := time.Now()
	if err := cmd.Start(); err != nil {
		taskLog.Error().Err(err).Msg("callback command failed to start")
		return
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			taskLog.Error().
				Err(err).
				Dur("elapsed", time.Since(start)).
				Msg("callback command failed")
			return
		}
		taskLog.Debug().Msg("callback command succeeded")
	}()
}
