// Package components holds the HTML fragments served to HTMX callers.
package components

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// ErrorAlert renders a dismissible error banner. The code is shown so users
// can quote it to support.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<div class="alert alert-error" role="alert" data-code="`+templ.EscapeString(code)+`">`); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<p class="alert-message">`+templ.EscapeString(message)+`</p>`); err != nil {
			return err
		}
		if action != "" {
			if _, err := io.WriteString(w, `<p class="alert-action">`+templ.EscapeString(action)+`</p>`); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `<small class="alert-code">`+templ.EscapeString(code)+`</small></div>`)
		return err
	})
}
