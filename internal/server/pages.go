package server

import (
	"context"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/conneroisu/paramtrail/internal/session"
)

// indexPage lists the session's tracked values, links to each configured
// redirect and offers a form that posts values back through the adapter.
func (s *Server) indexPage(store *session.Store) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>paramtrail</title></head><body><h1>Tracked parameters</h1><table>`); err != nil {
			return err
		}

		for _, p := range s.source.Current().Parameters() {
			if _, err := io.WriteString(w, `<tr><th>`+templ.EscapeString(p.Name)+`</th><td>`); err != nil {
				return err
			}
			if err := s.templ.Component(p.Name, "").Render(ctx, w); err != nil {
				return err
			}
			if _, err := io.WriteString(w, `</td><td>`); err != nil {
				return err
			}
			if p.RedirectURL != "" {
				if err := s.renderer.Link(store, p.RedirectURL, "follow").Render(ctx, w); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, `</td></tr>`); err != nil {
				return err
			}
		}

		if _, err := io.WriteString(w, `</table><form method="post" action="/api/params">`); err != nil {
			return err
		}
		if err := s.renderer.HiddenFields(store).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `<button type="submit">Resubmit</button></form></body></html>`)
		return err
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.indexPage(storeFor(r)).Render(r.Context(), w); err != nil {
		s.logger.Error(r.Context(), err, "Failed to render index page")
	}
}
