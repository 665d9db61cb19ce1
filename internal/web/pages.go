package web

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/bsipocz/gammapy/internal/catalog"
	"github.com/bsipocz/gammapy/internal/irf"
	"github.com/bsipocz/gammapy/internal/units"
)

const pageStyle = `body{font-family:sans-serif;margin:2rem;color:#222}` +
	`table{border-collapse:collapse}td,th{padding:.25rem .75rem;border-bottom:1px solid #ddd;text-align:left}` +
	`pre{background:#f6f6f6;padding:1rem}`

func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	entries, err := s.catalog.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	templ.Handler(page("Effective area tables", tableList(entries))).ServeHTTP(w, r)
}

func (s *Server) handleTablePage(w http.ResponseWriter, r *http.Request) {
	rec, table, err := s.loadTable(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	summary, err := table.Summarize()
	if err != nil {
		respondError(w, r, err)
		return
	}
	templ.Handler(page(rec.Name, tableSummary(rec.Entry, summary))).ServeHTTP(w, r)
}

// page wraps body in the HTML document shell.
func page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := templ.EscapeString(title)
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<title>%s</title><style>%s</style></head><body><h1>%s</h1>`, title, pageStyle, title); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

func tableList(entries []catalog.Entry) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if len(entries) == 0 {
			_, err := io.WriteString(w, `<p>No tables stored.</p>`)
			return err
		}
		if _, err := io.WriteString(w, `<table><tr><th>Name</th><th>Telescope</th><th>Instrument</th>`+
			`<th>Bins</th><th>Created</th></tr>`); err != nil {
			return err
		}
		for _, e := range entries {
			_, err := fmt.Fprintf(w, `<tr><td><a href="/arf/%s">%s</a></td><td>%s</td><td>%s</td><td>%d</td><td>%s</td></tr>`,
				e.ID,
				templ.EscapeString(e.Name),
				templ.EscapeString(e.Telescope),
				templ.EscapeString(e.Instrument),
				e.Bins,
				e.CreatedAt.Format("2006-01-02 15:04"),
			)
			if err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</table>`)
		return err
	})
}

func tableSummary(e catalog.Entry, s irf.Summary) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<table>`+
			`<tr><th>Telescope</th><td>%s</td></tr>`+
			`<tr><th>Instrument</th><td>%s</td></tr>`+
			`<tr><th>Filter</th><td>%s</td></tr>`+
			`<tr><th>Energy lo</th><td>%s</td></tr>`+
			`<tr><th>Energy hi</th><td>%s</td></tr>`+
			`<tr><th>Effective area</th><td>%s</td></tr>`+
			`<tr><th>Safe energy threshold</th><td>%s to %s</td></tr>`+
			`</table>`,
			templ.EscapeString(e.Telescope),
			templ.EscapeString(e.Instrument),
			templ.EscapeString(e.Filter),
			s.EnergyLo, s.EnergyHi, s.EffectiveArea,
			s.ThresholdLo.Fmt("%.3f"), s.ThresholdHi.Fmt("%.3f"),
		)
		if err != nil {
			return err
		}

		if _, err := io.WriteString(w, `<h2>Lookups</h2><ul>`); err != nil {
			return err
		}
		for _, l := range s.Lookups {
			if _, err := fmt.Fprintf(w, `<li>%s: %.0f m2</li>`, l.Energy, l.Area.In(units.SquareMeter)); err != nil {
				return err
			}
		}

		_, err = fmt.Fprintf(w, `</ul><p><img src="/api/arf/%[1]s/plot.png" alt="Effective area"></p>`+
			`<p><a href="/api/arf/%[1]s/fits">Download ARF</a></p>`, e.ID)
		return err
	})
}
