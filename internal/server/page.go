package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/treebark/internal/logging"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:0;color:#1f2328}
header{padding:.75rem 1rem;border-bottom:1px solid #d0d7de;background:#f6f8fa}
header a{color:inherit;text-decoration:none;font-weight:600}
main{padding:1rem}
aside{margin:1rem;padding:.75rem 1rem;border:1px solid #d4a72c;background:#fff8c5}
aside li.error{color:#cf222e}
.treebark-error{padding:.75rem 1rem;border:1px solid #cf222e;background:#ffebe9}`

// reloadScript reconnects to the hub and reloads when target changes. An
// empty target reloads on any change.
const reloadScript = `(function(){var target=%s;var proto=location.protocol==="https:"?"wss:":"ws:";
function connect(){var ws=new WebSocket(proto+"//"+location.host+"/ws");
ws.onmessage=function(e){try{var m=JSON.parse(e.data);if(m.type==="reload"&&(target===""||!m.target||m.target===target)){location.reload();}}catch(_){}};
ws.onclose=function(){setTimeout(connect,1000);};}
connect();})();`

// pageShell wraps body in the preview document. The live-reload script
// carries the request's CSP nonce.
func pageShell(title, target string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		// json.Marshal escapes <, > and & so the target cannot end the script.
		encodedTarget, err := json.Marshal(target)
		if err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>%s - treebark</title><style>%s</style></head><body><header><a href="/">treebark</a> / %s</header>`,
			templ.EscapeString(title), pageStyle, templ.EscapeString(title)); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}

		nonce := ""
		if n := templ.GetNonce(ctx); n != "" {
			nonce = ` nonce="` + templ.EscapeString(n) + `"`
		}
		_, err = fmt.Fprintf(w, `<script%s>`+reloadScript+`</script></body></html>`, nonce, encodedTarget)

		return err
	})
}

// previewBody shows a rendered fragment and the diagnostics its render
// produced.
func previewBody(fragment string, entries []logging.Entry) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<main>`); err != nil {
			return err
		}
		if err := templ.Raw(fragment).Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</main>`); err != nil {
			return err
		}

		if len(entries) == 0 {
			return nil
		}

		var b strings.Builder
		b.WriteString(`<aside><strong>Diagnostics</strong><ul>`)
		for _, e := range entries {
			fmt.Fprintf(&b, `<li class="%s">%s</li>`, templ.EscapeString(e.LevelName()), templ.EscapeString(e.Message))
		}
		b.WriteString(`</ul></aside>`)
		_, err := io.WriteString(w, b.String())

		return err
	})
}

// indexBody lists the templates available for preview.
func indexBody(names []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<main>`)
		if len(names) == 0 {
			b.WriteString(`<p>No templates found.</p>`)
		} else {
			b.WriteString(`<ul>`)
			for _, name := range names {
				fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`,
					templ.EscapeString(previewPath(name)), templ.EscapeString(name))
			}
			b.WriteString(`</ul>`)
		}
		b.WriteString(`</main>`)
		_, err := io.WriteString(w, b.String())

		return err
	})
}

func previewPath(name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	return "/preview/" + strings.Join(segments, "/")
}
