package inspector

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/glit/internal/middleware"
	"github.com/conneroisu/glit/internal/scenario"
)

// PageData is what the inspector page renders.
type PageData struct {
	Title   string
	Session string
	Frames  []scenario.Frame
}

// Page renders the inspector page. Frames known at request time are
// rendered on the server; later ones arrive over the websocket at /ws.
func Page(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		fmt.Fprintf(&b, `<title>%s</title>`, templ.EscapeString(data.Title))
		b.WriteString(`<style>` + pageCSS + `</style></head><body>`)
		fmt.Fprintf(&b, `<header><h1>%s</h1><span class="session">session %s</span> <a href="/metrics">metrics</a></header>`,
			templ.EscapeString(data.Title), templ.EscapeString(data.Session))
		b.WriteString(`<table><thead><tr><th>#</th><th>step</th><th>target</th><th>markup</th><th>mutations</th><th>result</th></tr></thead><tbody id="frames">`)
		for i := len(data.Frames) - 1; i >= 0; i-- {
			writeFrameRow(&b, data.Frames[i])
		}
		b.WriteString(`</tbody></table>`)
		b.WriteString(`<script>` + pageJS + `</script></body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeFrameRow(b *strings.Builder, f scenario.Frame) {
	result := "ok"
	class := "pass"
	if f.Error != "" {
		result = f.Code
		if result == "" {
			result = "error"
		}
	}
	if !f.Passed {
		class = "fail"
	}

	kinds := make([]string, 0, len(f.Mutations))
	for _, m := range f.Mutations {
		kinds = append(kinds, m.Type+" "+m.Target)
	}

	fmt.Fprintf(b, `<tr class="%s" data-frame="%s"><td>%d</td><td>%s</td><td>%s</td><td><code>%s</code></td><td title="%s">%d</td><td title="%s">%s</td></tr>`,
		class,
		templ.EscapeString(f.ID),
		f.Step,
		templ.EscapeString(f.Scenario+" "+f.Name),
		templ.EscapeString(f.Target),
		templ.EscapeString(f.Markup),
		templ.EscapeString(strings.Join(kinds, "\n")),
		len(f.Mutations),
		templ.EscapeString(f.Error),
		templ.EscapeString(result),
	)
}

const pageCSS = `body{font-family:system-ui,sans-serif;margin:1rem 2rem}
header{display:flex;gap:1rem;align-items:baseline}
.session{color:#666;font-size:.85rem}
table{border-collapse:collapse;width:100%}
th,td{border-bottom:1px solid #ddd;padding:.3rem .5rem;text-align:left;vertical-align:top}
code{white-space:pre-wrap;word-break:break-all}
tr.fail{background:#fdecea}
tr.pass td:last-child{color:#2e7d32}`

const pageJS = `(function(){
var body=document.getElementById("frames");
function esc(s){var d=document.createElement("div");d.textContent=s==null?"":String(s);return d.innerHTML;}
function row(f){
  var tr=document.createElement("tr");
  tr.className=f.passed?"pass":"fail";
  tr.dataset.frame=f.id;
  var muts=(f.mutations||[]).map(function(m){return m.type+" "+m.target;}).join("\n");
  var result=f.error?(f.code||"error"):"ok";
  tr.innerHTML="<td>"+f.step+"</td><td>"+esc(f.scenario+" "+(f.name||""))+"</td><td>"+esc(f.target)+
    "</td><td><code>"+esc(f.markup)+"</code></td><td title=\""+esc(muts)+"\">"+(f.mutations||[]).length+
    "</td><td title=\""+esc(f.error)+"\">"+esc(result)+"</td>";
  return tr;
}
var ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+"/ws");
ws.onmessage=function(ev){
  var msg=JSON.parse(ev.data);
  if(msg.type!=="frame"||!msg.frame)return;
  if(body.querySelector('tr[data-frame="'+msg.frame.id+'"]'))return;
  body.insertBefore(row(msg.frame),body.firstChild);
};
})();`

// pageCSP allows exactly the inline style and script the page embeds.
var pageCSP = middleware.BuildCSP(map[string][]string{
	"default-src":     {"'none'"},
	"script-src":      {inlineHash(pageJS)},
	"style-src":       {inlineHash(pageCSS)},
	"connect-src":     {"'self'"},
	"base-uri":        {"'none'"},
	"frame-ancestors": {"'none'"},
}, "default-src", "script-src", "style-src", "connect-src", "base-uri", "frame-ancestors")

func inlineHash(source string) string {
	sum := sha256.Sum256([]byte(source))
	return "'sha256-" + base64.StdEncoding.EncodeToString(sum[:]) + "'"
}
