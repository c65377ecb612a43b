package web

import (
	"html/template"
	"net/http"
	"strconv"
	"time"

	appLog "tlview/internal/log"
	"tlview/internal/render"
)

// The view mirrors the scene: one absolutely positioned column per
// timeframe, events positioned inside their owning frame around a
// vertical baseline. data-ready turns true once no frame is loading.
var viewTmpl = template.Must(template.New("view").Funcs(template.FuncMap{
	"px":  func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) + "px" },
	"pct": func(v float64) string { return strconv.FormatFloat(v*100, 'f', -1, 64) + "%" },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>tlview</title>
<style>
body { margin: 0; font: 12.5px monospace; }
#timeline { position: relative; height: {{px .Height}}; overflow: hidden; }
.frame { position: absolute; top: 0; bottom: 0; border-left: 1px solid #ccc; }
.frame.loading { background: #f4f4f4; }
.future { position: absolute; top: 0; bottom: 0; right: 0; background: rgba(0,0,0,0.04); }
.tick { position: absolute; top: 2px; color: #666; }
.event { position: absolute; height: 30px; line-height: 30px; white-space: nowrap; }
.bar { position: absolute; top: 0; height: 6px; background: #3a6ea5; }
.point .bar { width: 2px; height: 30px; }
.unfinished .bar { background: repeating-linear-gradient(90deg, #3a6ea5 0 8px, transparent 8px 12px); }
.label { position: absolute; top: 8px; }
.mark { color: #888; margin-left: 4px; }
#error { position: absolute; top: 0; right: 0; background: #c33; color: #fff; padding: 4px; }
</style>
</head>
<body>
<div id="timeline" data-ready="{{.Ready}}" data-version="{{.Snapshot.Version}}">
{{- range .Frames}}
<div class="frame{{if .Loading}} loading{{end}}" data-index="{{.Index}}" style="left: {{px .Left}}; width: {{px .Width}}">
{{- if ge .Future 0.0}}<div class="future" style="left: {{px .Future}}"></div>{{end}}
{{- range .Ticks}}<span class="tick" style="left: {{pct .Position}}">{{.Label}}</span>{{end}}
{{- range .Events}}
<div class="event {{.Kind}}" data-id="{{.ID}}" title="{{.Range}}" style="left: {{px .Box.Left}}; top: {{px .Top}}">
<div class="bar" style="width: {{px .Box.Width}}{{with .Color}}; background: {{.}}{{end}}"></div>
<span class="label">{{.Title}}{{range .Marks}}<span class="mark">{{.}}</span>{{end}}</span>
</div>
{{- end}}
</div>
{{- end}}
{{- if .Snapshot.Failed}}<div id="error">{{.Snapshot.Error}}</div>{{end}}
</div>
</body>
</html>
`))

type viewEvent struct {
	render.EventState
	Top   float64
	Range string
}

type viewFrame struct {
	render.FrameState
	Events []viewEvent
}

type viewData struct {
	Snapshot render.Snapshot
	Frames   []viewFrame
	Ready    bool
	Height   float64
}

func (s *Server) buildView(snap render.Snapshot) viewData {
	m := s.cfg.Metrics()

	d := viewData{Snapshot: snap, Ready: true}
	byFrame := make(map[int]int, len(snap.Frames))
	for _, f := range snap.Frames {
		if f.Loading {
			d.Ready = false
		}
		byFrame[f.Index] = len(d.Frames)
		d.Frames = append(d.Frames, viewFrame{FrameState: f})
	}

	maxTop := 0.0
	for _, ev := range snap.Events {
		if _, ok := byFrame[ev.Frame]; ok && ev.Drawn {
			maxTop = max(maxTop, -ev.Box.Top, ev.Box.Top)
		}
	}
	// Rows alternate around the baseline; leave room for the tick labels.
	baseline := maxTop + m.EventHeight + m.VSpacing
	d.Height = 2*baseline + m.EventHeight

	for _, ev := range snap.Events {
		i, ok := byFrame[ev.Frame]
		if !ok || !ev.Drawn {
			continue
		}
		d.Frames[i].Events = append(d.Frames[i].Events, viewEvent{
			EventState: ev,
			Top:        baseline + ev.Box.Top,
			Range:      s.eventRange(ev),
		})
	}
	return d
}

func (s *Server) eventRange(ev render.EventState) string {
	const layout = "Jan 2 15:04"
	begin := time.UnixMilli(ev.Begin).In(s.loc).Format(layout)
	if ev.End == nil {
		return begin + " - ongoing"
	}
	if *ev.End == ev.Begin {
		return begin
	}
	return begin + " - " + time.UnixMilli(*ev.End).In(s.loc).Format(layout)
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := viewTmpl.Execute(w, s.buildView(s.scene.Snapshot())); err != nil {
		appLog.Error("failed to render view", err)
	}
}
