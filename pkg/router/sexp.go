package router

import (
	"strings"

	"github.com/google/uuid"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp/kicadsexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

func xy(name string, p primitives.Point) *kicadsexp.List {
	return kicadsexp.NewList(name, kicadsexp.Num(p.X), kicadsexp.Num(p.Y))
}

// SegmentSexp renders a segment as a KiCad (segment ...) record
func SegmentSexp(s primitives.Segment, stack *rules.LayerStack, withUUID bool) *kicadsexp.List {
	l := kicadsexp.NewList("segment",
		xy("start", s.Start),
		xy("end", s.End),
		kicadsexp.NewList("width", kicadsexp.Num(s.Width)),
		kicadsexp.NewList("layer", kicadsexp.Str(stack.LayerName(s.Layer))),
		kicadsexp.NewList("net", kicadsexp.Int(s.Net)),
	)
	if withUUID {
		l.Append(kicadsexp.NewList("uuid", kicadsexp.Str(uuid.NewString())))
	}
	return l
}

// ViaSexp renders a via as a KiCad (via ...) record. Through vias carry no
// type keyword.
func ViaSexp(v primitives.Via, stack *rules.LayerStack, withUUID bool) *kicadsexp.List {
	l := kicadsexp.NewList("via")
	if kw := v.Type.KiCadKeyword(); kw != "" {
		l.Append(kicadsexp.Symbol(kw))
	}
	l.Append(
		xy("at", v.Position),
		kicadsexp.NewList("size", kicadsexp.Num(v.Diameter)),
		kicadsexp.NewList("drill", kicadsexp.Num(v.Drill)),
		kicadsexp.NewList("layers",
			kicadsexp.Str(stack.LayerName(v.StartLayer)),
			kicadsexp.Str(stack.LayerName(v.EndLayer))),
		kicadsexp.NewList("net", kicadsexp.Int(v.Net)),
	)
	if withUUID {
		l.Append(kicadsexp.NewList("uuid", kicadsexp.Str(uuid.NewString())))
	}
	return l
}

// SexpItems returns one record per segment and via of every committed
// route, ordered by net id.
func (a *Autorouter) SexpItems() []*kicadsexp.List {
	var out []*kicadsexp.List
	for _, r := range a.Routes() {
		for _, s := range r.Segments {
			out = append(out, SegmentSexp(s, a.stack, a.opts.UUIDs))
		}
		for _, v := range r.Vias {
			out = append(out, ViaSexp(v, a.stack, a.opts.UUIDs))
		}
	}
	return out
}

// ToSexp renders every committed route as KiCad board records, one per
// line, with coordinates at four decimals.
func (a *Autorouter) ToSexp() string {
	var b strings.Builder
	for _, item := range a.SexpItems() {
		b.WriteString(item.String())
		b.WriteByte('\n')
	}
	return b.String()
}
