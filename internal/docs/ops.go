package docs

import "strings"

// Color is an RGB triple in the unit interval, the shape the document API
// expects for foreground colors.
type Color struct {
	Red   float64 `json:"red"`
	Green float64 `json:"green"`
	Blue  float64 `json:"blue"`
}

// Normalized rescales 0–255 style components into the unit interval and
// clamps the result. Values already in [0, 1] pass through unchanged.
func (c Color) Normalized() Color {
	return Color{
		Red:   normalizeComponent(c.Red),
		Green: normalizeComponent(c.Green),
		Blue:  normalizeComponent(c.Blue),
	}
}

func normalizeComponent(v float64) float64 {
	if v > 1 {
		v = v / 255
	}
	return min(max(v, 0), 1)
}

// Semantic color roles for the fixed set of styled regions.
var (
	colorLink        = Color{Red: 0.0, Green: 0.4, Blue: 1.0}
	colorHeader      = Color{Red: 0.2, Green: 0.2, Blue: 0.2}
	colorForward     = Color{Red: 0.5, Green: 0.3, Blue: 0.7}
	colorDate        = Color{Red: 0.3, Green: 0.6, Blue: 0.3}
	colorMedia       = Color{Red: 0.8, Green: 0.4, Blue: 0.0}
	colorBatchHeader = Color{Red: 0.3, Green: 0.3, Blue: 0.8}
	colorBatchFooter = Color{Red: 0.4, Green: 0.6, Blue: 0.4}
)

// Op is one positional operation against the remote document. Positions are
// rune offsets computed incrementally as the composer simulates applying
// each insertion, not offsets into the final document.
type Op interface {
	// apiRequest renders the operation as a batch-update request object.
	apiRequest() map[string]any
}

// InsertText inserts Text so its first rune lands at index At.
type InsertText struct {
	At   int
	Text string
}

func (o InsertText) apiRequest() map[string]any {
	return map[string]any{
		"insertText": map[string]any{
			"location": map[string]any{"index": o.At},
			"text":     o.Text,
		},
	}
}

// UpdateStyle applies character styling to the half-open range [Start, End).
// Zero-valued fields are left out of the update mask and inherit.
type UpdateStyle struct {
	Start    int
	End      int
	Bold     bool
	Italic   bool
	FontSize int // points
	Color    *Color
}

func (o UpdateStyle) apiRequest() map[string]any {
	style := map[string]any{}
	var fields []string
	if o.Bold {
		style["bold"] = true
		fields = append(fields, "bold")
	}
	if o.Italic {
		style["italic"] = true
		fields = append(fields, "italic")
	}
	if o.FontSize > 0 {
		style["fontSize"] = map[string]any{"magnitude": o.FontSize, "unit": "PT"}
		fields = append(fields, "fontSize")
	}
	if o.Color != nil {
		style["foregroundColor"] = map[string]any{
			"color": map[string]any{"rgbColor": o.Color.Normalized()},
		}
		fields = append(fields, "foregroundColor")
	}
	return map[string]any{
		"updateTextStyle": map[string]any{
			"range":     map[string]any{"startIndex": o.Start, "endIndex": o.End},
			"textStyle": style,
			"fields":    strings.Join(fields, ","),
		},
	}
}

// UpdateLink turns the half-open range [Start, End) into a hyperlink to URL,
// tinted with the link color role.
type UpdateLink struct {
	Start int
	End   int
	URL   string
}

func (o UpdateLink) apiRequest() map[string]any {
	return map[string]any{
		"updateTextStyle": map[string]any{
			"range": map[string]any{"startIndex": o.Start, "endIndex": o.End},
			"textStyle": map[string]any{
				"link": map[string]any{"url": o.URL},
				"foregroundColor": map[string]any{
					"color": map[string]any{"rgbColor": colorLink},
				},
			},
			"fields": "link,foregroundColor",
		},
	}
}

// Requests renders an ordered operation list as batch-update request objects.
func Requests(ops []Op) []map[string]any {
	reqs := make([]map[string]any, 0, len(ops))
	for _, op := range ops {
		reqs = append(reqs, op.apiRequest())
	}
	return reqs
}
