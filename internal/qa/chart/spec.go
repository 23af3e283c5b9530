// Package chart maps report aggregates into renderer independent chart
// specifications, and renders them with go-echarts.
package chart

// Type is the kind of plot of a chart specification.
type Type string

const (
	TypePie           Type = "pie"
	TypeBar           Type = "bar"
	TypeStackedBar    Type = "stacked-bar"
	TypeHorizontalBar Type = "horizontal-bar"
	TypeLine          Type = "line"
)

// Colors used across the report.
const (
	ColorApproved = "#2e7d32"
	ColorRejected = "#c62828"
	ColorOther    = "#9e9e9e"
	ColorErrors   = "#ef6c00"
	ColorDefects  = "#6a1b9a"
	ColorTests    = "#1565c0"
)

// Series is one trace of a chart, with one value per label.
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
	Color  string    `json:"color,omitempty"`
}

// Spec describes a chart. Pie charts use the first series only, and
// optionally one color per label in Palette.
type Spec struct {
	// ID must be a valid javascript identifier, it names the chart element
	// in the HTML renderings.
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	Type     Type     `json:"type"`
	Labels   []string `json:"labels"`
	Series   []Series `json:"series"`
	Palette  []string `json:"palette,omitempty"`
}

// Empty reports whether the spec has nothing to plot.
func (s *Spec) Empty() bool {
	if s == nil || len(s.Labels) == 0 || len(s.Series) == 0 {
		return true
	}
	for _, series := range s.Series {
		for _, v := range series.Values {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// Simplify returns a copy keeping only the first series and the first
// maxPoints labels. Stacked and horizontal bars become plain bars.
func (s *Spec) Simplify(maxPoints int) *Spec {
	if s == nil {
		return nil
	}
	n := len(s.Labels)
	if maxPoints > 0 && n > maxPoints {
		n = maxPoints
	}
	simple := &Spec{
		ID:       s.ID,
		Title:    s.Title,
		Subtitle: s.Subtitle,
		Type:     s.Type,
		Labels:   append([]string{}, s.Labels[:n]...),
		Series:   []Series{},
	}
	if simple.Type == TypeStackedBar || simple.Type == TypeHorizontalBar {
		simple.Type = TypeBar
	}
	if len(s.Palette) > 0 {
		simple.Palette = append([]string{}, s.Palette[:min(n, len(s.Palette))]...)
	}
	if len(s.Series) > 0 {
		first := s.Series[0]
		simple.Series = append(simple.Series, Series{
			Name:   first.Name,
			Values: append([]float64{}, first.Values[:min(n, len(first.Values))]...),
			Color:  first.Color,
		})
	}
	return simple
}

// Placeholder is a synthetic single bar chart carrying the title of the
// chart it replaces.
func Placeholder(s *Spec) *Spec {
	title := "chart"
	id := "placeholder"
	if s != nil {
		title, id = s.Title, s.ID
	}
	return &Spec{
		ID:       id,
		Title:    title,
		Subtitle: "chart not available",
		Type:     TypeBar,
		Labels:   []string{title},
		Series:   []Series{{Name: title, Values: []float64{1}, Color: ColorOther}},
	}
}
