package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"slices"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/landcover.report/internal/change"
	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/trend"
)

// ErrNothingToPlot is returned when a chart would have no series.
var ErrNothingToPlot = errors.New("nothing to plot")

// AssetsHost serves the echarts javascript referenced by rendered pages.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Default PNG size.
const (
	PNGWidth  = 10 * vg.Inch
	PNGHeight = 5 * vg.Inch
)

// ClassColour parses the palette entry for label. Out-of-range labels are
// grey.
func ClassColour(label int) color.RGBA {
	if label < 0 || label >= len(classify.Palette) {
		return color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	}
	v, err := strconv.ParseUint(classify.Palette[label], 16, 32)
	if err != nil {
		return color.RGBA{A: 0xff}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

func classHex(label int) string {
	c := ClassColour(label)
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func sortedClasses(byClass map[int][]float64) []int {
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	slices.Sort(classes)
	return classes
}

// TrendHTML writes an interactive line chart of area per class per year.
func TrendHTML(w io.Writer, title string, rows []trend.Row) error {
	years, byClass := trend.Series(rows)
	if len(years) == 0 {
		return ErrNothingToPlot
	}
	x := make([]string, len(years))
	for i, y := range years {
		x[i] = strconv.Itoa(y)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "600px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%d years, %d classes", len(years), len(byClass))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Year", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Area (ha)", NameLocation: "middle", NameGap: 45}),
	)
	line.SetXAxis(x)
	for _, c := range sortedClasses(byClass) {
		series := byClass[c]
		data := make([]opts.LineData, len(series))
		for i, v := range series {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(classify.ClassName(c), data,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: classHex(c)}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: classHex(c), Width: 2}),
		)
	}

	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	page.AddCharts(line)
	return page.Render(w)
}

// TransitionsHTML writes a bar chart of the n largest transitions of report.
func TransitionsHTML(w io.Writer, report *change.Report, n int) error {
	if report == nil {
		return ErrNothingToPlot
	}
	top := report.Top(n)
	if len(top) == 0 {
		return ErrNothingToPlot
	}
	x := make([]string, len(top))
	y := make([]opts.BarData, len(top))
	for i, tr := range top {
		x[i] = fmt.Sprintf("%s → %s", classify.ClassName(tr.From), classify.ClassName(tr.To))
		y[i] = opts.BarData{
			Value:     tr.AreaHa,
			ItemStyle: &opts.ItemStyle{Color: classHex(tr.To)},
		}
	}

	title := fmt.Sprintf("Land cover transitions %d → %d", report.Year1, report.Year2)
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "720px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("largest %d of %d", len(top), len(report.Transitions))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Area (ha)"}),
	)
	bar.SetXAxis(x).
		AddSeries("area", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	page.AddCharts(bar)
	return page.Render(w)
}

// TrendPlot builds a static line plot of area per class per year.
func TrendPlot(title string, rows []trend.Row) (*plot.Plot, error) {
	years, byClass := trend.Series(rows)
	if len(years) == 0 {
		return nil, ErrNothingToPlot
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Area (ha)"

	for _, c := range sortedClasses(byClass) {
		series := byClass[c]
		pts := make(plotter.XYs, len(series))
		for i, v := range series {
			pts[i] = plotter.XY{X: float64(years[i]), Y: v}
		}
		l, s, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", c, err)
		}
		l.Color = ClassColour(c)
		l.Width = vg.Points(1.5)
		s.Color = ClassColour(c)
		p.Add(l, s)
		p.Legend.Add(classify.ClassName(c), l, s)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// TrendPNG writes the static trend chart as PNG.
func TrendPNG(w io.Writer, title string, rows []trend.Row) error {
	p, err := TrendPlot(title, rows)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(PNGWidth, PNGHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to render trend chart: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SaveTrendPNG writes the static trend chart to path.
func SaveTrendPNG(path, title string, rows []trend.Row) error {
	p, err := TrendPlot(title, rows)
	if err != nil {
		return err
	}
	return p.Save(PNGWidth, PNGHeight, path)
}
