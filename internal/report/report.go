// Package report renders simulation state to self-contained HTML
// charts for quick inspection.
package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"tradesim/internal/book"
	"tradesim/internal/engine"
)

// WriteDepthChart renders the book's cumulative depth curve (bid and
// ask liquidity by price level) as an HTML page.
func WriteDepthChart(w io.Writer, b *book.Book) error {
	if b == nil {
		return fmt.Errorf("book is required")
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s order book depth", b.Symbol),
			Subtitle: fmt.Sprintf("mid %.4f, spread %.6f", b.MidPrice, b.Spread),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "price"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "cumulative units"}),
	)

	prices := make([]string, 0, len(b.Bids)+len(b.Asks))
	bidSeries := make([]opts.LineData, 0, len(b.Bids))
	askSeries := make([]opts.LineData, 0, len(b.Asks))

	// Bids plotted from the deepest level up to the touch, then asks
	// outward, so the two walls meet at the spread.
	cum := 0.0
	bidCums := make([]float64, len(b.Bids))
	for i := range b.Bids {
		cum += b.Bids[i].Amount
		bidCums[i] = cum
	}
	for i := len(b.Bids) - 1; i >= 0; i-- {
		prices = append(prices, fmt.Sprintf("%.4f", b.Bids[i].Price))
		bidSeries = append(bidSeries, opts.LineData{Value: bidCums[i]})
		askSeries = append(askSeries, opts.LineData{Value: nil})
	}
	cum = 0
	for _, lvl := range b.Asks {
		cum += lvl.Amount
		prices = append(prices, fmt.Sprintf("%.4f", lvl.Price))
		bidSeries = append(bidSeries, opts.LineData{Value: nil})
		askSeries = append(askSeries, opts.LineData{Value: cum})
	}

	line.SetXAxis(prices).
		AddSeries("bids", bidSeries).
		AddSeries("asks", askSeries)

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}

// WriteScheduleChart renders a TWAP/VWAP slice schedule: amount per
// slice with completion status in the labels.
func WriteScheduleChart(w io.Writer, title string, slices []engine.Slice) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "slice"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "amount"}),
	)
	labels := make([]string, 0, len(slices))
	data := make([]opts.BarData, 0, len(slices))
	for _, sl := range slices {
		labels = append(labels, fmt.Sprintf("#%d %s", sl.Number, sl.Status))
		data = append(data, opts.BarData{Value: sl.Amount})
	}
	bar.SetXAxis(labels).AddSeries("slices", data)

	page := components.NewPage()
	page.AddCharts(bar)
	return page.Render(w)
}
