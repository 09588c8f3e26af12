package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	corestore "github.com/kilianp07/vending/core/store"
)

// WriteSalesChart renders the units sold per product as an HTML bar chart.
// Products missing from the catalogue are labelled by id.
func WriteSalesChart(w io.Writer, sales []corestore.Sale, products []corestore.Product) error {
	names := make(map[int]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	units := map[int]int{}
	for _, s := range sales {
		units[s.ProductID] += s.Quantity
	}
	ids := make([]int, 0, len(units))
	for id := range units {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Units sold"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Product"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Units"}),
	)
	xAxis := make([]string, 0, len(ids))
	data := make([]opts.BarData, 0, len(ids))
	for _, id := range ids {
		label := names[id]
		if label == "" {
			label = fmt.Sprintf("#%d", id)
		}
		xAxis = append(xAxis, label)
		data = append(data, opts.BarData{Value: units[id]})
	}
	bar.SetXAxis(xAxis).AddSeries("Units", data)
	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render sales chart: %w", err)
	}
	return nil
}
