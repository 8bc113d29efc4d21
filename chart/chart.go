// Package chart draws the frequency histograms as PNG line charts.
package chart

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/dhcgn/commsreport/histogram"
)

// Fixed output names inside the report directory.
const (
	MonthFile = "month_frequency.png"
	WeekFile  = "week_frequency.png"
	DayFile   = "day_frequency.png"
)

// Series is one message class drawn as a line.
type Series struct {
	Name string
	Data histogram.Histograms
}

// WriteAll draws the month, weekday and hour charts into dir and returns the
// file names written.
func WriteAll(dir string, series ...Series) ([]string, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("no series to plot")
	}

	months := series[0].Data.MonthLabels()
	monthly := make([]line, len(series))
	weekly := make([]line, len(series))
	daily := make([]line, len(series))
	for i, s := range series {
		monthly[i] = line{s.Name, s.Data.MonthCounts()}
		weekly[i] = line{s.Name, s.Data.Weekdays[:]}
		daily[i] = line{s.Name, s.Data.Hours[:]}
	}

	hours := make([]string, 24)
	for i := range hours {
		hours[i] = strconv.Itoa(i)
	}

	charts := []struct {
		file   string
		title  string
		xLabel string
		labels []string
		lines  []line
		rotate bool
	}{
		{MonthFile, "Messages received per month", "", months, monthly, true},
		{WeekFile, "Messages received per day of week", "Day", histogram.WeekdayLabels(), weekly, false},
		{DayFile, "Messages received per time of day", "Time of day", hours, daily, false},
	}

	var written []string
	for _, c := range charts {
		p := plot.New()
		p.Title.Text = c.title
		p.X.Label.Text = c.xLabel
		p.Y.Label.Text = "Frequency"
		p.Y.Min = 0
		p.NominalX(c.labels...)
		if c.rotate {
			p.X.Tick.Label.Rotation = math.Pi / 2
		}

		args := make([]interface{}, 0, 2*len(c.lines))
		for _, l := range c.lines {
			args = append(args, l.name, l.points())
		}
		if err := plotutil.AddLinePoints(p, args...); err != nil {
			return written, fmt.Errorf("plot %s: %w", c.file, err)
		}

		if err := p.Save(8*vg.Inch, 5*vg.Inch, filepath.Join(dir, c.file)); err != nil {
			return written, fmt.Errorf("save %s: %w", c.file, err)
		}
		written = append(written, c.file)
	}
	return written, nil
}

type line struct {
	name   string
	counts []int
}

func (l line) points() plotter.XYs {
	pts := make(plotter.XYs, len(l.counts))
	for i, c := range l.counts {
		pts[i].X = float64(i)
		pts[i].Y = float64(c)
	}
	return pts
}
