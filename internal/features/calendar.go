// Package features builds the fixed-order numeric vectors fed to the
// regression models. Each vector is a struct whose Names and Values agree
// position by position; ValidateSchema checks a model's declared feature
// list against them before any prediction is made.
package features

import (
	"math"
	"time"
)

// Calendar holds the date-derived features shared by both milestones
type Calendar struct {
	Month     float64
	DayOfYear float64
	ISOWeek   float64
	Quarter   float64
	Year      float64

	MonthSin float64
	MonthCos float64
	DaySin   float64
	DayCos   float64
	WeekSin  float64
	WeekCos  float64
}

// NewCalendar derives calendar features from the date part of t
func NewCalendar(t time.Time) Calendar {
	month := float64(t.Month())
	doy := float64(t.YearDay())
	_, week := t.ISOWeek()
	w := float64(week)

	return Calendar{
		Month:     month,
		DayOfYear: doy,
		ISOWeek:   w,
		Quarter:   float64((int(t.Month())-1)/3 + 1),
		Year:      float64(t.Year()),
		MonthSin:  math.Sin(2 * math.Pi * month / 12),
		MonthCos:  math.Cos(2 * math.Pi * month / 12),
		DaySin:    math.Sin(2 * math.Pi * doy / 365),
		DayCos:    math.Cos(2 * math.Pi * doy / 365),
		WeekSin:   math.Sin(2 * math.Pi * w / 52),
		WeekCos:   math.Cos(2 * math.Pi * w / 52),
	}
}
