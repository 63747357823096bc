// Package calendar groups dated records into Monday-to-Sunday weeks.
package calendar

import (
	"time"

	"github.com/claude/hybridathlete/internal/models"
)

// Dated is anything carrying a YYYY-MM-DD date key.
type Dated interface {
	DateKey() string
}

// Day is one bucket of a week.
type Day[T Dated] struct {
	Date    models.Date  `json:"date"`
	Weekday time.Weekday `json:"weekday"`
	Records []T          `json:"records"`
}

// Week holds seven buckets, Monday first.
type Week[T Dated] struct {
	Monday models.Date `json:"monday"`
	Sunday models.Date `json:"sunday"`
	Days   [7]Day[T]   `json:"days"`
}

// Keys returns the seven date keys in order.
func (w Week[T]) Keys() []models.Date {
	keys := make([]models.Date, len(w.Days))
	for i, d := range w.Days {
		keys[i] = d.Date
	}
	return keys
}

// Count returns the number of bucketed records.
func (w Week[T]) Count() int {
	n := 0
	for _, d := range w.Days {
		n += len(d.Records)
	}
	return n
}

// MondayOf returns midnight of the Monday on or before anchor, in anchor's
// location. A Sunday anchor maps to the Monday six days earlier.
func MondayOf(anchor time.Time) time.Time {
	day := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, anchor.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeekRange returns the Monday and Sunday dates of anchor's week.
func WeekRange(anchor time.Time) (monday, sunday models.Date) {
	m := MondayOf(anchor)
	return models.DateOf(m), models.DateOf(m.AddDate(0, 0, 6))
}

// BucketWeek groups records by exact date-key match onto anchor's week.
// Records outside the week are dropped. Input order is preserved within a day.
func BucketWeek[T Dated](anchor time.Time, records []T) Week[T] {
	m := MondayOf(anchor)
	var w Week[T]
	index := make(map[string]int, 7)
	for i := range w.Days {
		d := m.AddDate(0, 0, i)
		w.Days[i] = Day[T]{Date: models.DateOf(d), Weekday: d.Weekday(), Records: []T{}}
		index[string(w.Days[i].Date)] = i
	}
	w.Monday = w.Days[0].Date
	w.Sunday = w.Days[6].Date

	for _, r := range records {
		if i, ok := index[r.DateKey()]; ok {
			w.Days[i].Records = append(w.Days[i].Records, r)
		}
	}
	return w
}
