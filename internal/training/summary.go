package training

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// SportSummary totals one sport inside the analysis window.
type SportSummary struct {
	Sessions   int     `json:"sessions"`
	Hours      float64 `json:"hours"`
	DistanceKm float64 `json:"distanceKm"`
}

// Summary describes the analysis window.
type Summary struct {
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Days     int       `json:"days"`
	Sessions int       `json:"sessions"`

	TotalHours        float64 `json:"totalHours"`
	TotalDistanceKm   float64 `json:"totalDistanceKm"`
	AvgWeeklyHours    float64 `json:"avgWeeklyHours"`
	LongestSessionMin float64 `json:"longestSessionMin"`
	PrimarySport      string  `json:"primarySport"`

	BySport map[string]SportSummary `json:"bySport"`

	// AcuteLoad is the load of the last 7 days, ChronicLoad the mean weekly
	// load over the window. LoadRatio is acute/chronic (0 without history).
	AcuteLoad   float64 `json:"acuteLoad"`
	ChronicLoad float64 `json:"chronicLoad"`
	LoadRatio   float64 `json:"loadRatio"`
}

// WeekLoad is one 7-day bucket of the window. Week 1 is the oldest.
type WeekLoad struct {
	Week       int       `json:"week"`
	Start      time.Time `json:"start"`
	Sessions   int       `json:"sessions"`
	Hours      float64   `json:"hours"`
	DistanceKm float64   `json:"distanceKm"`
	Load       float64   `json:"load"`
}

// Summarize computes the summary and weekly buckets over the last days
// days, counted back from the most recent activity. acts must be sorted by
// start time.
func Summarize(acts []Activity, days int) (Summary, []WeekLoad) {
	s := Summary{Days: days, BySport: map[string]SportSummary{}}
	if len(acts) == 0 || days <= 0 {
		return s, nil
	}

	last := acts[len(acts)-1].Start
	to := last.Truncate(day).Add(day)
	from := to.Add(-time.Duration(days) * day)
	s.From, s.To = from, to

	nWeeks := (days + 6) / 7
	weeks := make([]WeekLoad, nWeeks)
	for i := range weeks {
		weeks[i] = WeekLoad{Week: i + 1, Start: from.Add(time.Duration(i*7) * day)}
	}

	var totalLoad float64
	acuteFrom := to.Add(-7 * day)
	for _, a := range acts {
		if a.Start.Before(from) || !a.Start.Before(to) {
			continue
		}
		hours := a.Duration().Hours()
		km := a.DistanceMeters / 1000
		load := a.Load()

		s.Sessions++
		s.TotalHours += hours
		s.TotalDistanceKm += km
		s.LongestSessionMin = math.Max(s.LongestSessionMin, a.Duration().Minutes())
		totalLoad += load
		if !a.Start.Before(acuteFrom) {
			s.AcuteLoad += load
		}

		sp := s.BySport[a.Sport]
		sp.Sessions++
		sp.Hours += hours
		sp.DistanceKm += km
		s.BySport[a.Sport] = sp

		idx := min(int(a.Start.Sub(from)/(7*day)), nWeeks-1)
		w := &weeks[idx]
		w.Sessions++
		w.Hours += hours
		w.DistanceKm += km
		w.Load += load
	}

	weeksInWindow := float64(days) / 7
	s.AvgWeeklyHours = round2(s.TotalHours / weeksInWindow)
	s.ChronicLoad = round2(totalLoad / weeksInWindow)
	if s.ChronicLoad > 0 {
		s.LoadRatio = round2(s.AcuteLoad / s.ChronicLoad)
	}
	s.AcuteLoad = round2(s.AcuteLoad)
	s.TotalHours = round2(s.TotalHours)
	s.TotalDistanceKm = round2(s.TotalDistanceKm)
	s.LongestSessionMin = round2(s.LongestSessionMin)

	best := -1.0
	for sport, sp := range s.BySport {
		sp.Hours = round2(sp.Hours)
		sp.DistanceKm = round2(sp.DistanceKm)
		s.BySport[sport] = sp
		if sp.Hours > best || (sp.Hours == best && sport < s.PrimarySport) {
			best = sp.Hours
			s.PrimarySport = sport
		}
	}

	for i := range weeks {
		weeks[i].Hours = round2(weeks[i].Hours)
		weeks[i].DistanceKm = round2(weeks[i].DistanceKm)
		weeks[i].Load = round2(weeks[i].Load)
	}
	return s, weeks
}

// LastWeeks returns at most n of the most recent buckets, oldest first.
func LastWeeks(weeks []WeekLoad, n int) []WeekLoad {
	if n <= 0 || n >= len(weeks) {
		return weeks
	}
	return weeks[len(weeks)-n:]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
