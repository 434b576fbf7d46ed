// Package dashboard derives the organiser dashboard's view models from
// events and tickets fetched from the API.
package dashboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"ticketdesk/models"
)

// counts reports whether t takes part in sales figures.
func counts(t models.Ticket) bool { return t.Status != models.TicketCancelled }

// priceIndex maps event id -> tier type -> price.
func priceIndex(events []models.Event) map[string]map[string]float64 {
	idx := make(map[string]map[string]float64, len(events))
	for _, e := range events {
		tiers := make(map[string]float64, len(e.Pricing))
		for _, p := range e.Pricing {
			tiers[p.Type] = p.Price
		}
		idx[e.ID] = tiers
	}
	return idx
}

// Revenue sums the matched tier price of every ticket that is not
// cancelled; active and used tickets both count. A ticket whose event or
// tier is unknown adds nothing.
func Revenue(tickets []models.Ticket, events []models.Event) float64 {
	idx := priceIndex(events)
	var sum float64
	for _, t := range tickets {
		if counts(t) {
			sum += idx[t.EventID][t.Type]
		}
	}
	return sum
}

// Sold is the number of tickets that are not cancelled.
func Sold(tickets []models.Ticket) int {
	n := 0
	for _, t := range tickets {
		if counts(t) {
			n++
		}
	}
	return n
}

// AveragePrice is Revenue / Sold, or 0 when nothing was sold.
func AveragePrice(tickets []models.Ticket, events []models.Event) float64 {
	n := Sold(tickets)
	if n == 0 {
		return 0
	}
	return Revenue(tickets, events) / float64(n)
}

// FormatMoney renders v with thousands separators and two decimals.
func FormatMoney(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

/* -------------------- time windows -------------------- */

// Window is a trailing time range over ticket creation times.
type Window string

const (
	Week    Window = "7d"
	Month   Window = "30d"
	Quarter Window = "90d"
	Year    Window = "1y"
	All     Window = "all"
)

// ParseWindow accepts the Window constants; empty means Month.
func ParseWindow(s string) (Window, error) {
	switch w := Window(s); w {
	case "":
		return Month, nil
	case Week, Month, Quarter, Year, All:
		return w, nil
	}
	return "", fmt.Errorf("unknown window %q", s)
}

// Days is the number of calendar days the window covers, 0 for All.
func (w Window) Days() int {
	switch w {
	case Week:
		return 7
	case Month:
		return 30
	case Quarter:
		return 90
	case Year:
		return 365
	}
	return 0
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Start is the first instant inside the window, zero for All. The window
// includes today, so 7d starts at midnight UTC six days ago.
func (w Window) Start(now time.Time) time.Time {
	n := w.Days()
	if n == 0 {
		return time.Time{}
	}
	return day(now).AddDate(0, 0, -(n - 1))
}

// Filter keeps the tickets created inside the window.
func (w Window) Filter(tickets []models.Ticket, now time.Time) []models.Ticket {
	start := w.Start(now)
	out := make([]models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.CreatedAt.Before(start) || t.CreatedAt.After(now) {
			continue
		}
		out = append(out, t)
	}
	return out
}

/* -------------------- series & breakdowns -------------------- */

// Point is one day of the sales chart.
type Point struct {
	Day     string  `json:"day"`
	Tickets int     `json:"tickets"`
	Revenue float64 `json:"revenue"`
}

// DailySeries buckets counted tickets by UTC day. Bounded windows return one
// point per day, zero-filled; All returns only days with sales.
func DailySeries(tickets []models.Ticket, events []models.Event, w Window, now time.Time) []Point {
	idx := priceIndex(events)
	buckets := map[string]*Point{}
	for _, t := range w.Filter(tickets, now) {
		if !counts(t) {
			continue
		}
		key := day(t.CreatedAt).Format(time.DateOnly)
		p, ok := buckets[key]
		if !ok {
			p = &Point{Day: key}
			buckets[key] = p
		}
		p.Tickets++
		p.Revenue += idx[t.EventID][t.Type]
	}

	if n := w.Days(); n > 0 {
		out := make([]Point, 0, n)
		for d := w.Start(now); !d.After(day(now)); d = d.AddDate(0, 0, 1) {
			key := d.Format(time.DateOnly)
			if p, ok := buckets[key]; ok {
				out = append(out, *p)
			} else {
				out = append(out, Point{Day: key})
			}
		}
		return out
	}

	out := make([]Point, 0, len(buckets))
	for _, p := range buckets {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// TierSummary is the sales of one pricing tier.
type TierSummary struct {
	Type     string  `json:"type"`
	Price    float64 `json:"price"`
	Sold     int     `json:"sold"`
	Capacity int     `json:"capacity"`
	Revenue  float64 `json:"revenue"`
}

// EventSummary is the sales of one event. Sold includes tickets of types
// the event no longer prices.
type EventSummary struct {
	EventID  string        `json:"eventId"`
	Title    string        `json:"title"`
	Sold     int           `json:"sold"`
	Capacity int           `json:"capacity"`
	Revenue  float64       `json:"revenue"`
	Tiers    []TierSummary `json:"tiers"`
}

// PerEvent breaks sales down by event and tier, in the order of events.
func PerEvent(tickets []models.Ticket, events []models.Event) []EventSummary {
	byEvent := map[string][]models.Ticket{}
	for _, t := range tickets {
		if counts(t) {
			byEvent[t.EventID] = append(byEvent[t.EventID], t)
		}
	}

	out := make([]EventSummary, 0, len(events))
	for _, e := range events {
		s := EventSummary{
			EventID:  e.ID,
			Title:    e.Title,
			Sold:     len(byEvent[e.ID]),
			Capacity: e.Capacity(),
			Tiers:    make([]TierSummary, 0, len(e.Pricing)),
		}
		for _, p := range e.Pricing {
			ts := TierSummary{Type: p.Type, Price: p.Price, Capacity: p.TicketCount}
			for _, t := range byEvent[e.ID] {
				if t.Type == p.Type {
					ts.Sold++
				}
			}
			ts.Revenue = float64(ts.Sold) * p.Price
			s.Revenue += ts.Revenue
			s.Tiers = append(s.Tiers, ts)
		}
		out = append(out, s)
	}
	return out
}
