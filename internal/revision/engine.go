// Package revision finds motorcycles approaching their next scheduled
// revision and drafts the invitation sent to the owner.
package revision

import (
	"cmp"
	"slices"

	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/notify"
)

const (
	DefaultIntervalKm = 3000
	DefaultWindowKm   = 2500
)

type Engine struct {
	intervalKm int
	windowKm   int
	notifier   notify.Builder
}

func NewEngine(intervalKm int, windowKm int, notifier notify.Builder) *Engine {
	if intervalKm <= 0 {
		intervalKm = DefaultIntervalKm
	}
	if windowKm < 0 || windowKm >= intervalKm {
		windowKm = intervalKm * 5 / 6
	}
	return &Engine{intervalKm: intervalKm, windowKm: windowKm, notifier: notifier}
}

// IsDue reports whether km sits inside the reminder window of the current
// revision interval, i.e. km % interval > window.
func (e *Engine) IsDue(km int) bool {
	return km > 0 && km%e.intervalKm > e.windowKm
}

// NextRevisionKm is the next multiple of the interval strictly above km.
func (e *Engine) NextRevisionKm(km int) int {
	return (km/e.intervalKm + 1) * e.intervalKm
}

// Due lists the motorcycles due for a revision, closest first. Motorcycles
// whose owner is not in customers are skipped.
func (e *Engine) Due(motorcycles []domain.Motorcycle, customers map[int64]domain.Customer) []domain.RevisionDue {
	due := make([]domain.RevisionDue, 0, len(motorcycles))
	for _, moto := range motorcycles {
		if !e.IsDue(moto.CurrentKm) {
			continue
		}
		cust, ok := customers[moto.CustomerID]
		if !ok {
			continue
		}
		next := e.NextRevisionKm(moto.CurrentKm)
		msg := e.notifier.RevisionMessage(cust, moto, next)
		due = append(due, domain.RevisionDue{
			Motorcycle:     moto,
			Customer:       cust,
			NextRevisionKm: next,
			KmRemaining:    next - moto.CurrentKm,
			Message:        msg,
			Link:           notify.WhatsAppLink(cust.WhatsApp, msg),
		})
	}

	slices.SortFunc(due, func(a, b domain.RevisionDue) int {
		if c := cmp.Compare(a.KmRemaining, b.KmRemaining); c != 0 {
			return c
		}
		return cmp.Compare(a.Motorcycle.ID, b.Motorcycle.ID)
	})
	return due
}

// Count is the number of motorcycles due, used by the dashboard.
func (e *Engine) Count(motorcycles []domain.Motorcycle) int {
	n := 0
	for _, moto := range motorcycles {
		if e.IsDue(moto.CurrentKm) {
			n++
		}
	}
	return n
}
