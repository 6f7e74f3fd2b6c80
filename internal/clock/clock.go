package clock

import "time"

type Clock interface {
	Now() time.Time
}

// System reads the wall clock in the shop's location.
type System struct {
	Location *time.Location
}

func (c System) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// Fixed always reports the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time {
	return time.Time(f)
}

// FixedDate pins a clock to midnight of the given civil date.
func FixedDate(year int, month time.Month, day int, loc *time.Location) Fixed {
	if loc == nil {
		loc = time.UTC
	}
	return Fixed(time.Date(year, month, day, 0, 0, 0, 0, loc))
}

// Today returns the current civil date at midnight in the clock's location.
func Today(c Clock) time.Time {
	return Midnight(c.Now())
}

func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func NewSystem(tz string) (System, error) {
	if tz == "" {
		return System{Location: time.Local}, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return System{}, err
	}
	return System{Location: loc}, nil
}
