package clock

import (
	"time"

	"github.com/jinzhu/now"
)

// Clock isolates every "now"/"elapsed" comparison behind one injectable
// abstraction so lifecycle logic can run against synthetic timestamps and
// never drifts with the host timezone.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type business struct {
	loc *time.Location
}

// NewBusiness returns a clock pinned to the canonical business timezone.
func NewBusiness(tz string) (Clock, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	return business{loc: loc}, nil
}

func (b business) Now() time.Time           { return time.Now().In(b.loc) }
func (b business) Location() *time.Location { return b.loc }

// Fixed is a test clock advanced by hand.
type Fixed struct {
	T time.Time
}

func NewFixed(t time.Time) *Fixed { return &Fixed{T: t} }

func (f *Fixed) Now() time.Time           { return f.T }
func (f *Fixed) Location() *time.Location { return f.T.Location() }

func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }

// CutoffDays returns the start of the day `days` days before t. Purges run
// on whole-day boundaries.
func CutoffDays(t time.Time, days int) time.Time {
	return now.With(t).BeginningOfDay().AddDate(0, 0, -days)
}
