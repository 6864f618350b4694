package callclient

import (
	"context"
	"time"

	"telehealth-calls/internal/calls"
)

// DefaultPollInterval bounds how stale a participant's view of the call can be.
const DefaultPollInterval = 5 * time.Second

// StatusFetcher is the part of Client the poller needs.
type StatusFetcher interface {
	CallStatus(ctx context.Context, appointmentID int64) (Status, error)
}

// Affordances are the call controls a participant may use right now.
type Affordances struct {
	CanStart bool
	CanJoin  bool
	CanEnd   bool
}

// View is one poll result as a participant's UI renders it. On a failed poll
// Err is set and the previous call state is kept.
type View struct {
	Active      bool
	Call        *calls.Call
	Affordances Affordances
	Err         error
	At          time.Time
}

// Poller polls call status for one appointment until its context is cancelled.
type Poller struct {
	fetcher       StatusFetcher
	session       Session
	appointmentID int64
	interval      time.Duration
	onView        func(View)
}

func NewPoller(fetcher StatusFetcher, session Session, appointmentID int64, onView func(View)) *Poller {
	return &Poller{
		fetcher:       fetcher,
		session:       session,
		appointmentID: appointmentID,
		interval:      DefaultPollInterval,
		onView:        onView,
	}
}

// Run polls immediately and then on every interval tick. It returns ctx.Err()
// once the owning view is torn down.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last View
	for {
		last = p.poll(ctx, last)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.onView(last)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context, prev View) View {
	st, err := p.fetcher.CallStatus(ctx, p.appointmentID)
	v := View{At: time.Now()}
	if err != nil {
		v.Active, v.Call, v.Affordances = prev.Active, prev.Call, prev.Affordances
		v.Err = err
		return v
	}
	v.Active, v.Call = st.Active, st.Call
	v.Affordances = AffordancesFor(p.session, st)
	return v
}

// AffordancesFor derives the controls for a participant from call status.
// Doctors start and end; patients join and end. A patient may rejoin an ongoing call.
func AffordancesFor(s Session, st Status) Affordances {
	if s.IsDoctor() {
		return Affordances{CanStart: !st.Active, CanEnd: st.Active}
	}
	return Affordances{CanJoin: st.Active, CanEnd: st.Active}
}
