package counters

import "ms-registration/internal/models"

// Deltas maps counters to signed adjustments.
type Deltas map[Name]int64

// State is the part of a record the counters are derived from.
type State struct {
	VehicleType models.VehicleType
	Paid        bool
	CheckedIn   bool
	People      int
}

func StateOf(r *models.Record) State {
	return State{
		VehicleType: models.NormalizeVehicleType(string(r.VehicleType)),
		Paid:        r.Paid,
		CheckedIn:   r.CheckedIn,
		People:      r.Participants(),
	}
}

// Contribution is what a single record adds to the absolute counter values.
func (s State) Contribution() Deltas {
	n := int64(s.People)
	if n < 1 {
		n = 1
	}
	d := Deltas{
		Total:                   1,
		TotalFor(s.VehicleType): 1,
		TotalParticipants:       n,
	}
	if s.CheckedIn {
		d[CheckInFor(s.VehicleType)] = 1
		d[ParticipantsCheckedIn] = n
	} else {
		d[ParticipantsNotCheckedIn] = n
	}
	if s.Paid {
		d[Paid] = 1
		d[PaidFor(s.VehicleType)] = 1
	}
	return d
}

// Diff returns the adjustments that move the counters from old to next. A nil
// old state is a record that did not exist. Zero deltas are omitted.
func Diff(old *State, next State) Deltas {
	out := next.Contribution()
	if old != nil {
		for name, v := range old.Contribution() {
			out[name] -= v
		}
	}
	for name, v := range out {
		if v == 0 {
			delete(out, name)
		}
	}
	return out
}

// Add accumulates other into d.
func (d Deltas) Add(other Deltas) {
	for name, v := range other {
		d[name] += v
	}
}
