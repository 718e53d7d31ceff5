package counters

// Snapshot is the read view of an event's counters.
type Snapshot struct {
	Total                    int64 `json:"total"`
	TotalCar                 int64 `json:"totalCar"`
	TotalMotorcycle          int64 `json:"totalMotorcycle"`
	TotalQuad                int64 `json:"totalQuad"`
	TotalParticipants        int64 `json:"totalParticipants"`
	ParticipantsCheckedIn    int64 `json:"participantsCheckedIn"`
	ParticipantsNotCheckedIn int64 `json:"participantsNotCheckedIn"`
	CheckedInCar             int64 `json:"checkedInCar"`
	CheckedInMotorcycle      int64 `json:"checkedInMotorcycle"`
	CheckedInQuad            int64 `json:"checkedInQuad"`
	Paid                     int64 `json:"paid"`
	PaidCar                  int64 `json:"paidCar"`
	PaidMotorcycle           int64 `json:"paidMotorcycle"`
	PaidQuad                 int64 `json:"paidQuad"`
}

func (s *Snapshot) field(name Name) *int64 {
	switch name {
	case Total:
		return &s.Total
	case TotalCar:
		return &s.TotalCar
	case TotalMotorcycle:
		return &s.TotalMotorcycle
	case TotalQuad:
		return &s.TotalQuad
	case TotalParticipants:
		return &s.TotalParticipants
	case ParticipantsCheckedIn:
		return &s.ParticipantsCheckedIn
	case ParticipantsNotCheckedIn:
		return &s.ParticipantsNotCheckedIn
	case CheckInCar:
		return &s.CheckedInCar
	case CheckInMotorcycle:
		return &s.CheckedInMotorcycle
	case CheckInQuad:
		return &s.CheckedInQuad
	case Paid:
		return &s.Paid
	case PaidCar:
		return &s.PaidCar
	case PaidMotorcycle:
		return &s.PaidMotorcycle
	case PaidQuad:
		return &s.PaidQuad
	}
	return nil
}

// Get returns the value of a counter, zero for names outside the vocabulary.
func (s Snapshot) Get(name Name) int64 {
	if p := s.field(name); p != nil {
		return *p
	}
	return 0
}

func (s *Snapshot) set(name Name, v int64) {
	if p := s.field(name); p != nil {
		*p = v
	}
}

// Values returns every counter of the snapshot keyed by name.
func (s Snapshot) Values() map[Name]int64 {
	out := make(map[Name]int64, len(registry))
	for _, n := range registry {
		out[n] = s.Get(n)
	}
	return out
}

// SnapshotOf sums the contributions of the given states into absolute values.
func SnapshotOf(states []State) Snapshot {
	total := Deltas{}
	for _, st := range states {
		total.Add(st.Contribution())
	}
	var s Snapshot
	for name, v := range total {
		s.set(name, v)
	}
	return s
}
