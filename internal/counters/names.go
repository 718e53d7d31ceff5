package counters

import (
	"fmt"
	"strings"

	"ms-registration/internal/models"
)

// Name is the sort key a counter is stored under inside the event partition.
type Name string

const (
	Total                    Name = "total"
	TotalCar                 Name = "totalcar"
	TotalMotorcycle          Name = "totalmotorcycle"
	TotalQuad                Name = "totalquad"
	CheckInCar               Name = "checkInCountercar"
	CheckInMotorcycle        Name = "checkInCountermotorcycle"
	CheckInQuad              Name = "checkInCounterquad"
	Paid                     Name = "paidCounter"
	PaidCar                  Name = "paidCountercar"
	PaidMotorcycle           Name = "paidCountermotorcycle"
	PaidQuad                 Name = "paidCounterquad"
	TotalParticipants        Name = "totalParticipants"
	ParticipantsCheckedIn    Name = "participantsCheckedIn"
	ParticipantsNotCheckedIn Name = "participantsNotCheckedIn"
)

var registry = []Name{
	Total,
	TotalCar,
	TotalMotorcycle,
	TotalQuad,
	CheckInCar,
	CheckInMotorcycle,
	CheckInQuad,
	Paid,
	PaidCar,
	PaidMotorcycle,
	PaidQuad,
	TotalParticipants,
	ParticipantsCheckedIn,
	ParticipantsNotCheckedIn,
}

var registered = func() map[string]struct{} {
	m := make(map[string]struct{}, len(registry))
	for _, n := range registry {
		m[string(n)] = struct{}{}
	}
	return m
}()

// All returns the counter vocabulary in a stable order.
func All() []Name {
	out := make([]Name, len(registry))
	copy(out, registry)
	return out
}

// IsCounterKey reports whether a sort key belongs to a counter rather than a participant.
func IsCounterKey(sortKey string) bool {
	_, ok := registered[sortKey]
	return ok
}

func TotalFor(v models.VehicleType) Name {
	return Name("total" + string(models.NormalizeVehicleType(string(v))))
}

func CheckInFor(v models.VehicleType) Name {
	return Name("checkInCounter" + string(models.NormalizeVehicleType(string(v))))
}

func PaidFor(v models.VehicleType) Name {
	return Name("paidCounter" + string(models.NormalizeVehicleType(string(v))))
}

// Validate checks a counter vocabulary: names must be unique, non-empty and
// impossible to confuse with a participant email.
func Validate(names []Name) error {
	seen := make(map[Name]struct{}, len(names))
	for _, n := range names {
		if strings.TrimSpace(string(n)) == "" {
			return fmt.Errorf("empty counter name: %w", models.ErrValidation)
		}
		if strings.Contains(string(n), "@") {
			return fmt.Errorf("counter name %q looks like a participant key: %w", n, models.ErrValidation)
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("duplicate counter name %q: %w", n, models.ErrValidation)
		}
		seen[n] = struct{}{}
	}
	return nil
}
