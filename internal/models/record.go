package models

// Record is one participant registration of an event.
type Record struct {
	EventName   string      `json:"eventName"`
	UserEmail   string      `json:"userEmail"`
	Paid        bool        `json:"paid"`
	VehicleType VehicleType `json:"vehicleType"`
	CheckedIn   bool        `json:"checkedIn"`
	Metadata    *Metadata   `json:"metadata"`
}

// RecordFromItem decodes a stored row. A metadata blob that does not parse is
// an ErrSerialization failure.
func RecordFromItem(item Item) (*Record, error) {
	md, err := ParseMetadata(item.Metadata)
	if err != nil {
		return nil, err
	}
	if md.PhoneNumber == "" {
		md.PhoneNumber = item.PhoneNumber
	}
	return &Record{
		EventName:   item.EventName,
		UserEmail:   item.SortKey,
		Paid:        item.Paid,
		VehicleType: NormalizeVehicleType(item.VehicleType),
		CheckedIn:   item.CheckedIn,
		Metadata:    md,
	}, nil
}

// Item encodes the record into its stored row.
func (r *Record) Item() (Item, error) {
	md := r.Metadata
	if md == nil {
		md = &Metadata{}
	}
	raw, err := md.Encode()
	if err != nil {
		return Item{}, err
	}
	return Item{
		EventName:   r.EventName,
		SortKey:     r.UserEmail,
		Paid:        r.Paid,
		CheckedIn:   r.CheckedIn,
		VehicleType: string(NormalizeVehicleType(string(r.VehicleType))),
		PhoneNumber: md.PhoneNumber,
		Metadata:    raw,
	}, nil
}

// Participants returns the number of people covered by the registration.
func (r *Record) Participants() int {
	return r.Metadata.ParticipantCount()
}
