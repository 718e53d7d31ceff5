package models

// PaymentRequest confirms a payment for a participant.
type PaymentRequest struct {
	Amount      *float64 `json:"amount,omitempty"`
	ByWho       string   `json:"byWho,omitempty"`
	PaymentFile string   `json:"paymentFile,omitempty"`
}

// UpdateRequest carries a partial update. Nil fields are left untouched.
type UpdateRequest struct {
	VehicleType *string         `json:"vehicleType,omitempty"`
	Paid        *bool           `json:"paid,omitempty"`
	Metadata    *MetadataUpdate `json:"metadata,omitempty"`
}

type MetadataUpdate struct {
	People      []Person           `json:"people,omitempty"`
	PhoneNumber *string            `json:"phoneNumber,omitempty"`
	Vehicle     *Vehicle           `json:"vehicle,omitempty"`
	PaymentInfo *PaymentFileUpdate `json:"paymentInfo,omitempty"`

	// An empty string clears the comment.
	Comment *string `json:"comment,omitempty"`
}

type PaymentFileUpdate struct {
	PaymentFile *string `json:"paymentFile,omitempty"`
}
