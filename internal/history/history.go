package history

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ms-registration/internal/metrics"
	"ms-registration/internal/models"
)

// TimestampLayout is the millisecond ISO-8601 form used by change entries.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

const empty = "(empty)"

type Recorder struct {
	Now func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{Now: time.Now}
}

// Record appends an entry to the change history of md. Entries never go back
// in time: a clock that stepped backwards reuses the last entry's timestamp.
func (r *Recorder) Record(md *models.Metadata, action models.Action, description string) error {
	if md == nil {
		return fmt.Errorf("metadata is required: %w", models.ErrValidation)
	}
	if action == "" || !action.Valid() {
		return fmt.Errorf("invalid history action %q: %w", action, models.ErrValidation)
	}
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("history description is required: %w", models.ErrValidation)
	}

	ts := r.now().UTC().Format(TimestampLayout)
	if n := len(md.ChangeHistory); n > 0 && md.ChangeHistory[n-1].Timestamp > ts {
		ts = md.ChangeHistory[n-1].Timestamp
	}

	md.ChangeHistory = append(md.ChangeHistory, models.ChangeEntry{
		Timestamp:   ts,
		Action:      action,
		Description: description,
	})
	metrics.TransitionsTotal.WithLabelValues(string(action)).Inc()
	return nil
}

func (r *Recorder) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Sanitize escapes text for embedding in a description. Blank input renders as "(empty)".
func Sanitize(text string) string {
	if strings.TrimSpace(text) == "" {
		return empty
	}
	return strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	).Replace(text)
}

// ApplyComment sets the record comment. A change is recorded as COMMENT_UPDATED
// and a non-blank previous comment is kept in the legacy commentsHistory list.
func (r *Recorder) ApplyComment(md *models.Metadata, comment string) (bool, error) {
	if md == nil {
		return false, fmt.Errorf("metadata is required: %w", models.ErrValidation)
	}
	old := md.Comment
	if old == comment {
		return false, nil
	}
	if strings.TrimSpace(old) != "" {
		md.CommentsHistory = append(md.CommentsHistory, old)
	}
	md.Comment = comment

	desc := fmt.Sprintf("Comment changed from \"%s\" to \"%s\"", Sanitize(old), Sanitize(comment))
	if err := r.Record(md, models.ActionCommentUpdated, desc); err != nil {
		return false, err
	}
	return true, nil
}

// Tracked holds the fields whose changes are reported in USER_UPDATED entries.
type Tracked struct {
	People      []models.Person
	PhoneNumber string
	Vehicle     *models.Vehicle
	PaymentFile string
	VehicleType models.VehicleType
	Paid        bool
}

func TrackedOf(rec *models.Record) Tracked {
	t := Tracked{
		VehicleType: models.NormalizeVehicleType(string(rec.VehicleType)),
		Paid:        rec.Paid,
	}
	if md := rec.Metadata; md != nil {
		t.People = append([]models.Person(nil), md.People...)
		t.PhoneNumber = md.PhoneNumber
		if md.Vehicle != nil {
			v := *md.Vehicle
			t.Vehicle = &v
		}
		if md.PaymentInfo != nil {
			t.PaymentFile = md.PaymentInfo.PaymentFile
		}
	}
	return t
}

func (t Tracked) fields() [][2]string {
	return [][2]string{
		{"people", renderJSON(t.People, len(t.People) == 0)},
		{"phoneNumber", Sanitize(t.PhoneNumber)},
		{"vehicle", renderJSON(t.Vehicle, t.Vehicle == nil || *t.Vehicle == models.Vehicle{})},
		{"paymentFile", Sanitize(t.PaymentFile)},
		{"vehicleType", Sanitize(string(t.VehicleType))},
		{"paid", strconv.FormatBool(t.Paid)},
	}
}

func renderJSON(v interface{}, isEmpty bool) string {
	if isEmpty {
		return empty
	}
	b, err := json.Marshal(v)
	if err != nil {
		return empty
	}
	return string(b)
}

// Diff describes the tracked fields that differ between old and next, one
// "{field}: {old} -> {new}" line each. It is empty when nothing changed.
func Diff(old, next Tracked) string {
	before, after := old.fields(), next.fields()
	var lines []string
	for i := range before {
		if before[i][1] != after[i][1] {
			lines = append(lines, fmt.Sprintf("%s: %s -> %s", before[i][0], before[i][1], after[i][1]))
		}
	}
	return strings.Join(lines, "\n")
}

// RecordDiff appends a single USER_UPDATED entry when any tracked field changed.
func (r *Recorder) RecordDiff(md *models.Metadata, old, next Tracked) (bool, error) {
	desc := Diff(old, next)
	if desc == "" {
		return false, nil
	}
	if err := r.Record(md, models.ActionUserUpdated, desc); err != nil {
		return false, err
	}
	return true, nil
}
