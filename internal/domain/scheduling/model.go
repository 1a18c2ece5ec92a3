package scheduling

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire format for every date in the API (minute precision,
// server-local time zone).
const DateLayout = "2006-01-02T15:04"

// IncoherentDatesMessage is returned to clients whose appointment has a
// missing start, a missing end, or an end that does not follow the start.
const IncoherentDatesMessage = "Incoherent start and end dates"

// Appointment maps to the appointment table.
type Appointment struct {
	ID        int64      `db:"id" json:"id"`
	Doctor    string     `db:"doctor" json:"doctor"`
	StartDate *time.Time `db:"start_date" json:"startDate"`
	EndDate   *time.Time `db:"end_date" json:"endDate"`
	Patient   string     `db:"patient" json:"patient"`
}

// Doctor maps to the doctor table.
type Doctor struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// ParseDate parses s in DateLayout. Out-of-range fields are rejected rather
// than rolled over.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate renders t in DateLayout in the server's zone.
func FormatDate(t time.Time) string {
	return t.In(time.Local).Format(DateLayout)
}

// IsValid reports whether both dates are present and start is strictly
// before end.
func (a *Appointment) IsValid() bool {
	if a.StartDate == nil || a.EndDate == nil {
		return false
	}
	return a.StartDate.Before(*a.EndDate)
}

// Overlaps reports whether start or end falls inside [a.StartDate, a.EndDate],
// bounds included. A candidate that strictly encloses a is not an overlap.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	if a.StartDate == nil || a.EndDate == nil {
		return false
	}
	return a.contains(start) || a.contains(end)
}

func (a *Appointment) contains(t time.Time) bool {
	return !t.Before(*a.StartDate) && !t.After(*a.EndDate)
}

// IsUpcoming reports whether the appointment starts strictly after now.
// Only upcoming appointments may be cancelled or rescheduled.
func (a *Appointment) IsUpcoming(now time.Time) bool {
	return a.StartDate != nil && a.StartDate.After(now)
}

func (a *Appointment) String() string {
	return fmt.Sprintf("Appointment{id=%d, doctor='%s', startDate=%s, endDate=%s, patient='%s'}",
		a.ID, a.Doctor, formatOptional(a.StartDate), formatOptional(a.EndDate), a.Patient)
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return "null"
	}
	return FormatDate(*t)
}

type appointmentJSON struct {
	ID        int64   `json:"id"`
	Doctor    string  `json:"doctor"`
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
	Patient   string  `json:"patient"`
}

func (a Appointment) MarshalJSON() ([]byte, error) {
	out := appointmentJSON{ID: a.ID, Doctor: a.Doctor, Patient: a.Patient}
	if a.StartDate != nil {
		s := FormatDate(*a.StartDate)
		out.StartDate = &s
	}
	if a.EndDate != nil {
		s := FormatDate(*a.EndDate)
		out.EndDate = &s
	}
	return json.Marshal(out)
}

func (a *Appointment) UnmarshalJSON(data []byte) error {
	var in appointmentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := Appointment{ID: in.ID, Doctor: in.Doctor, Patient: in.Patient}
	if in.StartDate != nil {
		t, err := ParseDate(*in.StartDate)
		if err != nil {
			return fmt.Errorf("startDate: %w", err)
		}
		out.StartDate = &t
	}
	if in.EndDate != nil {
		t, err := ParseDate(*in.EndDate)
		if err != nil {
			return fmt.Errorf("endDate: %w", err)
		}
		out.EndDate = &t
	}
	*a = out
	return nil
}
