package scheduling

import (
	"context"
	"time"
)

// AppointmentRepository persists appointments. GetByID returns
// ErrAppointmentNotFound when the id is unknown.
type AppointmentRepository interface {
	// Create stores a and assigns a fresh id.
	Create(ctx context.Context, a *Appointment) error
	// Insert stores a under the id it already carries.
	Insert(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
	List(ctx context.Context) ([]*Appointment, error)
	// ListStartingAfter returns appointments whose start is strictly after t.
	ListStartingAfter(ctx context.Context, t time.Time) ([]*Appointment, error)
	// ListOverlapping returns appointments containing start or end, bounds included.
	ListOverlapping(ctx context.Context, start, end time.Time) ([]*Appointment, error)
	// ListByDoctorContaining matches name as a substring of the doctor field.
	ListByDoctorContaining(ctx context.Context, name string) ([]*Appointment, error)
}

// DoctorRepository persists doctors. GetByName returns the lowest-id doctor
// with that exact name, or ErrDoctorNotFound.
type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id int64) (*Doctor, error)
	GetByName(ctx context.Context, name string) (*Doctor, error)
	List(ctx context.Context) ([]*Doctor, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
}

// Transactor runs fn so that its reads and writes are isolated from other
// transactional sections. Repository calls made with the ctx passed to fn
// join the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
