package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/appointments/api/internal/platform/telemetry"
)

var tracer = otel.Tracer("github.com/appointments/api/internal/domain/scheduling")

type Service struct {
	appointments AppointmentRepository
	doctors      DoctorRepository
	tx           Transactor
	logger       zerolog.Logger
	metrics      *telemetry.Collector
	now          func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for cancellation and link rules.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *telemetry.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l.With().Str("component", "scheduling").Logger() }
}

func NewService(appt AppointmentRepository, doc DoctorRepository, tx Transactor, opts ...Option) *Service {
	s := &Service{
		appointments: appt,
		doctors:      doc,
		tx:           tx,
		logger:       zerolog.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }

// observe closes the span and counts the outcome of one operation.
func (s *Service) observe(span trace.Span, op string, err error) {
	outcome := outcomeOf(err)
	s.metrics.RecordOperation(op, outcome)
	span.SetAttributes(attribute.String("scheduling.outcome", outcome))
	if err != nil && outcome == "error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func outcomeOf(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr), errors.Is(err, ErrInvalidDate):
		return "invalid"
	case errors.Is(err, ErrAppointmentNotFound), errors.Is(err, ErrDoctorNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

// -- Appointments --

// ListAppointments returns every appointment.
func (s *Service) ListAppointments(ctx context.Context) (items []*Appointment, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.ListAppointments")
	defer func() { s.observe(span, "list_appointments", err) }()
	return s.appointments.List(ctx)
}

// ListAppointmentsAfter parses date and returns appointments starting
// strictly after it. A malformed date yields ErrInvalidDate.
func (s *Service) ListAppointmentsAfter(ctx context.Context, date string) (items []*Appointment, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.ListAppointmentsAfter",
		trace.WithAttributes(attribute.String("scheduling.date", date)))
	defer func() { s.observe(span, "list_appointments", err) }()

	after, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	return s.appointments.ListStartingAfter(ctx, after)
}

// CreateAppointment validates a, rejects it when it overlaps any stored
// appointment, and stores it under a fresh id. The check and the insert run
// in one transaction.
func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) (err error) {
	ctx, span := tracer.Start(ctx, "scheduling.CreateAppointment")
	defer func() { s.observe(span, "create_appointment", err) }()

	if !a.IsValid() {
		return &ValidationError{Messages: []string{IncoherentDatesMessage}}
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		clashes, err := s.appointments.ListOverlapping(ctx, *a.StartDate, *a.EndDate)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if len(clashes) > 0 {
			s.logger.Debug().Str("candidate", a.String()).Int("clashes", len(clashes)).Msg("appointment rejected")
			return ErrOverlap
		}
		a.ID = 0
		return s.appointments.Create(ctx, a)
	})
	if err != nil {
		return err
	}
	s.logger.Info().Int64("appointment_id", a.ID).Str("doctor", a.Doctor).Msg("appointment created")
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id int64) (a *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.GetAppointment",
		trace.WithAttributes(attribute.Int64("scheduling.appointment_id", id)))
	defer func() { s.observe(span, "get_appointment", err) }()
	return s.appointments.GetByID(ctx, id)
}

// UpdateAppointment overwrites doctor, dates and patient of appointment id,
// or inserts in under id when no such appointment exists. The body is stored
// as given, without the validity or overlap checks of CreateAppointment.
func (s *Service) UpdateAppointment(ctx context.Context, id int64, in *Appointment) (out *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.UpdateAppointment",
		trace.WithAttributes(attribute.Int64("scheduling.appointment_id", id)))
	defer func() { s.observe(span, "update_appointment", err) }()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.appointments.GetByID(ctx, id)
		if errors.Is(err, ErrAppointmentNotFound) {
			in.ID = id
			out = in
			return s.appointments.Insert(ctx, in)
		}
		if err != nil {
			return err
		}
		existing.Doctor = in.Doctor
		existing.StartDate = in.StartDate
		existing.EndDate = in.EndDate
		existing.Patient = in.Patient
		out = existing
		return s.appointments.Update(ctx, existing)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelAppointment deletes an appointment that has not started yet.
// Appointments starting before now (or with no start) yield
// ErrPastAppointment.
func (s *Service) CancelAppointment(ctx context.Context, id int64) (err error) {
	ctx, span := tracer.Start(ctx, "scheduling.CancelAppointment",
		trace.WithAttributes(attribute.Int64("scheduling.appointment_id", id)))
	defer func() { s.observe(span, "cancel_appointment", err) }()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.StartDate == nil || a.StartDate.Before(s.now()) {
			return ErrPastAppointment
		}
		if err := s.appointments.Delete(ctx, id); err != nil {
			return err
		}
		s.logger.Info().Int64("appointment_id", id).Msg("appointment cancelled")
		return nil
	})
}

// DeleteAppointment removes an appointment regardless of its dates.
func (s *Service) DeleteAppointment(ctx context.Context, id int64) (err error) {
	ctx, span := tracer.Start(ctx, "scheduling.DeleteAppointment",
		trace.WithAttributes(attribute.Int64("scheduling.appointment_id", id)))
	defer func() { s.observe(span, "delete_appointment", err) }()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.appointments.GetByID(ctx, id); err != nil {
			return err
		}
		return s.appointments.Delete(ctx, id)
	})
}

func (s *Service) DeleteAllAppointments(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "scheduling.DeleteAllAppointments")
	defer func() { s.observe(span, "delete_all_appointments", err) }()

	if err := s.appointments.DeleteAll(ctx); err != nil {
		return err
	}
	s.logger.Warn().Msg("all appointments deleted")
	return nil
}

// -- Doctors --

func (s *Service) ListDoctors(ctx context.Context) (items []*Doctor, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.ListDoctors")
	defer func() { s.observe(span, "list_doctors", err) }()
	return s.doctors.List(ctx)
}

func (s *Service) GetDoctor(ctx context.Context, name string) (d *Doctor, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.GetDoctor",
		trace.WithAttributes(attribute.String("scheduling.doctor", name)))
	defer func() { s.observe(span, "get_doctor", err) }()
	return s.doctors.GetByName(ctx, name)
}

// ListDoctorAppointments returns the appointments whose doctor field contains
// name. The doctor itself need not exist.
func (s *Service) ListDoctorAppointments(ctx context.Context, name string) (items []*Appointment, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.ListDoctorAppointments",
		trace.WithAttributes(attribute.String("scheduling.doctor", name)))
	defer func() { s.observe(span, "list_doctor_appointments", err) }()
	return s.appointments.ListByDoctorContaining(ctx, name)
}

// DeleteDoctor removes the doctor named name unless the doctor field of some
// appointment still contains that name.
func (s *Service) DeleteDoctor(ctx context.Context, name string) (err error) {
	ctx, span := tracer.Start(ctx, "scheduling.DeleteDoctor",
		trace.WithAttributes(attribute.String("scheduling.doctor", name)))
	defer func() { s.observe(span, "delete_doctor", err) }()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		d, err := s.doctors.GetByName(ctx, name)
		if err != nil {
			return err
		}
		if err := s.ensureUnreferenced(ctx, d); err != nil {
			return err
		}
		return s.doctors.Delete(ctx, d.ID)
	})
}

// DeleteAllDoctors removes every doctor, or none when any of them is still
// referenced.
func (s *Service) DeleteAllDoctors(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "scheduling.DeleteAllDoctors")
	defer func() { s.observe(span, "delete_all_doctors", err) }()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		doctors, err := s.doctors.List(ctx)
		if err != nil {
			return err
		}
		for _, d := range doctors {
			if err := s.ensureUnreferenced(ctx, d); err != nil {
				return err
			}
		}
		return s.doctors.DeleteAll(ctx)
	})
}

func (s *Service) ensureUnreferenced(ctx context.Context, d *Doctor) error {
	refs, err := s.appointments.ListByDoctorContaining(ctx, d.Name)
	if err != nil {
		return err
	}
	if len(refs) > 0 {
		return fmt.Errorf("%w: %s has %d", ErrDoctorReferenced, d.Name, len(refs))
	}
	return nil
}

// SeedDoctors creates each named doctor that does not exist yet and returns
// how many were created.
func (s *Service) SeedDoctors(ctx context.Context, names []string) (created int, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.SeedDoctors")
	defer func() { s.observe(span, "seed_doctors", err) }()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, name := range names {
			if name == "" {
				continue
			}
			_, err := s.doctors.GetByName(ctx, name)
			if err == nil {
				continue
			}
			if !errors.Is(err, ErrDoctorNotFound) {
				return err
			}
			if err := s.doctors.Create(ctx, &Doctor{Name: name}); err != nil {
				return fmt.Errorf("seed doctor %s: %w", name, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int("created", created).Strs("doctors", names).Msg("doctors seeded")
	return created, nil
}
