package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appointments/api/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// PGStore is the PostgreSQL-backed store.
type PGStore struct{ pool *pgxpool.Pool }

func NewPGStore(pool *pgxpool.Pool) *PGStore { return &PGStore{pool: pool} }

func (s *PGStore) Appointments() AppointmentRepository { return &appointmentRepoPG{pool: s.pool} }

func (s *PGStore) Doctors() DoctorRepository { return &doctorRepoPG{pool: s.pool} }

// WithinTx runs fn in a transaction holding a lock that excludes concurrent
// appointment writers, so check-then-insert sequences cannot interleave.
func (s *PGStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.InTx(ctx, s.pool, func(ctx context.Context) error {
		if _, err := db.TxFromContext(ctx).Exec(ctx, `LOCK TABLE appointment IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("lock appointment table: %w", err)
		}
		return fn(ctx)
	})
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func (r *appointmentRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const apptCols = `id, doctor, patient, start_date, end_date`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(&a.ID, &a.Doctor, &a.Patient, &a.StartDate, &a.EndDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) query(ctx context.Context, where string, args ...interface{}) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointment `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Appointment{}
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (doctor, patient, start_date, end_date)
		VALUES ($1,$2,$3,$4) RETURNING id`,
		a.Doctor, a.Patient, a.StartDate, a.EndDate).Scan(&a.ID)
}

func (r *appointmentRepoPG) Insert(ctx context.Context, a *Appointment) error {
	if _, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, doctor, patient, start_date, end_date)
		VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.Doctor, a.Patient, a.StartDate, a.EndDate); err != nil {
		return err
	}
	// Keep generated ids ahead of explicitly chosen ones.
	_, err := r.conn(ctx).Exec(ctx, `
		SELECT setval('appointment_id_seq',
			GREATEST((SELECT MAX(id) FROM appointment), (SELECT last_value FROM appointment_id_seq)))`)
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET doctor=$2, patient=$3, start_date=$4, end_date=$5
		WHERE id = $1`,
		a.ID, a.Doctor, a.Patient, a.StartDate, a.EndDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	return err
}

func (r *appointmentRepoPG) DeleteAll(ctx context.Context) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment`)
	return err
}

func (r *appointmentRepoPG) List(ctx context.Context) ([]*Appointment, error) {
	return r.query(ctx, ``)
}

func (r *appointmentRepoPG) ListStartingAfter(ctx context.Context, t time.Time) ([]*Appointment, error) {
	return r.query(ctx, `WHERE start_date > $1`, t)
}

func (r *appointmentRepoPG) ListOverlapping(ctx context.Context, start, end time.Time) ([]*Appointment, error) {
	return r.query(ctx, `
		WHERE ($1 >= start_date AND $1 <= end_date)
		   OR ($2 >= start_date AND $2 <= end_date)`, start, end)
}

func (r *appointmentRepoPG) ListByDoctorContaining(ctx context.Context, name string) ([]*Appointment, error) {
	return r.query(ctx, `WHERE strpos(doctor, $1) > 0`, name)
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func (r *doctorRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

func (r *doctorRepoPG) scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	if err := row.Scan(&d.ID, &d.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	return r.conn(ctx).QueryRow(ctx, `INSERT INTO doctor (name) VALUES ($1) RETURNING id`, d.Name).Scan(&d.ID)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id int64) (*Doctor, error) {
	return r.scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT id, name FROM doctor WHERE id = $1`, id))
}

func (r *doctorRepoPG) GetByName(ctx context.Context, name string) (*Doctor, error) {
	return r.scanDoctor(r.conn(ctx).QueryRow(ctx,
		`SELECT id, name FROM doctor WHERE name = $1 ORDER BY id LIMIT 1`, name))
}

func (r *doctorRepoPG) List(ctx context.Context) ([]*Doctor, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name FROM doctor ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Doctor{}
	for rows.Next() {
		d, err := r.scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *doctorRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor WHERE id = $1`, id)
	return err
}

func (r *doctorRepoPG) DeleteAll(ctx context.Context) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor`)
	return err
}
