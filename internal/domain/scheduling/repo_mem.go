package scheduling

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps appointments and doctors in process memory. It backs the
// "memory" store mode and the service tests.
type MemoryStore struct {
	txMu sync.Mutex

	mu                sync.RWMutex
	appointments      map[int64]*Appointment
	doctors           map[int64]*Doctor
	lastAppointmentID int64
	lastDoctorID      int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		appointments: make(map[int64]*Appointment),
		doctors:      make(map[int64]*Doctor),
	}
}

func (s *MemoryStore) Appointments() AppointmentRepository { return &appointmentRepoMem{s} }

func (s *MemoryStore) Doctors() DoctorRepository { return &doctorRepoMem{s} }

type memTxKey struct{}

// WithinTx serializes transactional sections. Writes already applied when fn
// fails are not undone, so callers validate before writing.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) == s {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(context.WithValue(ctx, memTxKey{}, s))
}

func cloneAppointment(a *Appointment) *Appointment {
	out := *a
	if a.StartDate != nil {
		t := *a.StartDate
		out.StartDate = &t
	}
	if a.EndDate != nil {
		t := *a.EndDate
		out.EndDate = &t
	}
	return &out
}

// =========== Appointment Repository ===========

type appointmentRepoMem struct{ s *MemoryStore }

func (r *appointmentRepoMem) Create(_ context.Context, a *Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lastAppointmentID++
	a.ID = r.s.lastAppointmentID
	r.s.appointments[a.ID] = cloneAppointment(a)
	return nil
}

func (r *appointmentRepoMem) Insert(_ context.Context, a *Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.appointments[a.ID]; ok {
		return fmt.Errorf("appointment %d already exists", a.ID)
	}
	if a.ID > r.s.lastAppointmentID {
		r.s.lastAppointmentID = a.ID
	}
	r.s.appointments[a.ID] = cloneAppointment(a)
	return nil
}

func (r *appointmentRepoMem) GetByID(_ context.Context, id int64) (*Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return cloneAppointment(a), nil
}

func (r *appointmentRepoMem) Update(_ context.Context, a *Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.appointments[a.ID]; !ok {
		return ErrAppointmentNotFound
	}
	r.s.appointments[a.ID] = cloneAppointment(a)
	return nil
}

func (r *appointmentRepoMem) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.appointments, id)
	return nil
}

func (r *appointmentRepoMem) DeleteAll(_ context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.appointments = make(map[int64]*Appointment)
	return nil
}

func (r *appointmentRepoMem) List(_ context.Context) ([]*Appointment, error) {
	return r.filter(func(*Appointment) bool { return true }), nil
}

func (r *appointmentRepoMem) ListStartingAfter(_ context.Context, t time.Time) ([]*Appointment, error) {
	return r.filter(func(a *Appointment) bool {
		return a.StartDate != nil && a.StartDate.After(t)
	}), nil
}

func (r *appointmentRepoMem) ListOverlapping(_ context.Context, start, end time.Time) ([]*Appointment, error) {
	return r.filter(func(a *Appointment) bool { return a.Overlaps(start, end) }), nil
}

func (r *appointmentRepoMem) ListByDoctorContaining(_ context.Context, name string) ([]*Appointment, error) {
	return r.filter(func(a *Appointment) bool { return strings.Contains(a.Doctor, name) }), nil
}

// filter returns copies of the matching appointments ordered by id.
func (r *appointmentRepoMem) filter(keep func(*Appointment) bool) []*Appointment {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := make([]*Appointment, 0, len(r.s.appointments))
	for _, a := range r.s.appointments {
		if keep(a) {
			items = append(items, cloneAppointment(a))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// =========== Doctor Repository ===========

type doctorRepoMem struct{ s *MemoryStore }

func (r *doctorRepoMem) Create(_ context.Context, d *Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lastDoctorID++
	d.ID = r.s.lastDoctorID
	cp := *d
	r.s.doctors[d.ID] = &cp
	return nil
}

func (r *doctorRepoMem) GetByID(_ context.Context, id int64) (*Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *doctorRepoMem) GetByName(ctx context.Context, name string) (*Doctor, error) {
	all, _ := r.List(ctx)
	for _, d := range all {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (r *doctorRepoMem) List(_ context.Context) ([]*Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := make([]*Doctor, 0, len(r.s.doctors))
	for _, d := range r.s.doctors {
		cp := *d
		items = append(items, &cp)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *doctorRepoMem) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.doctors, id)
	return nil
}

func (r *doctorRepoMem) DeleteAll(_ context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.doctors = make(map[int64]*Doctor)
	return nil
}
