package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newAppt(t *testing.T, doctor, start, end string) *Appointment {
	t.Helper()
	return &Appointment{Doctor: doctor, Patient: "patient", StartDate: mustDate(t, start), EndDate: mustDate(t, end)}
}

func TestMemoryStore_CreateAssignsIncreasingIDs(t *testing.T) {
	repo := NewMemoryStore().Appointments()
	ctx := context.Background()

	a := newAppt(t, "mjones", "2025-07-09T09:30", "2025-07-09T10:15")
	b := newAppt(t, "jsmith", "2025-07-10T09:30", "2025-07-10T10:15")
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID != 1 || b.ID != 2 {
		t.Errorf("expected ids 1 and 2, got %d and %d", a.ID, b.ID)
	}
}

func TestMemoryStore_InsertKeepsIDAndAdvancesSequence(t *testing.T) {
	repo := NewMemoryStore().Appointments()
	ctx := context.Background()

	forced := newAppt(t, "mjones", "2025-07-09T09:30", "2025-07-09T10:15")
	forced.ID = 42
	if err := repo.Insert(ctx, forced); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, forced); err == nil {
		t.Error("expected duplicate insert to fail")
	}

	next := newAppt(t, "mjones", "2025-07-10T09:30", "2025-07-10T10:15")
	if err := repo.Create(ctx, next); err != nil {
		t.Fatalf("create: %v", err)
	}
	if next.ID != 43 {
		t.Errorf("expected generated id 43, got %d", next.ID)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	repo := NewMemoryStore().Appointments()
	ctx := context.Background()
	a := newAppt(t, "mjones", "2025-07-09T09:30", "2025-07-09T10:15")
	repo.Create(ctx, a)

	got, _ := repo.GetByID(ctx, a.ID)
	*got.StartDate = got.StartDate.Add(24 * time.Hour)
	got.Doctor = "changed"

	again, _ := repo.GetByID(ctx, a.ID)
	if again.Doctor != "mjones" || !again.StartDate.Equal(*a.StartDate) {
		t.Errorf("stored appointment was mutated through a returned copy: %s", again)
	}
}

func TestMemoryStore_Queries(t *testing.T) {
	repo := NewMemoryStore().Appointments()
	ctx := context.Background()
	repo.Create(ctx, newAppt(t, "mjones", "2025-07-09T09:30", "2025-07-09T10:15"))
	repo.Create(ctx, newAppt(t, "jsmith", "2025-07-10T09:30", "2025-07-10T10:15"))
	repo.Create(ctx, newAppt(t, "mjones2", "2025-07-11T09:30", "2025-07-11T10:15"))

	after, _ := repo.ListStartingAfter(ctx, *mustDate(t, "2025-07-10T09:30"))
	if len(after) != 1 || after[0].Doctor != "mjones2" {
		t.Errorf("expected only the 11th, got %v", after)
	}

	overlapping, _ := repo.ListOverlapping(ctx, *mustDate(t, "2025-07-10T10:15"), *mustDate(t, "2025-07-10T11:00"))
	if len(overlapping) != 1 || overlapping[0].Doctor != "jsmith" {
		t.Errorf("expected jsmith overlap, got %v", overlapping)
	}

	byDoctor, _ := repo.ListByDoctorContaining(ctx, "mjones")
	if len(byDoctor) != 2 {
		t.Errorf("expected substring match on 2 appointments, got %d", len(byDoctor))
	}
	if byDoctor[0].ID > byDoctor[1].ID {
		t.Error("expected results ordered by id")
	}
}

func TestMemoryStore_UpdateMissing(t *testing.T) {
	repo := NewMemoryStore().Appointments()
	err := repo.Update(context.Background(), &Appointment{ID: 9})
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestMemoryStore_DoctorByName(t *testing.T) {
	repo := NewMemoryStore().Doctors()
	ctx := context.Background()
	first := &Doctor{Name: "jdoe"}
	repo.Create(ctx, first)
	repo.Create(ctx, &Doctor{Name: "jdoe"})

	got, err := repo.GetByName(ctx, "jdoe")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("expected lowest id %d, got %d", first.ID, got.ID)
	}
	if _, err := repo.GetByName(ctx, "jdo"); !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("expected exact-name lookup, got %v", err)
	}
}

func TestMemoryStore_WithinTxSerializes(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var mu sync.Mutex
	inside, maxInside := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.WithinTx(ctx, func(ctx context.Context) error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Errorf("expected at most one transaction at a time, saw %d", maxInside)
	}
}

func TestMemoryStore_WithinTxReentrant(t *testing.T) {
	store := NewMemoryStore()
	ran := false
	err := store.WithinTx(context.Background(), func(ctx context.Context) error {
		return store.WithinTx(ctx, func(context.Context) error {
			ran = true
			return nil
		})
	})
	if err != nil || !ran {
		t.Errorf("nested WithinTx should join the outer one (err=%v, ran=%v)", err, ran)
	}
}
