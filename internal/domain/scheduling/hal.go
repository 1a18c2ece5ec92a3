package scheduling

import (
	"fmt"
	"net/url"
	"time"

	"github.com/appointments/api/internal/platform/hal"
)

// assembler builds HAL representations with absolute links under base.
type assembler struct {
	base string
	now  time.Time
}

func (h assembler) appointmentsURL() string { return h.base + "/api/appointments" }

func (h assembler) appointmentURL(id int64) string {
	return fmt.Sprintf("%s/api/appointments/%d", h.base, id)
}

func (h assembler) doctorsURL() string { return h.base + "/api/doctors" }

func (h assembler) doctorURL(name string) string {
	return h.base + "/api/doctors/" + url.PathEscape(name)
}

func (h assembler) doctorAppointmentsURL(name string) string {
	return h.doctorURL(name) + "/appointments"
}

// appointment links self and the collection; cancel and update are offered
// only while the appointment is upcoming.
func (h assembler) appointment(a *Appointment) *hal.Resource {
	r := hal.NewResource(a)
	self := h.appointmentURL(a.ID)
	r.Links.Add("self", self).Add("appointments", h.appointmentsURL())
	if a.IsUpcoming(h.now) {
		r.Links.Add("cancel", self+"/cancel").Add("update", self)
	}
	return r
}

func (h assembler) appointments(items []*Appointment, self string) *hal.Collection {
	resources := make([]*hal.Resource, 0, len(items))
	for _, a := range items {
		resources = append(resources, h.appointment(a))
	}
	c := hal.NewCollection("appointmentList", resources)
	c.Links.Add("self", self)
	return c
}

// doctorAppointments is the per-doctor listing; each item also links back to
// the doctor.
func (h assembler) doctorAppointments(name string, items []*Appointment) *hal.Collection {
	resources := make([]*hal.Resource, 0, len(items))
	for _, a := range items {
		r := h.appointment(a)
		r.Links.Add("doctor", h.doctorURL(a.Doctor))
		resources = append(resources, r)
	}
	c := hal.NewCollection("appointmentList", resources)
	c.Links.Add("self", h.doctorAppointmentsURL(name)).Add("doctor", h.doctorURL(name))
	return c
}

func (h assembler) doctor(d *Doctor) *hal.Resource {
	r := hal.NewResource(d)
	r.Links.
		Add("self", h.doctorURL(d.Name)).
		Add("appointments", h.doctorAppointmentsURL(d.Name)).
		Add("doctors", h.doctorsURL())
	return r
}

func (h assembler) doctors(items []*Doctor) *hal.Collection {
	resources := make([]*hal.Resource, 0, len(items))
	for _, d := range items {
		resources = append(resources, h.doctor(d))
	}
	c := hal.NewCollection("doctorList", resources)
	c.Links.Add("self", h.doctorsURL())
	return c
}
