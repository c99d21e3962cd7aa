package api

import (
	"net/http"

	"github.com/ignite/eventpass/internal/domain"
	"github.com/ignite/eventpass/internal/errlog"
	"github.com/ignite/eventpass/internal/pkg/httputil"
)

type handlers struct {
	attendees AttendeeReader
	errors    errlog.Log
}

type attendeesResponse struct {
	Count     int               `json:"count"`
	Attendees []domain.Attendee `json:"attendees"`
}

type errorsResponse struct {
	Count  int            `json:"count"`
	Errors []errlog.Entry `json:"errors"`
}

//	GET /
func (h *handlers) liveness(w http.ResponseWriter, r *http.Request) {
	httputil.Text(w, "eventpass ticket service is running")
}

//	GET /errors
func (h *handlers) recentErrors(w http.ResponseWriter, r *http.Request) {
	if h.errors == nil {
		httputil.OK(w, errorsResponse{Errors: []errlog.Entry{}})
		return
	}
	entries, err := h.errors.Recent(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if entries == nil {
		entries = []errlog.Entry{}
	}
	httputil.OK(w, errorsResponse{Count: len(entries), Errors: entries})
}

//	GET /attendees
func (h *handlers) listAttendees(w http.ResponseWriter, r *http.Request) {
	list, err := h.attendees.List(r.Context())
	h.writeAttendees(w, list, err)
}

// listPending returns records whose email has not been sent.
//
//	GET /attendees/pending
func (h *handlers) listPending(w http.ResponseWriter, r *http.Request) {
	list, err := h.attendees.ListEmailNotSent(r.Context())
	h.writeAttendees(w, list, err)
}

func (h *handlers) writeAttendees(w http.ResponseWriter, list []domain.Attendee, err error) {
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if list == nil {
		list = []domain.Attendee{}
	}
	httputil.OK(w, attendeesResponse{Count: len(list), Attendees: list})
}
