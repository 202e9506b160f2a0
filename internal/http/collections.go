package http

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"fleetfinance/internal/ledger"
	"fleetfinance/internal/log"
	"fleetfinance/internal/services"
)

// collection serves the CRUD routes of one record type.
type collection[T any, P services.Record[T]] struct {
	name   string
	svc    *services.RecordService[T, P]
	logger *log.Logger
}

// mountCollection registers /api/{name} and /api/{name}/{id}.
func mountCollection[T any, P services.Record[T]](r *mux.Router, name string, svc *services.RecordService[T, P], logger *log.Logger) {
	if svc == nil {
		return
	}
	c := &collection[T, P]{name: name, svc: svc, logger: logger}

	base := "/api/" + name
	r.HandleFunc(base, c.create).Methods(http.MethodPost)
	r.HandleFunc(base, c.list).Methods(http.MethodGet)
	r.HandleFunc(base+"/{id}", c.get).Methods(http.MethodGet)
	r.HandleFunc(base+"/{id}", c.update).Methods(http.MethodPut)
	r.HandleFunc(base+"/{id}", c.delete).Methods(http.MethodDelete)
}

func (c *collection[T, P]) create(w http.ResponseWriter, r *http.Request) {
	rec, err := DecodeRecord[T](r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	saved, err := c.svc.Create(r.Context(), rec)
	if err != nil {
		c.writeError(w, r, err, log.OpCreate)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(saved).Write(w)
}

func (c *collection[T, P]) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	scope, err := ParseScope(query)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	window, err := ParseWindow(query)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	recs, err := c.svc.List(r.Context(), scope, window)
	if err != nil {
		c.writeError(w, r, err, log.OpList)
		return
	}
	if recs == nil {
		recs = []T{}
	}
	NewResponse().JSON(recs).Write(w)
}

func (c *collection[T, P]) get(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(mux.Vars(r)["id"])
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	rec, err := c.svc.Get(r.Context(), id)
	if err != nil {
		c.writeError(w, r, err, log.OpRead)
		return
	}
	NewResponse().JSON(rec).Write(w)
}

func (c *collection[T, P]) update(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(mux.Vars(r)["id"])
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	rec, err := DecodeRecord[T](r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	saved, err := c.svc.Update(r.Context(), id, rec)
	if err != nil {
		c.writeError(w, r, err, log.OpUpdate)
		return
	}
	NewResponse().JSON(saved).Write(w)
}

func (c *collection[T, P]) delete(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(mux.Vars(r)["id"])
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	if err := c.svc.Delete(r.Context(), id); err != nil {
		c.writeError(w, r, err, log.OpDelete)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (c *collection[T, P]) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case isInputError(err):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, ledger.ErrNotFound):
		NotFoundError(err.Error()).Write(w)
	default:
		fields := log.NewFields()
		fields[log.FieldCategory] = c.name
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Record operation failed", err, log.ComponentRecords, op, fields)
		InternalServerError("Failed to process " + c.name + " record").Write(w)
	}
}
