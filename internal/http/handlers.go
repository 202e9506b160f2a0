package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"fleetfinance/internal/core"
	"fleetfinance/internal/log"
)

const (
	serviceName        = "finance-service"
	healthPingTimeout  = 2 * time.Second
	summaryFailureText = "Failed to retrieve financial summary"
)

type healthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Database  string `json:"database"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := healthStatus{
		Status:    "UP",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Service:   serviceName,
		Database:  "connected",
	}
	status := http.StatusOK

	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Health check failed", log.FieldError, err.Error())
			body.Database = "disconnected"
			status = http.StatusServiceUnavailable
		}
	}

	NewResponse().Status(status).JSON(body).Write(w)
}

func (s *Server) handleTruckReport(w http.ResponseWriter, r *http.Request) {
	truckID := sanitizeInput(mux.Vars(r)["truckId"])
	window, err := ParseWindow(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	report, err := s.reports.TruckReport(r.Context(), truckID, window)
	if err != nil {
		s.writeSummaryError(w, r, err, core.ByTruck(truckID), window)
		return
	}
	NewResponse().JSON(report).Write(w)
}

func (s *Server) handleUserReport(w http.ResponseWriter, r *http.Request) {
	userID := sanitizeInput(mux.Vars(r)["userId"])
	window, err := ParseWindow(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	report, err := s.reports.UserReport(r.Context(), userID, window)
	if err != nil {
		s.writeSummaryError(w, r, err, core.ByUser(userID), window)
		return
	}
	NewResponse().JSON(report).Write(w)
}

func (s *Server) handleTruckExpenses(w http.ResponseWriter, r *http.Request) {
	truckID := sanitizeInput(mux.Vars(r)["truckId"])
	window, err := ParseWindow(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	scope := core.ByTruck(truckID)
	summary, err := s.aggregator.ExpenseSummary(r.Context(), scope, window)
	if err != nil {
		s.writeSummaryError(w, r, err, scope, window)
		return
	}
	NewResponse().JSON(summary).Write(w)
}

// writeSummaryError maps an aggregation failure onto a status code. Only
// unexpected failures are logged; their detail never reaches the client.
func (s *Server) writeSummaryError(w http.ResponseWriter, r *http.Request, err error, scope core.Scope, window core.Window) {
	switch {
	case core.IsInputError(err):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, core.ErrNoRecords):
		NotFoundError(noRecordsMessage(scope)).Write(w)
	default:
		fields := log.NewFields().WithQuery(scope, window)
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Financial summary failed", err, log.ComponentHTTP, log.OpAggregate, fields)
		InternalServerError(summaryFailureText).Write(w)
	}
}

func noRecordsMessage(scope core.Scope) string {
	return fmt.Sprintf("No income records found for this %s in the selected period", scope.Kind())
}
