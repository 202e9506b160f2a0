package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"fleetfinance/internal/ledger"
	"fleetfinance/internal/log"
	"fleetfinance/internal/middleware/ratelimit"
	"fleetfinance/internal/middleware/security"
	"fleetfinance/internal/middleware/trace"
	"fleetfinance/internal/services"
)

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Reports    *services.ReportBuilder
	Aggregator *services.Aggregator
	Records    services.Records
	Health     ledger.Pinger
	Logger     *log.Logger

	// RateLimitPerMinute bounds requests per client; zero uses the limiter default.
	RateLimitPerMinute int
}

type Server struct {
	http.Server

	logger     *log.Logger
	reports    *services.ReportBuilder
	aggregator *services.Aggregator
	records    services.Records
	health     ledger.Pinger

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	limitCfg := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		limitCfg.RequestsPerMinute = deps.RateLimitPerMinute
	}

	detector := security.NewDetector()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger:      logger,
		reports:     deps.Reports,
		aggregator:  deps.Aggregator,
		records:     deps.Records,
		health:      deps.Health,
		rateLimiter: ratelimit.NewLimiter(limitCfg),
		detector:    detector,
		tracer:      trace.NewMiddleware(detector.ExtractClientIP),
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/finance/truck/{truckId}", s.handleTruckReport).Methods(http.MethodGet)
	r.HandleFunc("/api/finance/truck/{truckId}/expenses", s.handleTruckExpenses).Methods(http.MethodGet)
	r.HandleFunc("/api/finance/user/{userId}", s.handleUserReport).Methods(http.MethodGet)

	mountCollection(r, "income", deps.Records.Income, logger)
	mountCollection(r, "fuel-expenses", deps.Records.Fuel, logger)
	mountCollection(r, "def-expenses", deps.Records.Def, logger)
	mountCollection(r, "other-expenses", deps.Records.Other, logger)
	mountCollection(r, "loan-calculations", deps.Records.Loan, logger)

	s.Handler = s.chain(r)
	return s
}

// chain wraps the router with logging, tracing, rate limiting and security
// middleware, outermost first.
func (s *Server) chain(h http.Handler) http.Handler {
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)

	h = s.detector.Middleware(h)
	h = headers.Middleware(h)
	h = limited(h)
	h = s.tracer.Middleware(h)
	return log.Middleware(s.logger)(h)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError("Rate limit exceeded. Please try again later.").Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
