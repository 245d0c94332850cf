// Package httpapi serves the read-only JSON view of the ledger and the
// Prometheus metrics endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/ledger"
	"github.com/dmitrijs2005/wakevault/internal/logging"
)

// Observer records one served request.
type Observer interface {
	ObserveHTTP(method, route string, status int)
}

type Server struct {
	address   string
	reader    ledger.Reader
	programID escrow.Address
	logger    logging.Logger
	observer  Observer
	metrics   http.Handler
}

// New creates the HTTP server. metrics may be nil, in which case /metrics
// is not mounted.
func New(address string, reader ledger.Reader, programID escrow.Address, logger logging.Logger, observer Observer, metrics http.Handler) *Server {
	return &Server{
		address:   address,
		reader:    reader,
		programID: programID,
		logger:    logger.With("module", "http_server"),
		observer:  observer,
		metrics:   metrics,
	}
}

// Router builds the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/alarms/{address}", s.getAlarm)
		r.Get("/owners/{owner}/alarms/{id}", s.getOwnerAlarm)
		r.Get("/vaults/{address}", s.getVault)
		r.Get("/balances/{address}", s.getBalance)
	})
	return r
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if s.observer == nil {
			return
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.observer.ObserveHTTP(r.Method, route, status)
	})
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) getAlarm(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	a, err := s.reader.Alarm(r.Context(), addr)
	s.respond(w, r, a, err)
}

func (s *Server) getOwnerAlarm(w http.ResponseWriter, r *http.Request) {
	owner, ok := addressParam(w, r, "owner")
	if !ok {
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "alarm id must be an unsigned integer")
		return
	}
	a, err := s.reader.Alarm(r.Context(), escrow.AlarmAddress(s.programID, owner, id))
	s.respond(w, r, a, err)
}

func (s *Server) getVault(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	v, err := s.reader.Vault(r.Context(), addr)
	s.respond(w, r, v, err)
}

type balanceResponse struct {
	Address  escrow.Address `json:"address"`
	Lamports uint64         `json:"lamports"`
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	b, err := s.reader.Balance(r.Context(), addr)
	s.respond(w, r, balanceResponse{Address: addr, Lamports: b}, err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, body any, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, body)
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error(r.Context(), "read failed", "path", r.URL.Path, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func addressParam(w http.ResponseWriter, r *http.Request, name string) (escrow.Address, bool) {
	addr, err := escrow.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return addr, false
	}
	return addr, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
