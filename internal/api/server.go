// Package api serves the vault's read-only status interface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"TrancheVault/internal/model"
	"TrancheVault/internal/recorder"
	"TrancheVault/internal/vault"
)

var log = logrus.WithField("module", "api")

const maxEvents = 500

// Server exposes vault status, holder balances, withdrawal previews and history.
type Server struct {
	Vault    *vault.Vault
	Recorder recorder.Recorder
	Decimals int32
}

// Handler builds the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.health)
	r.Route("/v1", func(api chi.Router) {
		api.Get("/status", s.status)
		api.Get("/holders/{address}", s.holder)
		api.Get("/preview/withdraw", s.previewWithdraw)
		api.Get("/events", s.events)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.WithField("addr", addr).Info("status API listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start),
			"req_id":   middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "busy": s.Vault.Busy()})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newStatusDTO(s.Vault.Status(), s.Decimals))
}

func (s *Server) holder(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", vault.ErrInvalidAddress, raw))
		return
	}
	hb := s.Vault.Holder(common.HexToAddress(raw))
	writeJSON(w, http.StatusOK, holderDTO{
		Holder: hb.Holder.Hex(),
		Senior: newAmount(hb.Senior, s.Decimals),
		Junior: newAmount(hb.Junior, s.Decimals),
	})
}

func (s *Server) previewWithdraw(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	senior, err := parseAmount(q.Get("senior"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("senior: %w", err))
		return
	}
	junior, err := parseAmount(q.Get("junior"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("junior: %w", err))
		return
	}

	out := previewDTO{
		Senior:  newAmount(senior, s.Decimals),
		Junior:  newAmount(junior, s.Decimals),
		Allowed: true,
	}
	if asset := q.Get("asset"); asset != "" {
		if !common.IsHexAddress(asset) {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", vault.ErrUnsupportedAsset, asset))
			return
		}
		addr := common.HexToAddress(asset)
		amt, err := s.Vault.CalculateSingleAssetWithdrawal(senior, junior, addr)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		a := newAmount(amt, s.Decimals)
		out.Asset, out.AmountOut = addr.Hex(), &a
	} else {
		aOut, bOut, err := s.Vault.CalculateWithdrawalAmounts(senior, junior)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		a, b := newAmount(aOut, s.Decimals), newAmount(bOut, s.Decimals)
		out.AssetAOut, out.AssetBOut = &a, &b
	}

	switch {
	case s.Vault.EmergencyActive():
		out.Allowed, out.Reason = false, vault.ErrEmergencyModeActive.Error()
	case senior.Sign() == 0 && junior.Sign() == 0:
		out.Allowed, out.Reason = false, vault.ErrNoTokensToWithdraw.Error()
	case s.Vault.Phase() == model.PhaseActive && senior.Cmp(junior) != 0:
		out.Allowed, out.Reason = false, vault.ErrEqualAmountsRequired.Error()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = min(n, maxEvents)
	}
	evts, err := s.Recorder.RecentEvents(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if evts == nil {
		evts = []recorder.StoredEvent{}
	}
	writeJSON(w, http.StatusOK, evts)
}

func parseAmount(v string) (*big.Int, error) {
	if v == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(v, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%q is not a non-negative integer", v)
	}
	return n, nil
}

func statusFor(err error) int {
	switch vault.Classify(err) {
	case vault.KindValidation:
		return http.StatusBadRequest
	case vault.KindState:
		return http.StatusConflict
	case vault.KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("encode response")
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorDTO{Error: err.Error(), Kind: vault.Classify(err).String()})
}
