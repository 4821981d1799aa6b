package http

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/samueltorres/r8backend/pkg/backend"
)

// maxBodyBytes bounds a request body. Requests are a key, a few
// integers and for incr_and_sum a list of sibling keys.
const maxBodyBytes = 1 << 20

type AddRequest struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
	TTL   int64  `json:"ttl_ms"`
}

type IncrRequest struct {
	Key     string `json:"key"`
	Amount  int64  `json:"amount"`
	Maximum int64  `json:"maximum"`
	TTL     int64  `json:"ttl_ms"`
}

type DecrRequest struct {
	Key     string `json:"key"`
	Amount  int64  `json:"amount"`
	Minimum int64  `json:"minimum"`
	TTL     int64  `json:"ttl_ms"`
}

type IncrAndSumRequest struct {
	Key     string   `json:"key"`
	Keys    []string `json:"keys"`
	Amount  int64    `json:"amount"`
	Maximum int64    `json:"maximum"`
	TTL     int64    `json:"ttl_ms"`
}

// Response carries the boolean outcome of an operation. Error is only
// set when the operation could not reach an outcome.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type counterHandler struct {
	backend CounterBackend
	logger  *logrus.Logger
}

func (h *counterHandler) decode(w http.ResponseWriter, r *http.Request, req interface{}, key func() string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.logger.Debugf("could not decode request: %v", err)
		h.write(w, http.StatusBadRequest, Response{Error: "malformed request body"})
		return false
	}
	if key() == "" {
		h.write(w, http.StatusBadRequest, Response{Error: "key is required"})
		return false
	}
	return true
}

func (h *counterHandler) respond(w http.ResponseWriter, ok bool, err error) {
	if err == nil {
		h.write(w, http.StatusOK, Response{OK: ok})
		return
	}

	if errors.Cause(err) == backend.ErrContentionExhausted {
		h.logger.Warn(err)
		h.write(w, http.StatusConflict, Response{Error: err.Error()})
		return
	}

	h.logger.Errorf("counter operation failed: %v", err)
	h.write(w, http.StatusServiceUnavailable, Response{Error: err.Error()})
}

func (h *counterHandler) write(w http.ResponseWriter, status int, res Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		h.logger.Errorf("could not encode response: %v", err)
	}
}

func (h *counterHandler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if !h.decode(w, r, &req, func() string { return req.Key }) {
		return
	}

	ok, err := h.backend.Add(r.Context(), req.Key, req.Value, req.TTL)
	h.respond(w, ok, err)
}

func (h *counterHandler) handleIncr(w http.ResponseWriter, r *http.Request) {
	var req IncrRequest
	if !h.decode(w, r, &req, func() string { return req.Key }) {
		return
	}

	ok, err := h.backend.Incr(r.Context(), req.Key, req.Amount, req.Maximum, req.TTL)
	h.respond(w, ok, err)
}

func (h *counterHandler) handleDecr(w http.ResponseWriter, r *http.Request) {
	var req DecrRequest
	if !h.decode(w, r, &req, func() string { return req.Key }) {
		return
	}

	ok, err := h.backend.Decr(r.Context(), req.Key, req.Amount, req.Minimum, req.TTL)
	h.respond(w, ok, err)
}

func (h *counterHandler) handleIncrAndSum(w http.ResponseWriter, r *http.Request) {
	var req IncrAndSumRequest
	if !h.decode(w, r, &req, func() string { return req.Key }) {
		return
	}

	ok, err := h.backend.IncrAndSum(r.Context(), req.Key, req.Keys, req.Amount, req.Maximum, req.TTL)
	h.respond(w, ok, err)
}
