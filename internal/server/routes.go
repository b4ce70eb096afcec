package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/lazypower/degrade/internal/counter"
	"github.com/lazypower/degrade/internal/logging"
)

// rawType is the type name of plain values stored through PUT /api/keys/{key}.
const rawType = "string"

const maxRawValue = 1 << 20

type counterJSON struct {
	Key   string   `json:"key"`
	Value *float64 `json:"value"`
}

func counterReply(key string, v float64, ok bool) counterJSON {
	if !ok {
		return counterJSON{Key: key}
	}
	return counterJSON{Key: key, Value: &v}
}

// writeError maps counter errors to status codes: argument errors are 400,
// type conflicts 409, anything else 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, counter.ErrSyntax), errors.Is(err, counter.ErrUnknownCommand):
		status = http.StatusBadRequest
	case errors.Is(err, counter.ErrWrongType):
		status = http.StatusConflict
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, logging.Err(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// keyParam returns the {key} route parameter. chi matches on the escaped path
// when one is present, so an escaped key such as "user%2Falice" is decoded here.
func keyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath == "" {
		return key, true
	}
	key, err := url.PathUnescape(key)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid key"})
		return "", false
	}
	return key, true
}

func (s *Server) handleIncr(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount      *float64 `json:"amount"`
		DegradeRate *float64 `json:"degrade_rate"`
		Interval    string   `json:"interval"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Amount == nil || req.DegradeRate == nil || req.Interval == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount, degrade_rate and interval required"})
		return
	}
	iv, err := counter.ParseInterval(req.Interval)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	v, err := s.ctrl.Increment(r.Context(), key, *req.Amount, counter.Policy{DecayRate: *req.DegradeRate, Interval: iv})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counterReply(key, v, true))
}

func (s *Server) handleDecr(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount *float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	amount := 1.0
	if req.Amount != nil {
		amount = *req.Amount
	}

	v, ok, err := s.ctrl.Decrement(r.Context(), key, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counterReply(key, v, ok))
}

func (s *Server) handlePeek(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	v, ok, err := s.ctrl.Peek(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counterReply(key, v, ok))
}

func (s *Server) handleKeyType(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	typ, err := s.store.KeyType(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":    key,
		"exists": typ != "",
		"type":   typ,
	})
}

// handlePutRaw stores the request body as a plain value. Raw values are not
// journaled; the journal only carries counter commands.
func (s *Server) handlePutRaw(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRawValue+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body failed"})
		return
	}
	if len(body) > maxRawValue {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "value too large"})
		return
	}

	err = s.store.Update(r.Context(), key, func(sl counter.Slot) error {
		return sl.Put(counter.Entry{Type: rawType, Data: body})
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	reply, err := s.ctrl.Exec(r.Context(), []string{counter.CmdDel, key})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "deleted": reply.Value == 1})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	cmds, err := s.store.Journal(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cmds == nil {
		cmds = [][]string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(cmds),
		"commands": cmds,
	})
}

func (s *Server) handleRewrite(w http.ResponseWriter, r *http.Request) {
	cmds := [][]string{}
	err := s.ctrl.Rewrite(r.Context(), func(argv []string) error {
		cmds = append(cmds, argv)
		return nil
	})
	if err == nil {
		err = s.store.ReplaceJournal(r.Context(), cmds)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("journal rewritten", "commands", len(cmds))
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(cmds),
		"commands": cmds,
	})
}
