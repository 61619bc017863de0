package ectrol

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/ectrol/idgen"
	"github.com/hazyhaar/ectrol/journal"
	"github.com/hazyhaar/ectrol/kit"
	"github.com/hazyhaar/ectrol/storage"
)

// Routes returns the HTTP control surface:
//
//	GET  /health
//	POST /v1/do            body: Request
//	POST /v1/{op}          body: Request without op
//	GET  /v1/journal?limit=N&run_id=R   (404 without a journal)
func (e *Ectrol) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestContext)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/do", func(w http.ResponseWriter, r *http.Request) {
			var req Request
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			e.serve(w, r, req)
		})

		r.Get("/journal", e.handleJournal)

		r.Post("/{op}", func(w http.ResponseWriter, r *http.Request) {
			var req Request
			if r.ContentLength != 0 {
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
			}
			req.Op = chi.URLParam(r, "op")
			e.serve(w, r, req)
		})
	})
	return r
}

func (e *Ectrol) serve(w http.ResponseWriter, r *http.Request, req Request) {
	resp, err := e.Do(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *Ectrol) handleJournal(w http.ResponseWriter, r *http.Request) {
	if e.journal == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "journal disabled"})
		return
	}
	entries, err := e.journal.Recent(r.Context(), journal.Filter{
		RunID: r.URL.Query().Get("run_id"),
		Op:    r.URL.Query().Get("op"),
		Limit: queryInt(r, "limit", 50),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []*journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// statusFor maps request errors to 4xx and channel faults to 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownOp):
		return http.StatusNotFound
	case errors.Is(err, ErrMissingSelector), errors.Is(err, ErrMissingKey), errors.Is(err, storage.ErrUnknownArea):
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithTransport(r.Context(), "http")
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = idgen.Request()
		}
		ctx = kit.WithRequestID(ctx, id)
		ctx = kit.WithRemoteAddr(ctx, r.RemoteAddr)
		if run := r.Header.Get("X-Run-ID"); run != "" {
			ctx = kit.WithRunID(ctx, run)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
