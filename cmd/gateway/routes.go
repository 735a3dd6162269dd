package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talkloop/gateway/internal/trace"
)

// defaultTraceRunLimit bounds the ?limit= default on the trace listing
// endpoints — a live-debugging aid, not a persistent history API (spec's
// Non-goals exclude persistent conversation history).
const defaultTraceRunLimit = 20

type deps struct {
	wsHandler http.Handler
	recorder  *trace.Recorder
}

// registerRoutes wires the gateway's HTTP surface: the conversation
// WebSocket, health, Prometheus metrics, and the in-memory trace
// inspection endpoints.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.Handle("/ws/conversation", d.wsHandler)
	mux.HandleFunc("GET /health", handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	registerTraceRoutes(mux, d.recorder)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func registerTraceRoutes(mux *http.ServeMux, recorder *trace.Recorder) {
	mux.HandleFunc("GET /api/traces/sessions/{id}/runs", func(w http.ResponseWriter, r *http.Request) {
		if recorder == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		runs := recorder.Runs(r.PathValue("id"))
		limit := queryInt(r, "limit", defaultTraceRunLimit)
		if limit > 0 && limit < len(runs) {
			runs = runs[len(runs)-limit:]
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"runs": runs})
	})

	mux.HandleFunc("GET /api/traces/runs/{runId}/spans", func(w http.ResponseWriter, r *http.Request) {
		if recorder == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		spans := recorder.Spans(r.PathValue("runId"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"spans": spans})
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
