package main

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"time"
)

type scoreRequest struct {
	Columns []string    `json:"columns"`
	Data    [][]float64 `json:"data"`
}

type scoreResponse struct {
	Predictions []float64 `json:"predictions"`
}

// baseline is log1p of a typical daily store turnover.
var baseline = math.Log1p(5800)

// weights nudge the baseline so scored rows differ visibly.
var weights = map[string]float64{
	"promo":                0.25,
	"competition_distance": -0.02,
	"day_of_week_cos":      0.05,
	"month_sin":            0.03,
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/v1/score", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		preds := make([]float64, len(req.Data))
		for i, row := range req.Data {
			if len(row) != len(req.Columns) {
				http.Error(w, "row width does not match columns", http.StatusBadRequest)
				return
			}
			score := baseline
			for j, col := range req.Columns {
				score += weights[col] * row[j]
			}
			preds[i] = score
		}
		writeJSON(w, scoreResponse{Predictions: preds})
	})

	logger := log.New(log.Writer(), "scorer-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:              ":9000",
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Println("listening on :9000")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
