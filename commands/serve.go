package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/penwyp/go-activity-timeline/internal/data/store"
	"github.com/penwyp/go-activity-timeline/internal/util"
)

var (
	serveAddr     string
	serveMaxLimit int

	serveCmd = &cobra.Command{
		Use:   "serve [flags]",
		Short: "Serve an activity archive over HTTP",
		Long: `serve exposes a local activity archive as a record server that remote
viewers can connect to with --store http://host:port.

Endpoints:
  GET /api/timeline?start=<ms>&end=<ms>[&limit=<n>]  Timeline records as JSON
  GET /api/thumbnail?key=<identity-key>              One thumbnail as JSON
  GET /metrics                                       Prometheus metrics`,
		RunE: runServe,
	}
)

// slowQueryThreshold marks archive queries worth logging at warn level.
const slowQueryThreshold = 5 * time.Second

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activity_timeline_http_requests_total",
		Help: "HTTP requests by endpoint and status code.",
	}, []string{"endpoint", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "activity_timeline_http_request_duration_seconds",
		Help:    "HTTP request latency by endpoint.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	timelineRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "activity_timeline_records_served_total",
		Help: "Timeline records returned to clients.",
	})
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8520", "Listen address")
	serveCmd.Flags().IntVar(&serveMaxLimit, "max-limit", 10000,
		"Maximum records returned per timeline query")
	rootCmd.AddCommand(serveCmd)
}

type recordServer struct {
	store    *store.SQLiteStore
	maxLimit int
}

func runServe(cmd *cobra.Command, args []string) error {
	initLogging()

	path := resolveStorePath(storePath)
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer st.Close()

	srv := &recordServer{store: st, maxLimit: serveMaxLimit}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/timeline", srv.handleTimeline)
	mux.HandleFunc("/api/thumbnail", srv.handleThumbnail)
	mux.Handle("/metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:         serveAddr,
		Handler:      requestIDMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	util.LogInfo(fmt.Sprintf("record server listening on %s (archive: %s)", serveAddr, path))
	fmt.Fprintf(os.Stderr, "Serving %s on %s\n", path, serveAddr)

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestIDMiddleware tags every request with an X-Request-Id, preserving a
// client-supplied one, and records per-endpoint metrics.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		httpRequests.WithLabelValues(r.URL.Path, strconv.Itoa(sw.status)).Inc()
		httpDuration.WithLabelValues(r.URL.Path).Observe(elapsed.Seconds())

		if elapsed >= slowQueryThreshold {
			util.LogWarn(fmt.Sprintf("slow request %s %s took %s (request_id=%s)",
				r.Method, r.URL.RequestURI(), elapsed, requestID))
		} else {
			util.LogDebug(fmt.Sprintf("%s %s -> %d in %s (request_id=%s)",
				r.Method, r.URL.RequestURI(), sw.status, elapsed, requestID))
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *recordServer) handleTimeline(w http.ResponseWriter, r *http.Request) {
	startMs, err1 := strconv.ParseInt(r.URL.Query().Get("start"), 10, 64)
	endMs, err2 := strconv.ParseInt(r.URL.Query().Get("end"), 10, 64)
	if err1 != nil || err2 != nil || endMs < startMs {
		http.Error(w, "start and end must be millisecond timestamps with start <= end", http.StatusBadRequest)
		return
	}

	limit := s.maxLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if n > 0 && n < limit {
			limit = n
		}
	}

	records, err := s.store.QueryTimelineLimited(r.Context(), startMs, endMs, limit)
	if err != nil {
		util.LogError(fmt.Sprintf("timeline query failed: %v", err))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	timelineRecords.Add(float64(len(records)))

	writeJSON(w, records)
}

func (s *recordServer) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	thumb, err := s.store.FetchThumbnail(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "thumbnail not found", http.StatusNotFound)
			return
		}
		util.LogError(fmt.Sprintf("thumbnail fetch %s failed: %v", key, err))
		http.Error(w, "fetch failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, thumb)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
