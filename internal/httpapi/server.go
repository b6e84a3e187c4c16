// Package httpapi exposes the processing pipeline over HTTP: JSON and WAV
// one-shot processing endpoints, job history backed by the store, and a
// websocket for frame-by-frame streaming.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/pipeline"
	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/store"
	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/wav"
)

const (
	// maxSignalSamples caps a single processing request (~10 minutes at
	// 44100 Hz). Larger signals should be split by the caller.
	maxSignalSamples = 26_460_000

	// maxUploadBytes caps WAV uploads (header + 16-bit samples).
	maxUploadBytes = int64(maxSignalSamples)*2 + 1024
)

// Server is the Echo application fronting the processing service.
type Server struct {
	echo *echo.Echo
	svc  *pipeline.Service
	jobs *store.Store
}

// New constructs an Echo app with processing + job-history routes. The job
// store is optional; without it processing still works but nothing is
// persisted.
func New(svc *pipeline.Service, jobs *store.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, svc: svc, jobs: jobs}
	s.registerRoutes()
	return s
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/api/process", s.handleProcess)
	s.echo.POST("/api/process/wav", s.handleProcessWAV)
	if s.jobs != nil {
		s.echo.GET("/api/jobs", s.handleJobs)
		s.echo.GET("/api/jobs/:id", s.handleJobByID)
	}
	s.echo.GET("/ws/process", s.handleStream)
}

// Run starts Echo and blocks until ctx cancellation or startup failure.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		return nil
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Jobs   int    `json:"jobs"`
}

func (s *Server) handleHealth(c echo.Context) error {
	n := 0
	if s.jobs != nil {
		if count, err := s.jobs.JobCount(c.Request().Context()); err == nil {
			n = count
		}
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Jobs: n})
}

type processRequest struct {
	Op          string    `json:"op"`
	Samples     []float32 `json:"samples"`
	EchoDelayMs float64   `json:"echo_delay_ms,omitempty"`
	SampleRate  int       `json:"sample_rate,omitempty"`
}

// metricsDTO serializes a per-call report; fields the operation did not
// compute are omitted entirely rather than sent as zero.
type metricsDTO struct {
	ERLE          *float64 `json:"erle,omitempty"`
	REA           *float64 `json:"rea,omitempty"`
	SNR           *float64 `json:"snr,omitempty"`
	LatencyMs     float64  `json:"latency_ms"`
	ConvergenceMs *float64 `json:"convergence_ms,omitempty"`
}

func metricsFromReport(rep pipeline.Report) metricsDTO {
	dto := metricsDTO{LatencyMs: float64(rep.Latency) / float64(time.Millisecond)}
	if rep.HasERLE {
		v := rep.ERLE
		dto.ERLE = &v
	}
	if rep.HasREA {
		v := rep.REA
		dto.REA = &v
	}
	if rep.HasSNR {
		v := rep.SNR
		dto.SNR = &v
	}
	if rep.HasConvergence {
		v := float64(rep.Convergence) / float64(time.Millisecond)
		dto.ConvergenceMs = &v
	}
	return dto
}

type processResponse struct {
	JobID   string     `json:"job_id,omitempty"`
	Samples []float32  `json:"samples"`
	Metrics metricsDTO `json:"metrics"`
}

func (s *Server) handleProcess(c echo.Context) error {
	var req processRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
	}
	if len(req.Samples) > maxSignalSamples {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("signal exceeds %d samples", maxSignalSamples))
	}

	params := pipeline.Params{
		EchoDelayMs: req.EchoDelayMs,
		SampleRate:  req.SampleRate,
	}.Normalized()

	resp, err := s.svc.Do(c.Request().Context(), pipeline.Request{
		Op:     pipeline.Op(req.Op),
		Signal: req.Samples,
		Params: params,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrUnknownOp) {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown op %q", req.Op))
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("process signal: %v", err))
	}

	jobID := s.persistJob(c.Request().Context(), req.Op, params, len(req.Samples), resp.Report)

	// Empty input is a valid degenerate case; keep the samples array present.
	if resp.Signal == nil {
		resp.Signal = []float32{}
	}
	return c.JSON(http.StatusOK, processResponse{
		JobID:   jobID,
		Samples: resp.Signal,
		Metrics: metricsFromReport(resp.Report),
	})
}

// handleProcessWAV accepts a multipart WAV upload, runs the requested
// operation and streams the processed audio back as a WAV download. The
// per-call metrics ride along in the X-Processing-Metrics header so the body
// stays pure audio.
func (s *Server) handleProcessWAV(c echo.Context) error {
	op := strings.TrimSpace(c.FormValue("op"))
	if op == "" {
		op = string(pipeline.OpRemoveEcho)
	}

	params := pipeline.DefaultParams()
	if raw := strings.TrimSpace(c.FormValue("echo_delay_ms")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "echo_delay_ms must be a number")
		}
		params.EchoDelayMs = v
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file field")
	}
	if fh.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload exceeds %d bytes", maxUploadBytes))
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("open upload: %v", err))
	}
	defer f.Close()

	signal, sampleRate, err := wav.Decode(f)
	if err != nil {
		if errors.Is(err, wav.ErrNotWAV) || errors.Is(err, wav.ErrUnsupportedFormat) {
			return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("decode wav: %v", err))
	}
	if len(signal) > maxSignalSamples {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("signal exceeds %d samples", maxSignalSamples))
	}
	params.SampleRate = sampleRate
	params = params.Normalized()

	resp, err := s.svc.Do(c.Request().Context(), pipeline.Request{
		Op:     pipeline.Op(op),
		Signal: signal,
		Params: params,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrUnknownOp) {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown op %q", op))
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("process signal: %v", err))
	}

	jobID := s.persistJob(c.Request().Context(), op, params, len(signal), resp.Report)

	var buf bytes.Buffer
	if err := wav.Encode(&buf, resp.Signal, sampleRate); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("encode wav: %v", err))
	}

	metricsJSON, err := json.Marshal(metricsFromReport(resp.Report))
	if err == nil {
		c.Response().Header().Set("X-Processing-Metrics", string(metricsJSON))
	}
	if jobID != "" {
		c.Response().Header().Set("X-Job-Id", jobID)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="processed.wav"`)
	return c.Blob(http.StatusOK, "audio/wav", buf.Bytes())
}

type jobResponse struct {
	ID            string  `json:"id"`
	Op            string  `json:"op"`
	SampleRate    int     `json:"sample_rate"`
	NumSamples    int     `json:"num_samples"`
	EchoDelayMs   float64 `json:"echo_delay_ms"`
	ERLE          float64 `json:"erle"`
	REA           float64 `json:"rea"`
	SNR           float64 `json:"snr"`
	LatencyMs     float64 `json:"latency_ms"`
	ConvergenceMs float64 `json:"convergence_ms"`
	CreatedAt     string  `json:"created_at"`
}

func jobToResponse(j store.Job) jobResponse {
	return jobResponse{
		ID:            j.ID,
		Op:            j.Op,
		SampleRate:    j.SampleRate,
		NumSamples:    j.NumSamples,
		EchoDelayMs:   j.EchoDelayMs,
		ERLE:          j.ERLE,
		REA:           j.REA,
		SNR:           j.SNR,
		LatencyMs:     j.LatencyMs,
		ConvergenceMs: j.ConvergenceMs,
		CreatedAt:     j.CreatedAt.Format(time.RFC3339Nano),
	}
}

func (s *Server) handleJobs(c echo.Context) error {
	limit := 50
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	jobs, err := s.jobs.RecentJobs(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("load jobs: %v", err))
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobToResponse(j))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleJobByID(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "job id is required")
	}
	job, err := s.jobs.JobByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "job not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("load job: %v", err))
	}
	return c.JSON(http.StatusOK, jobToResponse(job))
}

// persistJob writes one job row and returns its ID; persistence failures are
// logged but never fail the processing response.
func (s *Server) persistJob(ctx context.Context, op string, params pipeline.Params, numSamples int, rep pipeline.Report) string {
	if s.jobs == nil {
		return ""
	}
	job := store.Job{
		ID:            uuid.NewString(),
		Op:            op,
		SampleRate:    params.SampleRate,
		NumSamples:    numSamples,
		EchoDelayMs:   params.EchoDelayMs,
		LatencyMs:     float64(rep.Latency) / float64(time.Millisecond),
		ConvergenceMs: float64(rep.Convergence) / float64(time.Millisecond),
	}
	if rep.HasERLE {
		job.ERLE = rep.ERLE
	}
	if rep.HasREA {
		job.REA = rep.REA
	}
	if rep.HasSNR {
		job.SNR = rep.SNR
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		slog.Warn("persist job", "op", op, "error", err)
		return ""
	}
	return job.ID
}
