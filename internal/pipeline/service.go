package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Service errors.
var (
	// ErrUnknownOp is returned for a request naming no supported operation.
	ErrUnknownOp = errors.New("unknown processing operation")

	// ErrServiceClosed is returned when a request is submitted after Close.
	ErrServiceClosed = errors.New("processing service is closed")
)

// Request is one unit of work for the processing service.
type Request struct {
	Op     Op
	Signal []float32
	Params Params
}

// Response carries the processed signal and its per-call report.
type Response struct {
	Signal []float32
	Report Report
	Err    error
}

// job pairs a request with its reply channel.
type job struct {
	req    Request
	respCh chan Response
}

// Service dispatches processing requests to a pool of worker goroutines over
// a channel, so interactive callers never block on a large signal. A request
// runs to completion once picked up: context cancellation abandons the wait,
// never the computation.
type Service struct {
	jobs   chan job
	closed chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	jobsDone    atomic.Uint64
	samplesDone atomic.Uint64
	lastERLE    atomic.Int64 // millidB, for cheap atomic storage
}

// NewService starts a Service with the given number of workers (minimum 1).
func NewService(workers int) *Service {
	if workers < 1 {
		workers = 1
	}
	s := &Service{
		jobs:   make(chan job),
		closed: make(chan struct{}),
	}
	s.wg.Add(workers)
	for range workers {
		go s.worker()
	}
	return s
}

func (s *Service) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.closed:
			return
		case j := <-s.jobs:
			j.respCh <- s.process(j.req)
		}
	}
}

// process executes one request on a fresh Processor, so requests share no
// filter state or metrics record with each other.
func (s *Service) process(req Request) Response {
	if !req.Op.Valid() {
		return Response{Err: ErrUnknownOp}
	}

	proc := New(req.Params)
	out, rep, err := proc.Run(req.Op, req.Signal)
	if err != nil {
		return Response{Err: err}
	}

	s.jobsDone.Add(1)
	s.samplesDone.Add(uint64(len(req.Signal)))
	if rep.HasERLE {
		s.lastERLE.Store(int64(rep.ERLE * 1000))
	}
	return Response{Signal: out, Report: rep}
}

// Do submits a request and waits for its response. ctx bounds the submission
// and the wait; a request already picked up by a worker always runs to
// completion (its response is then discarded).
func (s *Service) Do(ctx context.Context, req Request) (Response, error) {
	respCh := make(chan Response, 1)
	select {
	case s.jobs <- job{req: req, respCh: respCh}:
	case <-s.closed:
		return Response{}, ErrServiceClosed
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}

	select {
	case resp := <-respCh:
		if resp.Err != nil {
			return Response{}, resp.Err
		}
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Close stops the workers. Pending Do calls receive ErrServiceClosed.
func (s *Service) Close() {
	s.once.Do(func() { close(s.closed) })
	s.wg.Wait()
}

// Stats returns the total jobs and samples processed and the most recent
// ERLE in dB (0 until an echo-removal job has run).
func (s *Service) Stats() (jobs, samples uint64, lastERLE float64) {
	return s.jobsDone.Load(), s.samplesDone.Load(), float64(s.lastERLE.Load()) / 1000
}
