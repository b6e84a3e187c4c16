package httpapi

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/pipeline"
)

const (
	// wsMaxFrameBytes caps one binary frame (~1.5 s of float32 at 44100 Hz
	// leaves plenty of headroom at 1 MiB).
	wsMaxFrameBytes = 1 << 20

	wsWriteTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream upgrades to a websocket and processes binary little-endian
// float32 frames one at a time: each frame runs through the operation named
// in the query string and the processed frame is written back. A text frame
// "metrics" returns the most recent per-frame report as JSON.
func (s *Server) handleStream(c echo.Context) error {
	op := pipeline.Op(strings.TrimSpace(c.QueryParam("op")))
	if op == "" {
		op = pipeline.OpRemoveEcho
	}
	if !op.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown op %q", op))
	}

	params := pipeline.DefaultParams()
	if raw := strings.TrimSpace(c.QueryParam("echo_delay_ms")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "echo_delay_ms must be a number")
		}
		params.EchoDelayMs = v
	}
	if raw := strings.TrimSpace(c.QueryParam("sample_rate")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "sample_rate must be a positive integer")
		}
		params.SampleRate = v
	}
	params = params.Normalized()

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("upgrade connection: %w", err)
	}
	s.serveStream(c, conn, op, params)
	return nil
}

func (s *Server) serveStream(c echo.Context, conn *websocket.Conn, op pipeline.Op, params pipeline.Params) {
	defer conn.Close()
	conn.SetReadLimit(wsMaxFrameBytes)

	remote := c.Request().RemoteAddr
	slog.Info("stream opened", "remote", remote, "op", op)

	var lastReport pipeline.Report
	frames := 0

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("stream read", "remote", remote, "error", err)
			}
			break
		}

		switch msgType {
		case websocket.TextMessage:
			if strings.TrimSpace(string(data)) != "metrics" {
				s.streamError(conn, remote, "unknown text command")
				return
			}
			if err := s.writeStreamJSON(conn, metricsFromReport(lastReport)); err != nil {
				slog.Warn("stream write metrics", "remote", remote, "error", err)
				return
			}

		case websocket.BinaryMessage:
			signal, err := decodeFrame(data)
			if err != nil {
				s.streamError(conn, remote, err.Error())
				return
			}
			resp, err := s.svc.Do(c.Request().Context(), pipeline.Request{
				Op:     op,
				Signal: signal,
				Params: params,
			})
			if err != nil {
				s.streamError(conn, remote, fmt.Sprintf("process frame: %v", err))
				return
			}
			lastReport = resp.Report
			frames++

			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, encodeFrame(resp.Signal)); err != nil {
				slog.Warn("stream write frame", "remote", remote, "error", err)
				return
			}
		}
	}

	slog.Info("stream closed", "remote", remote, "frames", frames)
}

type streamErrorMessage struct {
	Error string `json:"error"`
}

func (s *Server) streamError(conn *websocket.Conn, remote, msg string) {
	if err := s.writeStreamJSON(conn, streamErrorMessage{Error: msg}); err != nil {
		slog.Warn("stream write error", "remote", remote, "error", err)
	}
}

func (s *Server) writeStreamJSON(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v)
}

// decodeFrame parses a binary frame of little-endian float32 samples.
func decodeFrame(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("frame length %d is not a multiple of 4", len(data))
	}
	signal := make([]float32, len(data)/4)
	for i := range signal {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		signal[i] = math.Float32frombits(bits)
	}
	return signal, nil
}

func encodeFrame(signal []float32) []byte {
	data := make([]byte, len(signal)*4)
	for i, v := range signal {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return data
}
