package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/forcegraph/internal/apierr"
	"github.com/onnwee/forcegraph/internal/graph"
	"github.com/onnwee/forcegraph/internal/logger"
	"github.com/onnwee/forcegraph/internal/metrics"
	"github.com/onnwee/forcegraph/internal/middleware"
	"github.com/onnwee/forcegraph/internal/tracing"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 30 * time.Second

	// Frames queued for a slow client before ticks are dropped
	sendBuffer = 16
)

// Frame types sent on a layout stream.
const (
	FrameTick   = "tick"
	FrameResult = "result"
	FrameError  = "error"
)

// StreamMessage is one frame sent to a stream client.
type StreamMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// StreamHandler runs a layout over a WebSocket, sending a frame per tick.
// The client sends a single layoutRequest; the server replies with tick
// frames, then one result or error frame, then closes.
type StreamHandler struct {
	svc        *graph.Service
	maxNodes   int
	maxMessage int64
	timeout    time.Duration
	upgrader   websocket.Upgrader
}

func NewStreamHandler(svc *graph.Service, maxNodes int, maxMessage int64, timeout time.Duration, allowedOrigins []string) *StreamHandler {
	return &StreamHandler{
		svc:        svc,
		maxNodes:   maxNodes,
		maxMessage: maxMessage,
		timeout:    timeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r, allowedOrigins)
			},
		},
	}
}

// checkOrigin accepts same-origin requests, requests without an Origin
// header and origins on the CORS allow list.
func checkOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || middleware.OriginAllowed(origin, allowed) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// parseEvery reads the tick sampling interval from the query string.
func parseEvery(raw string) (int, *apierr.Error) {
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apierr.ValidationInvalidValue("every", "every must be a positive integer")
	}
	return n, nil
}

// ServeHTTP handles GET /api/layout/stream.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	every, apiErr := parseEvery(r.URL.Query().Get("every"))
	if apiErr != nil {
		apierr.WriteErrorWithContext(w, r, apiErr)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()

	if h.maxMessage > 0 {
		conn.SetReadLimit(h.maxMessage)
	}
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		logger.DebugContext(r.Context(), "stream closed before request", "error", err)
		return
	}

	req, apiErr := decodeLayoutRequest(bytes.NewReader(data), h.svc.Params())
	if apiErr == nil {
		apiErr = checkNodeLimit(req.Graph, h.maxNodes)
	}
	if apiErr != nil {
		writeDirect(conn, StreamMessage{Type: FrameError, Payload: withRequestID(r, apiErr)})
		return
	}

	ctx, span := tracing.StartSpan(r.Context(), "handlers.Stream")
	defer span.End()
	span.SetAttributes(
		attribute.Int("nodes", len(req.Graph.Nodes)),
		attribute.Int("iterations", req.Params.Iterations),
		attribute.Int("every", every),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if h.timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, h.timeout)
		defer cancelTimeout()
	}

	send := make(chan []byte, sendBuffer)
	done := make(chan struct{})
	go writePump(conn, send, done, cancel)
	go readPump(conn, cancel)

	last := req.Params.Iterations - 1
	res, err := h.svc.Compute(ctx, req.Graph, req.Params, func(t graph.Tick) error {
		if t.Iteration%every != 0 && t.Iteration != last {
			return nil
		}
		frame, err := json.Marshal(StreamMessage{Type: FrameTick, Payload: t})
		if err != nil {
			return err
		}
		if t.Iteration == last {
			select {
			case send <- frame:
			case <-done:
			}
			return nil
		}
		select {
		case send <- frame:
		default:
			// Client is behind; drop this tick rather than stall the layout.
		}
		return nil
	})

	final := StreamMessage{Type: FrameResult, Payload: res}
	if err != nil {
		span.RecordError(err)
		final = StreamMessage{Type: FrameError, Payload: withRequestID(r, apierr.FromLayoutError(err))}
	}
	if frame, err := json.Marshal(final); err == nil {
		select {
		case send <- frame:
		case <-done:
		}
	} else {
		logger.ErrorContext(r.Context(), "failed to encode final stream frame", "error", err)
	}
	close(send)
	<-done
}

func withRequestID(r *http.Request, e *apierr.Error) *apierr.Error {
	if id := apierr.GetRequestID(r.Context()); id != "" {
		e = e.WithRequestID(id)
	}
	return e
}

// writeDirect sends one frame and a close message before the pumps start.
func writeDirect(conn *websocket.Conn, msg StreamMessage) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if data, err := json.Marshal(msg); err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, data)
		metrics.WebSocketMessagesSent.Inc()
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump watches for the client going away and cancels the layout.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket unexpected close", "error", err)
			}
			return
		}
	}
}

// writePump is the only writer on conn once the layout starts. It closes
// done when it exits.
func writePump(conn *websocket.Conn, send <-chan []byte, done chan<- struct{}, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case msg, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				cancel()
				return
			}
			metrics.WebSocketMessagesSent.Inc()

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cancel()
				return
			}
		}
	}
}
