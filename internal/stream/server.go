// Package stream serves the robot pose over WebSocket and accepts target
// updates from remote clients.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/robotsim/robots/internal/command"
	"github.com/robotsim/robots/internal/dispatcher"
	"github.com/robotsim/robots/internal/robot"
	"github.com/robotsim/robots/pkg/streaming"
)

const (
	sendChSize     = 16
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	// Path is the upgrade endpoint.
	Path = "/ws"
)

// Source provides the pose to broadcast.
type Source interface {
	Snapshot() robot.Snapshot
}

// Server fans out pose updates to every connected client.
type Server struct {
	source     Source
	dispatcher *dispatcher.Dispatcher
	logger     *slog.Logger
	upgrader   ws.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup
}

// New creates a server. Target updates from clients are dispatched as
// command.CmdSetTarget events to d.
func New(source Source, d *dispatcher.Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		source:     source,
		dispatcher: d,
		logger:     logger,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the HTTP handler serving Path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWebSocket)
	return mux
}

// Start listens on addr and serves in the background. Use Addr to learn the
// bound address when addr has port 0.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("stream listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Stream server stopped", "error", err)
		}
	}()

	s.logger.Info("Stream server listening", "addr", ln.Addr().String(), "path", Path)
	return nil
}

// Addr returns the listening address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Broadcast sends the current pose to every client. A client whose send
// buffer is full is disconnected.
func (s *Server) Broadcast() {
	snap := s.source.Snapshot()
	data, err := streaming.Encode(streaming.TypePose, poseFromSnapshot(snap))
	if err != nil {
		s.logger.Error("Failed to encode pose", "error", err)
		return
	}

	s.mu.Lock()
	var slow []*client
	for c := range s.clients {
		if !c.trySend(data) {
			slow = append(slow, c)
		}
	}
	s.mu.Unlock()

	for _, c := range slow {
		s.logger.Warn("Dropping slow stream client", "remote", c.remote)
		s.remove(c)
	}
}

// Forward broadcasts once per signal on redraw until ctx is done or redraw
// is closed.
func (s *Server) Forward(ctx context.Context, redraw <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-redraw:
			if !ok {
				return
			}
			s.Broadcast()
		}
	}
}

// Shutdown stops accepting connections and disconnects all clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	for _, c := range clients {
		s.remove(c)
	}
	s.wg.Wait()
	return err
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("WebSocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := newClient(conn)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	s.wg.Add(2)
	s.mu.Unlock()
	s.logger.Info("Stream client connected", "remote", c.remote)

	go func() {
		defer s.wg.Done()
		c.writeLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.readLoop(c)
	}()

	// greet with the current pose
	if data, err := streaming.Encode(streaming.TypePose, poseFromSnapshot(s.source.Snapshot())); err == nil {
		c.trySend(data)
	}
}

// remove unregisters c and closes its connection.
func (s *Server) remove(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()

	if ok {
		c.close()
		s.logger.Info("Stream client disconnected", "remote", c.remote)
	}
}

func (s *Server) readLoop(c *client) {
	defer s.remove(c)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure) {
				s.logger.Debug("WebSocket read error", "remote", c.remote, "error", err)
			}
			return
		}
		if !c.trySend(s.handleMessage(c, message)) {
			s.logger.Warn("Dropping slow stream client", "remote", c.remote)
			return
		}
	}
}

// handleMessage processes one client message and returns the encoded reply.
func (s *Server) handleMessage(c *client, message []byte) []byte {
	var p streaming.SetTargetPayload
	msgType, err := streaming.Decode(message, &p)
	if err == nil && msgType != streaming.TypeSetTarget {
		err = fmt.Errorf("unsupported message type %q", msgType)
	}
	if err != nil {
		return encodeError(msgType, err)
	}

	result, err := s.dispatcher.Dispatch(dispatcher.Event{
		Command: command.CmdSetTarget,
		Args:    command.PointArgs(p.X, p.Y),
		Source:  "stream:" + c.remote,
	})
	if err != nil {
		return encodeError(msgType, err)
	}

	data, err := marshalAck(streaming.AckMessage{Type: streaming.TypeAck, For: msgType, Result: result})
	if err != nil {
		return encodeError(msgType, err)
	}
	return data
}

func poseFromSnapshot(s robot.Snapshot) streaming.PosePayload {
	return streaming.PosePayload{
		Seq:     s.Seq,
		X:       s.Pose.X,
		Y:       s.Pose.Y,
		Heading: s.Pose.Heading,
		TargetX: s.Target.X,
		TargetY: s.Target.Y,
	}
}
