package worklist

import (
	"crypto/md5"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Server is an http.Server that starts without blocking and waits for the
// requests in flight when stopped
type Server struct {
	*http.Server

	instanceID string
	listener   net.Listener
	lastError  error
	serving    sync.WaitGroup
	inFlight   int64
}

// NewServer creates a server listening on addr
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{Server: &http.Server{Addr: addr, Handler: handler}}
}

// InstanceID identifies the server in the X-Server-Instance-Id header
func (s *Server) InstanceID() string {
	return s.instanceID
}

// ListenAddr returns the address the server listens on once started
func (s *Server) ListenAddr() string {
	if s.listener == nil {
		return s.Server.Addr
	}
	return s.listener.Addr().String()
}

// Start listens and serves in the background
func (s *Server) Start() error {
	if s.Handler == nil {
		return errors.New("no server handler set")
	}
	if s.listener != nil {
		return errors.New("server already started")
	}

	addr := s.Server.Addr
	if addr == "" {
		addr = ":http"
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	hostname, _ := os.Hostname()
	s.instanceID = fmt.Sprintf("%x", md5.Sum([]byte(hostname+addr)))
	s.listener = listener
	s.Handler = &countingHandler{server: s, handler: s.Handler}

	s.serving.Add(1)
	go func() {
		defer s.serving.Done()

		if err := s.Serve(listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
			s.lastError = err
		}
	}()

	return nil
}

// Stop closes the listener, requests in flight keep running
func (s *Server) Stop() error {
	if s.listener == nil {
		return errors.New("server not started")
	}
	if err := s.listener.Close(); err != nil {
		return err
	}
	return s.lastError
}

// WaitStop waits for the server to stop and the requests in flight to finish
func (s *Server) WaitStop(timeout time.Duration) error {
	if s.listener == nil {
		return errors.New("server not started")
	}

	s.serving.Wait()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		if atomic.LoadInt64(&s.inFlight) == 0 {
			return s.lastError
		}
		select {
		case <-tick.C:
		case <-deadline.C:
			return fmt.Errorf("timeout after %s waiting for %d request(s) to finish", timeout, atomic.LoadInt64(&s.inFlight))
		}
	}
}

type countingHandler struct {
	server  *Server
	handler http.Handler
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&h.server.inFlight, 1)
	defer atomic.AddInt64(&h.server.inFlight, -1)

	w.Header().Add("X-Server-Instance-Id", h.server.instanceID)
	h.handler.ServeHTTP(w, r)
}
