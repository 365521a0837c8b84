// Package server exposes the relay over WebSocket: it upgrades connections,
// feeds every received frame into the serialized processor and runs the
// death-row janitor.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/palaverhq/palaver/internal/dispatch"
)

var errTransportClosed = errors.New("transport closed")

// Config contains server options.
type Config struct {
	Address      string
	Port         int
	PingInterval time.Duration
	WriteTimeout time.Duration
	// SweepInterval is how often expired death-row members are reaped.
	SweepInterval time.Duration
}

// Server is the HTTP/WebSocket front of the relay.
type Server struct {
	config     Config
	proc       *dispatch.Processor
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// New creates a Server around a processor.
func New(config Config, proc *dispatch.Processor) *Server {
	if config.PingInterval == 0 {
		config.PingInterval = 25 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = time.Second
	}
	if config.SweepInterval == 0 {
		config.SweepInterval = time.Second
	}
	s := &Server{
		config: config,
		proc:   proc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// auth and origin policy are out of scope for the relay.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/connection/websocket", s.handleWebsocket)
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	s.httpServer = &http.Server{
		Addr:    net.JoinHostPort(config.Address, strconv.Itoa(config.Port)),
		Handler: mux,
	}
	return s
}

// Handler returns the HTTP handler serving the relay endpoints, for mounting
// on an external listener.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade error")
		return
	}
	transport := newWebsocketTransport(conn, websocketTransportOptions{
		pingInterval: s.config.PingInterval,
		writeTimeout: s.config.WriteTimeout,
	})
	s.proc.Hub().Add(transport)
	log.Debug().Str("conn", transport.ID()).Str("remote", r.RemoteAddr).Msg("connection established")

	// Connections are independent I/O sources; the processor serializes
	// them into a single logical actor.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.proc.Handle(transport, data)
	}
	_ = transport.Close("read loop finished")
	s.proc.Disconnect(transport.ID())
	log.Debug().Str("conn", transport.ID()).Msg("connection closed")
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("address", s.httpServer.Addr).Msg("serving websocket connections")
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(s.config.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				s.proc.SweepDeathRow(now)
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		s.proc.Hub().Shutdown("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
