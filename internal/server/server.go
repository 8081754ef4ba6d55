package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/BioHazard786/pairlink/internal/config"
	"github.com/BioHazard786/pairlink/internal/metrics"
	"github.com/BioHazard786/pairlink/internal/room"
	"github.com/BioHazard786/pairlink/internal/signaling"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

const shutdownTimeout = 10 * time.Second

// Server runs the relay: the hub, its HTTP surface, and the optional
// gRPC health endpoint.
type Server struct {
	cfg      *config.Server
	hub      *signaling.Hub
	metrics  *metrics.PrometheusCollector
	log      zerolog.Logger
	upgrader websocket.Upgrader

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
}

// New wires a relay from cfg. Nothing listens until Run is called.
func New(cfg *config.Server, l zerolog.Logger) *Server {
	m := metrics.NewPrometheusCollector()
	s := &Server{
		cfg:      cfg,
		hub:      signaling.NewHub(cfg, room.NewRegistry(), m, l.With().Str("component", "hub").Logger()),
		metrics:  m,
		log:      l,
		upgrader: newUpgrader(cfg.AllowedOrigins),
	}

	s.http = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if cfg.GRPCAddress != "" {
		s.grpc, s.health = newGRPCServer()
	}
	return s
}

// Hub returns the relay's hub.
func (s *Server) Hub() *signaling.Hub { return s.hub }

// Run starts the hub and the listeners, and blocks until ctx is done or
// a listener fails. It shuts everything down before returning.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run()

	errc := make(chan error, 2)

	go func() {
		s.log.Info().Str("address", s.http.Addr).Msg("starting signaling server")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()

	if s.grpc != nil {
		lis, err := net.Listen("tcp", s.cfg.GRPCAddress)
		if err != nil {
			s.shutdown()
			return fmt.Errorf("listening on %s: %w", s.cfg.GRPCAddress, err)
		}
		go func() {
			s.log.Info().Str("address", lis.Addr().String()).Msg("starting grpc server")
			if err := s.grpc.Serve(lis); err != nil {
				errc <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var err error
	select {
	case <-ctx.Done():
		s.log.Info().Msg("shutting down")
	case err = <-errc:
	}

	s.shutdown()
	return err
}

func (s *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.health != nil {
		s.health.Shutdown()
	}
	if err := s.http.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("http server shutdown")
	}
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}

	// Hijacked websocket connections are not closed by http.Server.
	s.hub.Stop()
	s.log.Info().Msg("shutdown complete")
}
