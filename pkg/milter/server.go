package milter

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/d--j/go-milter"
	"github.com/zpam/spamscore/pkg/config"
	"go.uber.org/zap"
)

// Server wraps a go-milter server that scores every message
type Server struct {
	config    config.MilterConfig
	milterSrv *milter.Server
	logger    *zap.Logger
}

// NewServer creates a milter server using analyzer for each message
func NewServer(cfg config.MilterConfig, analyzer Analyzer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	// connection, HELO and recipient events carry nothing the rules use
	milterOpts := []milter.Option{
		milter.WithProtocol(milter.OptNoConnect | milter.OptNoHelo | milter.OptNoRcptTo),
		milter.WithMilter(func() milter.Milter {
			return NewHandler(cfg, analyzer, logger)
		}),
	}

	var actions milter.OptAction
	if cfg.AddSpamHeaders {
		actions |= milter.OptAddHeader
	}
	if actions != 0 {
		milterOpts = append(milterOpts, milter.WithAction(actions))
	}

	if cfg.ReadTimeoutMs > 0 {
		milterOpts = append(milterOpts, milter.WithReadTimeout(
			time.Duration(cfg.ReadTimeoutMs)*time.Millisecond))
	}
	if cfg.WriteTimeoutMs > 0 {
		milterOpts = append(milterOpts, milter.WithWriteTimeout(
			time.Duration(cfg.WriteTimeoutMs)*time.Millisecond))
	}

	return &Server{
		config:    cfg,
		milterSrv: milter.NewServer(milterOpts...),
		logger:    logger,
	}
}

// Listen opens the configured tcp or unix socket
func (s *Server) Listen() (net.Listener, error) {
	listener, err := net.Listen(s.config.Network, s.config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s %s: %w", s.config.Network, s.config.Address, err)
	}
	return listener, nil
}

// Serve accepts milter connections until ctx is cancelled
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.milterSrv.Serve(listener)
	}()

	s.logger.Info("milter listening",
		zap.String("network", s.config.Network),
		zap.String("address", s.config.Address))

	select {
	case <-ctx.Done():
		timeout := time.Duration(s.config.GracefulShutdownTimeout) * time.Millisecond
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.milterSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown milter server: %w", err)
		}
		s.logger.Info("milter stopped", zap.Uint64("sessions", s.milterSrv.MilterCount()))
		return nil

	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("milter server error: %w", err)
		}
		return nil
	}
}

// Stats returns server statistics
func (s *Server) Stats() ServerStats {
	return ServerStats{
		MilterCount: s.milterSrv.MilterCount(),
	}
}

// ServerStats contains server statistics
type ServerStats struct {
	MilterCount uint64 // Total number of milter instances created
}
