package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"chat-stream-engine/internal/infra/metrics"
	"chat-stream-engine/internal/usecase"
)

// SendLimiter is satisfied by the redis fixed-window limiter.
type SendLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type ServerConfig struct {
	JWTSecret      string
	SendLimit      int
	RequestTimeout time.Duration
}

type Server struct {
	turns   usecase.TurnUseCase
	limiter SendLimiter
	cfg     ServerConfig
	log     *zerolog.Logger
}

// NewServer builds the HTTP surface. limiter may be nil, which disables
// send rate limiting.
func NewServer(turns usecase.TurnUseCase, limiter SendLimiter, cfg ServerConfig, log *zerolog.Logger) *Server {
	return &Server{turns: turns, limiter: limiter, cfg: cfg, log: log}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.JWTSecret != "" {
			r.Use(JWTGuard(s.cfg.JWTSecret))
		}
		r.With(Timeout(s.cfg.RequestTimeout)).Get("/chats", chatsListHandler(s.turns))
		r.Route("/chats/{chatID}/tabs/{tabIndex}", func(r chi.Router) {
			r.With(Timeout(s.cfg.RequestTimeout)).Get("/messages", historyHandler(s.turns))
			r.With(Timeout(s.cfg.RequestTimeout)).Post("/cancel", cancelHandler(s.turns))
			r.Post("/messages", sendHandler(s.turns, s.limiter, s.cfg.SendLimit, s.log))
		})
	})
	return r
}

// ListenAndServe serves until ctx is done, then drains for up to grace.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
