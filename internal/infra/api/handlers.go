package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"chat-stream-engine/internal/domain"
	"chat-stream-engine/internal/domain/model"
	"chat-stream-engine/internal/infra/logging"
	red "chat-stream-engine/internal/infra/redis"
	"chat-stream-engine/internal/usecase"
)

const maxSendBody = 1 << 20

type sendRequest struct {
	Message string `json:"message"`
}

type turnResponse struct {
	TurnID string `json:"turnId"`
	State  string `json:"state,omitempty"`
	Error  string `json:"error,omitempty"`
}

type contentEvent struct {
	Content string `json:"content"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var unsupported *domain.UnsupportedModelError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTurnInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnsupportedChatType), errors.As(err, &unsupported):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, msg)
}

func tabParams(r *http.Request) (string, int, error) {
	chatID := chi.URLParam(r, "chatID")
	tab, err := strconv.Atoi(chi.URLParam(r, "tabIndex"))
	if err != nil {
		return "", 0, domain.InvalidArgument("tab index must be an integer")
	}
	return chatID, tab, nil
}

func chatsListHandler(turns usecase.TurnUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chats, err := turns.Chats(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if chats == nil {
			chats = []*model.ChatInfo{}
		}
		writeJSON(w, http.StatusOK, chats)
	}
}

func historyHandler(turns usecase.TurnUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, tab, err := tabParams(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		snap, err := turns.History(r.Context(), chatID, tab)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func cancelHandler(turns usecase.TurnUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, tab, err := tabParams(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if err := turns.Cancel(r.Context(), chatID, tab); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// sendHandler starts a turn. With Accept: text/event-stream the response
// streams content snapshots until the turn ends; otherwise it returns 202
// and the caller polls the tab.
func sendHandler(turns usecase.TurnUseCase, limiter SendLimiter, limit int, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chatID, tab, err := tabParams(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		ctx = logging.WithTabIndex(logging.WithChatID(ctx, chatID), tab)
		l := logging.With(ctx, logger)

		var req sendRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxSendBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if limiter != nil && limit > 0 {
			ok, err := limiter.Allow(ctx, red.ChatSendKey(chatID, Subject(ctx)), limit, time.Minute)
			if err != nil {
				l.Error().Err(err).Msg("rate limiter unavailable")
				writeError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
				return
			}
			if !ok {
				writeError(w, http.StatusTooManyRequests, "too many messages, slow down")
				return
			}
		}

		if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
			turn, err := turns.Send(ctx, chatID, tab, req.Message, nil)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusAccepted, turnResponse{TurnID: turn.ID()})
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusNotAcceptable, "streaming unsupported")
			return
		}
		updates := make(chan struct{}, 1)
		notify := func() {
			select {
			case updates <- struct{}{}:
			default:
			}
		}
		turn, err := turns.Send(ctx, chatID, tab, req.Message, notify)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		last := ""
		push := func() {
			snap, err := turns.History(ctx, chatID, tab)
			if err != nil || len(snap.Messages) == 0 {
				return
			}
			content := snap.Messages[len(snap.Messages)-1].Content
			if content == last {
				return
			}
			last = content
			writeEvent(w, "message", contentEvent{Content: content})
			flusher.Flush()
		}

		for {
			select {
			case <-ctx.Done():
				// Client went away.
				_ = turns.Cancel(ctx, chatID, tab)
				<-turn.Done()
				return
			case <-updates:
				push()
			case <-turn.Done():
				push()
				done := turnResponse{TurnID: turn.ID(), State: turn.State().String()}
				if err := turn.Err(); err != nil {
					done.Error = err.Error()
				}
				writeEvent(w, "done", done)
				flusher.Flush()
				return
			}
		}
	}
}

func writeEvent(w io.Writer, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
