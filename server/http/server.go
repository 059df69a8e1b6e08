package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/w-h-a/doctalk/errs"
	"github.com/w-h-a/doctalk/internal/service/conversation"
	"github.com/w-h-a/doctalk/memory"
	"github.com/w-h-a/doctalk/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Conversation interface {
	Answer(ctx context.Context, question string) (string, error)
	History() []memory.Turn
}

type questionRequest struct {
	Question string `json:"question"`
}

type answerResponse struct {
	Index    int    `json:"index"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type httpServer struct {
	options      server.Options
	conversation Conversation
	handler      http.Handler
	mtx          sync.Mutex
}

func (s *httpServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.options.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.InfoContext(ctx, "serving", "address", s.options.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *httpServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *httpServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *httpServer) ask(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	ctx := r.Context()
	if d, ok := AnswerTimeoutFrom(s.options.Context); ok && d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	// index and answer must come from the same turn
	s.mtx.Lock()
	answer, err := s.conversation.Answer(ctx, req.Question)
	index := len(s.conversation.History())
	s.mtx.Unlock()

	if err != nil {
		slog.ErrorContext(ctx, "failed to answer question", "error", err)
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{
		Index:    index,
		Question: req.Question,
		Answer:   answer,
	})
}

func (s *httpServer) history(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"turns": s.conversation.History()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrProviderRejected):
		return http.StatusBadGateway
	case errors.Is(err, errs.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, conversation.ErrEmptyQuestion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func NewServer(conversation Conversation, opts ...server.Option) server.Server {
	options := server.NewOptions(opts...)

	s := &httpServer{
		options:      options,
		conversation: conversation,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/v1/questions", s.ask).Methods(http.MethodPost)
	r.HandleFunc("/v1/history", s.history).Methods(http.MethodGet)

	if ms, ok := MiddlewareFrom(options.Context); ok {
		for _, m := range ms {
			r.Use(mux.MiddlewareFunc(m))
		}
	}

	s.handler = otelhttp.NewHandler(r, "doctalk")

	return s
}
