// Package server exposes the chat gateway over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roteiro-ai/roteiro/pkg/gateway"
	"github.com/roteiro-ai/roteiro/pkg/logging"
	"github.com/roteiro-ai/roteiro/pkg/models"
	"github.com/roteiro-ai/roteiro/pkg/persona"
	"github.com/roteiro-ai/roteiro/pkg/ratelimit"
)

// MaxBodyBytes caps the size of a chat request body.
const MaxBodyBytes = 64 << 10

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, req gateway.Request) (gateway.Response, error)
}

// Server is the roteiro HTTP API.
type Server struct {
	listen   string
	gw       Asker
	personas *persona.Registry
	logger   *zap.Logger
	mux      *http.ServeMux
	trusted  []netip.Prefix
}

// Option configures a Server.
type Option func(*Server)

// WithTrustedProxies makes the server read the client address from
// X-Forwarded-For or X-Real-IP when the peer falls inside one of prefixes.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(s *Server) { s.trusted = prefixes }
}

// New creates a Server.
func New(listen string, gw Asker, personas *persona.Registry, logger *zap.Logger, opts ...Option) *Server {
	if personas == nil {
		personas = persona.DefaultRegistry()
	}
	s := &Server{
		listen:   listen,
		gw:       gw,
		personas: personas,
		logger:   logging.OrNop(logger),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("/api/chat", s.handleChat)
	s.mux.HandleFunc("/api/personas", s.handlePersonas)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server and shuts it down gracefully when ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("roteiro listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req models.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.gw.Ask(r.Context(), gateway.Request{
		Question:  req.Question,
		Persona:   req.Persona,
		ClientID:  s.clientID(r),
		RequestID: requestID,
	})
	if err != nil {
		var limited *ratelimit.LimitError
		switch {
		case errors.Is(err, gateway.ErrValidation):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &limited):
			if secs := retryAfterSeconds(limited.Result.RetryAfter); secs > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(secs))
			}
			writeJSONError(w, http.StatusTooManyRequests, limited.Error())
		default:
			s.logger.Error("chat failed", zap.String("request_id", requestID), zap.Error(err))
			writeJSONError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{
		Response:  resp.Text,
		Persona:   string(resp.Persona),
		Cached:    resp.Cached,
		Fallback:  resp.Fallback,
		InScope:   resp.InScope,
		Category:  string(resp.Category),
		RequestID: requestID,
		Timestamp: resp.Timestamp,
	})
}

func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	list := s.personas.List()
	out := make([]models.PersonaInfo, 0, len(list))
	for _, p := range list {
		out = append(out, p.Info())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// clientID identifies the caller for rate limiting. Forwarding headers are
// honoured only when the peer is a trusted proxy: the first X-Forwarded-For
// hop wins, then X-Real-IP. Otherwise the connection's remote host is used.
func (s *Server) clientID(r *http.Request) string {
	host := remoteHost(r.RemoteAddr)
	if !s.trustedPeer(host) {
		return host
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return host
}

func (s *Server) trustedPeer(host string) bool {
	if len(s.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range s.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"roteiro_error","code":%d}}`, message, code)
}
