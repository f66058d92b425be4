package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"agile_story_evaluator/service"
)

//go:embed web/index.html
var webFS embed.FS

// maxBodyBytes caps form and JSON bodies; stories are short.
const maxBodyBytes = 64 << 10

type Options struct {
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool
}

type Server struct {
	svc    *service.Service
	opts   Options
	logger *zap.Logger
	page   *template.Template
	md     goldmark.Markdown
}

func New(svc *service.Service, opts Options, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("evaluation service required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	page, err := template.New("index.html").Funcs(template.FuncMap{
		"pct": func(score int) int { return score * 10 },
	}).ParseFS(webFS, "web/index.html")
	if err != nil {
		return nil, err
	}
	return &Server{
		svc:    svc,
		opts:   opts,
		logger: logger,
		page:   page,
		md:     goldmark.New(),
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /evaluate", s.handleFormEvaluate)
	mux.HandleFunc("GET /api/challenge", s.handleChallenge)
	mux.HandleFunc("POST /api/evaluate", s.handleAPIEvaluate)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s.logMiddleware(mux)
}

// --- Handlers ---

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, pageData{})
}

func (s *Server) handleFormEvaluate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, r, http.StatusBadRequest, pageData{Error: "Could not read the submitted form."})
		return
	}
	story := r.PostForm.Get("story")
	out := s.svc.Evaluate(r.Context(), service.Request{
		Story:         story,
		ClientID:      s.clientID(r),
		CaptchaAnswer: r.PostForm.Get("captcha"),
		RequestID:     requestID(r.Context()),
	})

	data := pageData{Story: story}
	status := http.StatusOK
	switch out.Status {
	case service.StatusOK:
		data.Report = s.reportView(r.Context(), *out.Report)
	case service.StatusRateLimited:
		status = http.StatusTooManyRequests
		setRetryAfter(w, out.RetryAfter)
		data.Error = "Too many evaluations. Please wait " + retrySeconds(out.RetryAfter) + "s and try again."
	case service.StatusCaptchaFailed:
		status = http.StatusForbidden
		data.Error = "Incorrect answer to the verification question. Please try again."
	}
	s.renderPage(w, r, status, data)
}

type challengeResp struct {
	Captcha  bool   `json:"captcha"`
	Question string `json:"question,omitempty"`
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.svc.Challenge(s.clientID(r))
	writeJSON(w, http.StatusOK, challengeResp{Captcha: ok, Question: ch.Question})
}

type evaluateReq struct {
	Story         string `json:"story"`
	CaptchaAnswer string `json:"captcha_answer"`
}

type errorResp struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

func (s *Server) handleAPIEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateReq
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid request body: " + err.Error()})
		return
	}
	out := s.svc.Evaluate(r.Context(), service.Request{
		Story:         req.Story,
		ClientID:      s.clientID(r),
		CaptchaAnswer: req.CaptchaAnswer,
		RequestID:     requestID(r.Context()),
	})
	switch out.Status {
	case service.StatusOK:
		writeJSON(w, http.StatusOK, out.Report)
	case service.StatusRateLimited:
		setRetryAfter(w, out.RetryAfter)
		secs, _ := strconv.Atoi(retrySeconds(out.RetryAfter))
		writeJSON(w, http.StatusTooManyRequests, errorResp{Error: string(out.Reason), RetryAfterSeconds: secs})
	default:
		writeJSON(w, http.StatusForbidden, errorResp{Error: string(out.Reason)})
	}
}

// --- Helpers ---

// clientID identifies the caller by IP; the port is dropped so reconnects
// share a window.
func (s *Server) clientID(r *http.Request) string {
	if s.opts.TrustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setRetryAfter(w http.ResponseWriter, d time.Duration) {
	if d > 0 {
		w.Header().Set("Retry-After", retrySeconds(d))
	}
}

func retrySeconds(d time.Duration) string {
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type ctxKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))

		s.logger.Info("http request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
