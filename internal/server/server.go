// Package server exposes the actions over HTTP. Each action endpoint takes
// a multipart form with the session cookies uploaded in the "cookie" field.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/actions"
	"github.com/ibeckermayer/igwarmup/internal/browser"
	"github.com/ibeckermayer/igwarmup/internal/config"
	"github.com/ibeckermayer/igwarmup/internal/types"
)

var (
	errNoCookieFile = errors.New("no cookie file provided")
	errNotJSON      = errors.New("only .json files are allowed")
	errTooLarge     = errors.New("file too large")
)

// Actions is what the endpoints invoke
type Actions interface {
	LikePost(ctx context.Context, opts actions.Options) types.Result
	PostComment(ctx context.Context, opts actions.Options) types.Result
	LikeStory(ctx context.Context, opts actions.Options) types.Result
	FetchNewestPost(ctx context.Context, opts actions.Options) types.Result
}

// response is the JSON body of every action endpoint
type response struct {
	types.Result
	Username string `json:"username,omitempty"`
	PostURL  string `json:"postUrl,omitempty"`
}

// Server serves the HTTP API
type Server struct {
	actions   Actions
	addr      string
	maxUpload int64
	uploadDir string
	browser   config.BrowserConfig
	logger    *zap.Logger
}

// New creates a server for acts
func New(cfg *config.Config, acts Actions, logger *zap.Logger) *Server {
	return &Server{
		actions:   acts,
		addr:      cfg.Server.Addr,
		maxUpload: cfg.Server.MaxUploadBytes,
		uploadDir: cfg.Storage.UploadDir,
		browser:   cfg.Browser,
		logger:    logger.Named("server"),
	}
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(s.logRequests)

	router.Get("/", s.handleIndex)
	router.Get("/healthz", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/instagram", func(r chi.Router) {
		r.Post("/like-story", s.handleLikeStory)
		r.Post("/newest-post", s.handleNewestPost)
		r.Post("/like-post", s.handleLikePost)
		r.Post("/post-comment", s.handlePostComment)
	})
	return router
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Welcome to Instagram Automation API",
		"endpoints": map[string]string{
			"likeStory":   "/api/instagram/like-story",
			"newestPost":  "/api/instagram/newest-post",
			"likePost":    "/api/instagram/like-post",
			"postComment": "/api/instagram/post-comment",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLikeStory(w http.ResponseWriter, r *http.Request) {
	s.withUpload(w, r, func(opts actions.Options) {
		if opts.Username == "" {
			respondResult(w, response{Result: types.Failed("Username is required")})
			return
		}
		if raw := r.FormValue("emojis"); raw != "" {
			var emojis []string
			if err := json.Unmarshal([]byte(raw), &emojis); err != nil {
				s.logger.Warn("Failed to parse custom emojis, using defaults", zap.Error(err))
			} else {
				opts.Emojis = emojis
			}
		}
		res := s.actions.LikeStory(r.Context(), opts)
		respondResult(w, response{Result: res, Username: opts.Username})
	})
}

func (s *Server) handleNewestPost(w http.ResponseWriter, r *http.Request) {
	s.withUpload(w, r, func(opts actions.Options) {
		if opts.Username == "" {
			respondResult(w, response{Result: types.Failed("Username is required")})
			return
		}
		opts.Backend = r.FormValue("backend")
		res := s.actions.FetchNewestPost(r.Context(), opts)
		respondResult(w, response{Result: res, Username: opts.Username})
	})
}

func (s *Server) handleLikePost(w http.ResponseWriter, r *http.Request) {
	s.withUpload(w, r, func(opts actions.Options) {
		if opts.PostURL == "" {
			respondResult(w, response{Result: types.Failed("Post URL is required")})
			return
		}
		res := s.actions.LikePost(r.Context(), opts)
		respondResult(w, response{Result: res, PostURL: opts.PostURL})
	})
}

func (s *Server) handlePostComment(w http.ResponseWriter, r *http.Request) {
	s.withUpload(w, r, func(opts actions.Options) {
		switch {
		case opts.PostURL == "":
			respondResult(w, response{Result: types.Failed("Post URL is required")})
			return
		case opts.Comment == "":
			respondResult(w, response{Result: types.Failed("Comment text is required")})
			return
		}
		res := s.actions.PostComment(r.Context(), opts)
		respondResult(w, response{Result: res, PostURL: opts.PostURL})
	})
}

// withUpload stores the uploaded cookie file, builds the action options
// from the form and removes the file once fn returns.
func (s *Server) withUpload(w http.ResponseWriter, r *http.Request, fn func(actions.Options)) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1<<20)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		respondResult(w, response{Result: types.Failed("Upload error: " + err.Error())})
		return
	}
	defer r.MultipartForm.RemoveAll()

	path, err := s.saveUpload(r)
	if err != nil {
		s.logger.Warn("Rejected cookie upload", zap.Error(err))
		respondResult(w, response{Result: types.Failed(uploadMessage(err))})
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Error deleting cookie file", zap.String("path", path), zap.Error(err))
		}
	}()

	opts := actions.Options{
		Username:    strings.TrimSpace(r.FormValue("username")),
		PostURL:     strings.TrimSpace(r.FormValue("postUrl")),
		Comment:     r.FormValue("comment"),
		DedupKey:    strings.TrimSpace(r.FormValue("postId")),
		CookiesPath: path,
		Headless:    r.FormValue("headless") != "false",
	}
	if r.FormValue("browserless") == "true" {
		if token := r.FormValue("browserlessToken"); token != "" {
			opts.RemoteEndpoint = browser.HostedURL(token)
		}
	} else if s.browser.RemoteEndpoint != "" {
		opts.RemoteEndpoint = s.browser.RemoteEndpoint
	}
	fn(opts)
}

func (s *Server) saveUpload(r *http.Request) (string, error) {
	file, header, err := r.FormFile("cookie")
	if errors.Is(err, http.ErrMissingFile) {
		return "", errNoCookieFile
	}
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	defer file.Close()

	if filepath.Ext(header.Filename) != ".json" {
		return "", errNotJSON
	}
	if header.Size > s.maxUpload {
		return "", errTooLarge
	}

	if err := os.MkdirAll(s.uploadDir, 0700); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(s.uploadDir, uuid.NewString()+".json")
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return path, nil
}

// uploadMessage is the response message for a failed upload
func uploadMessage(err error) string {
	switch {
	case errors.Is(err, errNoCookieFile):
		return "No cookie file provided"
	case errors.Is(err, errNotJSON):
		return "Only .json files are allowed"
	case errors.Is(err, errTooLarge):
		return "Upload error: File too large"
	default:
		return "Upload error: " + err.Error()
	}
}

func respondResult(w http.ResponseWriter, res response) {
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadRequest
	}
	respondJSON(w, status, res)
}

// respondJSON sends a JSON response with appropriate headers.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
