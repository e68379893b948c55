package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"portrait-studio-bot/internal/gemini"
	"portrait-studio-bot/internal/httpclient"
	"portrait-studio-bot/internal/imaging"
	"portrait-studio-bot/internal/studio"
)

type server struct {
	gen     *studio.Generator
	logger  *slog.Logger
	sem     chan struct{}
	timeout time.Duration
}

type apiError struct {
	Error string `json:"error"`
}

type generateResponse struct {
	Image    string `json:"image"`
	MimeType string `json:"mimeType"`
}

func main() {
	_ = godotenv.Load()

	addr := strings.TrimSpace(getEnv("WEB_ADDR", ":8080"))

	httpTimeout := time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second
	if httpTimeout <= 0 {
		httpTimeout = 180 * time.Second
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: getEnvBool("PREFER_IPV4", true),
		Timeout:    httpTimeout,
	})

	var remote studio.RemoteClient
	if apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); apiKey != "" {
		gem, err := gemini.New(context.Background(), gemini.Options{
			APIKey:     apiKey,
			BaseURL:    strings.TrimSpace(getEnv("GEMINI_BASE_URL", "")),
			HTTPClient: httpClient,
			Logger:     logger,
		})
		if err != nil {
			logger.Error("gemini init failed", "err", err)
			os.Exit(1)
		}
		remote = gem
	} else {
		logger.Warn("GEMINI_API_KEY is not set, /api/generate will fail until it is configured")
	}

	gen := studio.New(studio.Options{
		Client:        remote,
		Logger:        logger,
		AnalysisModel: strings.TrimSpace(getEnv("GEMINI_ANALYSIS_MODEL", "")),
		Retry: studio.Retry{
			MaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:   time.Duration(getEnvInt("RETRY_BASE_DELAY_MS", 2000)) * time.Millisecond,
		},
	})

	timeout := time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 240)) * time.Second
	if timeout <= 0 {
		timeout = 240 * time.Second
	}

	maxConcurrent := getEnvInt("MAX_CONCURRENT", 4)
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	s := &server{
		gen:     gen,
		logger:  logger,
		sem:     make(chan struct{}, maxConcurrent),
		timeout: timeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/healthz", s.handleHealth)

	srv := &http.Server{
		Addr:              addr,
		Handler:           withLogging(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	logger.Info("web started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	const maxUploadBytes = 25 << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
		return
	}

	source, err := readImageFile(r, "source")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	reference, err := readImageFile(r, "reference")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}

	req, err := buildRequest(r, source, reference)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-r.Context().Done():
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	result, err := s.gen.Generate(ctx, source, reference, req)
	if err != nil {
		s.logger.Error("generation failed", "err", err)
		writeJSON(w, statusForError(err), apiError{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Image:    result.DataURL(),
		MimeType: result.MimeType,
	})
}

func buildRequest(r *http.Request, source, reference *studio.Asset) (studio.Request, error) {
	req := studio.Request{
		Prompt:        strings.TrimSpace(r.FormValue("prompt")),
		CustomFeature: strings.TrimSpace(r.FormValue("custom_feature")),
	}

	if raw := strings.TrimSpace(r.FormValue("model")); raw != "" {
		model := studio.Model(raw)
		if !model.Valid() {
			return studio.Request{}, errors.New("unknown model")
		}
		req.Model = model
	}
	// Editing needs a portrait; without one the prompt goes to the
	// text-to-image model, matching the bot.
	if source == nil {
		req.Model = studio.ModelImagen
	}

	if raw := strings.TrimSpace(r.FormValue("aspect_ratio")); raw != "" {
		aspect := studio.AspectRatio(raw)
		if !aspect.Valid() {
			return studio.Request{}, errors.New("unknown aspect ratio")
		}
		req.Aspect = aspect
	}

	if raw := strings.TrimSpace(r.FormValue("reference_mode")); raw != "" {
		mode := studio.ReferenceMode(raw)
		if !mode.Valid() {
			return studio.Request{}, errors.New("unknown reference mode")
		}
		req.Mode = mode
	} else if reference != nil {
		req.Mode = studio.ModeOutfit
	}

	if req.Model.TextToImage() && req.Prompt == "" {
		return studio.Request{}, errors.New("prompt is required for text-to-image generation")
	}
	if !req.Model.TextToImage() && req.Prompt == "" && reference == nil {
		return studio.Request{}, errors.New("prompt is required when no reference image is supplied")
	}

	return req, nil
}

func readImageFile(r *http.Request, field string) (*studio.Asset, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s upload", field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s", field)
	}

	mimeType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if strings.Contains(mimeType, ";") {
		mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if strings.Contains(mimeType, ";") {
		mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "image/jpeg"
	}

	asset := studio.AssetFromBytes(data, mimeType)
	return &asset, nil
}

func statusForError(err error) int {
	switch {
	case studio.IsRateLimited(err):
		return http.StatusTooManyRequests
	case errors.Is(err, studio.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, studio.ErrContentBlocked), errors.Is(err, imaging.ErrDecode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("http", "method", r.Method, "path", r.URL.Path, "dur_ms", time.Since(start).Milliseconds())
	})
}
