// Package server exposes the Flow HTTP API: scene generation, direct
// image-to-3D conversion, websocket voice capture, static asset serving,
// health probes, and the Prometheus metrics endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stephenhungg/flow/internal/convert"
	"github.com/stephenhungg/flow/internal/health"
	"github.com/stephenhungg/flow/internal/observe"
	"github.com/stephenhungg/flow/internal/scene"
	"github.com/stephenhungg/flow/pkg/provider/stt"
)

// maxRequestBytes bounds JSON request bodies. Multipart uploads are bounded
// separately by maxUploadBytes.
const (
	maxRequestBytes = 1 << 20
	maxUploadBytes  = 32 << 20
)

// SceneService produces a complete scene for a concept.
type SceneService interface {
	Generate(ctx context.Context, concept string) (*scene.Result, error)
}

// ConvertService runs one image through the 2D-to-3D pipeline.
type ConvertService interface {
	Convert(ctx context.Context, in convert.ImageInput, prompt string, progress convert.Progress) (*convert.Result, error)
}

// Server is the Flow HTTP server. Construct it with [New], then either mount
// [Server.Handler] yourself or call [Server.ListenAndServe].
type Server struct {
	scenes    SceneService
	converter ConvertService
	capture   stt.Provider
	health    *health.Handler
	metrics   *observe.Metrics
	log       *slog.Logger

	assetsRoot   string
	assetsPrefix string

	httpSrv *http.Server
}

// Option customizes a [Server].
type Option func(*Server)

// WithConverter enables the direct conversion endpoint.
func WithConverter(c ConvertService) Option {
	return func(s *Server) { s.converter = c }
}

// WithCapture enables the websocket voice capture endpoint backed by the
// given transcription provider.
func WithCapture(p stt.Provider) Option {
	return func(s *Server) { s.capture = p }
}

// WithHealth sets the health handler. Without it, probes report a bare
// liveness check only.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		if h != nil {
			s.health = h
		}
	}
}

// WithMetrics sets the metrics instruments used by the HTTP middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithAssets serves the directory root under the given URL prefix.
func WithAssets(root, prefix string) Option {
	return func(s *Server) {
		s.assetsRoot = root
		if prefix != "" {
			s.assetsPrefix = prefix
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New builds a [Server] around the scene service.
func New(scenes SceneService, opts ...Option) (*Server, error) {
	if scenes == nil {
		return nil, fmt.Errorf("server: scene service is required")
	}
	s := &Server{
		scenes:       scenes,
		health:       health.New(),
		metrics:      observe.DefaultMetrics(),
		log:          slog.Default(),
		assetsPrefix: "/assets/",
	}
	for _, opt := range opts {
		opt(s)
	}
	if !strings.HasSuffix(s.assetsPrefix, "/") {
		s.assetsPrefix += "/"
	}
	return s, nil
}

// Handler returns the full route tree wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/scene", s.handleScene)
	if s.converter != nil {
		mux.HandleFunc("POST /api/convert", s.handleConvert)
	}
	if s.capture != nil {
		mux.HandleFunc("GET /api/capture", s.handleCapture)
	}
	if s.assetsRoot != "" {
		mux.Handle("GET "+s.assetsPrefix, http.StripPrefix(s.assetsPrefix, http.FileServer(http.Dir(s.assetsRoot))))
	}
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)

	return observe.Middleware(s.metrics)(mux)
}

// ListenAndServe starts the HTTP server on addr. When certFile and keyFile
// are both set, the server speaks TLS. Blocks until the server stops.
func (s *Server) ListenAndServe(addr, certFile, keyFile string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("http server listening", "addr", addr, "tls", certFile != "")
	if certFile != "" && keyFile != "" {
		return s.httpSrv.ListenAndServeTLS(certFile, keyFile)
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops a server started with [Server.ListenAndServe].
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type sceneRequest struct {
	Concept string `json:"concept"`
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	var req sceneRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Concept) == "" {
		writeError(w, http.StatusBadRequest, "concept is required")
		return
	}

	res, err := s.scenes.Generate(r.Context(), req.Concept)
	if err != nil {
		s.log.Warn("scene generation failed", "concept", req.Concept, "error", err)
		writeError(w, sceneStatus(err), err.Error())
		return
	}

	s.metrics.RecordSceneResult(r.Context(), string(res.Source))
	writeJSON(w, http.StatusOK, res)
}

// sceneStatus maps orchestrator errors to HTTP status codes.
func sceneStatus(err error) int {
	switch {
	case errors.Is(err, scene.ErrSuperseded):
		// A newer request for this client took over the pipeline.
		return http.StatusConflict
	case errors.Is(err, scene.ErrContentGeneration):
		return http.StatusBadGateway
	case errors.Is(err, scene.ErrNoAsset):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type convertRequest struct {
	Concept  string `json:"concept"`
	ImageURL string `json:"image_url"`
	DataURI  string `json:"data_uri"`
}

type convertResponse struct {
	JobID        string `json:"jobId"`
	ModelURL     string `json:"modelUrl"`
	Format       string `json:"format"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Attempts     int    `json:"attempts"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	in, concept, err := parseConvertRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.converter.Convert(r.Context(), in, concept, nil)
	if err != nil {
		s.log.Warn("conversion failed", "concept", concept, "error", err)
		writeError(w, convertStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, convertResponse{
		JobID:        res.JobID,
		ModelURL:     res.ModelURL,
		Format:       res.Format,
		ThumbnailURL: res.ThumbnailURL,
		Attempts:     res.Attempts,
	})
}

// parseConvertRequest accepts either a multipart upload with an "image" file
// field or a JSON body referencing the image by URL or data URI.
func parseConvertRequest(r *http.Request) (convert.ImageInput, string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return convert.ImageInput{}, "", fmt.Errorf("invalid multipart form: %w", err)
		}
		concept := r.FormValue("concept")

		file, header, err := r.FormFile("image")
		if err == nil {
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
			if err != nil {
				return convert.ImageInput{}, "", fmt.Errorf("reading upload: %w", err)
			}
			return convert.ImageInput{Data: data, MIME: header.Header.Get("Content-Type")}, concept, nil
		}
		if url := r.FormValue("image_url"); url != "" {
			return convert.ImageInput{URL: url}, concept, nil
		}
		return convert.ImageInput{}, "", fmt.Errorf("multipart form needs an image file or image_url field")
	}

	var req convertRequest
	body := http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return convert.ImageInput{}, "", fmt.Errorf("invalid JSON body")
	}
	switch {
	case req.DataURI != "":
		return convert.ImageInput{DataURI: req.DataURI}, req.Concept, nil
	case req.ImageURL != "":
		return convert.ImageInput{URL: req.ImageURL}, req.Concept, nil
	default:
		return convert.ImageInput{}, "", fmt.Errorf("image_url or data_uri is required")
	}
}

// convertStatus maps gateway errors to HTTP status codes. Provider rejections
// are the client's problem (bad image, unsupported content), transport
// failures and timeouts are the upstream's.
func convertStatus(err error) int {
	var je *convert.JobError
	if errors.As(err, &je) {
		switch je.Kind {
		case convert.KindProvider:
			return http.StatusUnprocessableEntity
		case convert.KindTransport:
			return http.StatusBadGateway
		case convert.KindTimeout:
			return http.StatusGatewayTimeout
		}
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
