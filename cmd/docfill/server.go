package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/benjaminschreck/go-docfill/pkg/docfill"
)

const shutdownTimeout = 10 * time.Second

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves the generation API:
  GET  /health              liveness check
  GET  /api/test            endpoint list
  GET  /api/templates       templates in the template directory
  POST /api/generate        fill a template (multipart: template, data, tableData)
  POST /api/generate-large  insert a synthesized table (multipart: template, rows)
  POST /api/landscape       fill a template and force landscape (multipart: template, data)
  GET  /downloads/{name}    download a generated file`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gen, err := docfill.NewGenerator(cfg, docfill.WithLogger(logger))
		if err != nil {
			return err
		}
		lib := docfill.NewTemplateLibrary(cfg.TemplateDir, cfg.Cache)
		return serve(cmd.Context(), cfg, newServer(cfg, gen, lib, logger))
	},
}

func serve(ctx context.Context, cfg *docfill.Config, s *server) error {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("output_dir", cfg.OutputDir),
			zap.String("template_dir", cfg.TemplateDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type server struct {
	cfg    *docfill.Config
	gen    *docfill.Generator
	lib    *docfill.TemplateLibrary
	logger *zap.Logger
}

func newServer(cfg *docfill.Config, gen *docfill.Generator, lib *docfill.TemplateLibrary, logger *zap.Logger) *server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &server{cfg: cfg, gen: gen, lib: lib, logger: logger}
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/test", s.handleTest).Methods(http.MethodGet)
	r.HandleFunc("/api/templates", s.handleTemplates).Methods(http.MethodGet)
	r.HandleFunc("/api/generate", s.handleGenerate).Methods(http.MethodPost)
	r.HandleFunc("/api/generate-large", s.handleGenerateLarge).Methods(http.MethodPost)
	r.HandleFunc("/api/landscape", s.handleLandscape).Methods(http.MethodPost)
	r.HandleFunc("/downloads/{name}", s.handleDownload).Methods(http.MethodGet, http.MethodHead)
	return r
}

type generateResponse struct {
	Success  bool   `json:"success"`
	WordURL  string `json:"wordUrl"`
	PDFURL   string `json:"pdfUrl,omitempty"`
	Message  string `json:"message"`
	PDFError string `json:"pdfError,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"message":   "server is running",
	})
}

func (s *server) handleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "API is running",
		"endpoints": []string{
			"/api/generate - fill a template",
			"/api/generate-large - insert a large table",
			"/api/landscape - landscape orientation",
		},
	})
}

func (s *server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	names, err := s.lib.List()
	if err != nil {
		s.fail(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": names})
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.template(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}
	fields, err := docfill.ParseFields([]byte(r.FormValue("data")))
	if err != nil {
		s.fail(w, err)
		return
	}
	rows, err := docfill.ParseRows([]byte(r.FormValue("tableData")))
	if err != nil {
		s.fail(w, err)
		return
	}

	res, err := s.gen.Generate(r.Context(), tmpl, fields, rows)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.succeed(w, res)
}

func (s *server) handleGenerateLarge(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.template(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}
	rows, err := strconv.Atoi(r.FormValue("rows"))
	if err != nil || rows <= 0 {
		rows = s.cfg.DefaultLargeRows
	}

	res, err := s.gen.GenerateLarge(r.Context(), tmpl, rows)
	if err != nil {
		s.fail(w, err)
		return
	}
	res.Message = fmt.Sprintf("%s (%d rows)", res.Message, rows)
	s.succeed(w, res)
}

func (s *server) handleLandscape(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.template(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}
	fields, err := docfill.ParseFields([]byte(r.FormValue("data")))
	if err != nil {
		s.fail(w, err)
		return
	}

	res, err := s.gen.GenerateLandscape(r.Context(), tmpl, fields)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.succeed(w, res)
}

func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	path, err := s.gen.Store().Open(name)
	if err != nil {
		s.fail(w, err)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		s.fail(w, docfill.NewDocumentError("open", name, err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.fail(w, docfill.NewDocumentError("stat", name, err))
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// template reads the uploaded "template" file, or loads the template named
// by the "templateName" field.
func (s *server) template(w http.ResponseWriter, r *http.Request) (*docfill.Package, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.Server.MaxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, &docfill.InputError{Field: "template", Message: err.Error()}
	}

	file, header, err := r.FormFile("template")
	switch {
	case err == nil:
		defer file.Close()
		if !docfill.IsTemplateFile(header.Filename) {
			return nil, &docfill.InputError{Field: "template", Message: "only .docx and .dotx files are accepted"}
		}
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, &docfill.InputError{Field: "template", Message: err.Error()}
		}
		s.logger.Debug("template uploaded", zap.String("filename", header.Filename), zap.Int("size", len(data)))
		return docfill.Load(data)

	case errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart):
		if name := r.FormValue("templateName"); name != "" {
			return s.lib.Load(name)
		}
		return nil, &docfill.InputError{Field: "template", Message: "no template file uploaded"}

	default:
		return nil, &docfill.InputError{Field: "template", Message: err.Error()}
	}
}

func (s *server) succeed(w http.ResponseWriter, res *docfill.Result) {
	resp := generateResponse{
		Success: true,
		WordURL: "/downloads/" + res.Document.Name,
		Message: res.Message,
	}
	if res.Portable != nil {
		resp.PDFURL = "/downloads/" + res.Portable.Name
	}
	if res.PortableErr != nil {
		resp.PDFError = res.PortableErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) fail(w http.ResponseWriter, err error) {
	kind := docfill.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
	} else {
		s.logger.Info("request rejected", zap.String("kind", string(kind)), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Success: false, Kind: string(kind), Error: err.Error()})
}

func statusFor(kind docfill.Kind) int {
	switch kind {
	case docfill.KindInvalidInput:
		return http.StatusBadRequest
	case docfill.KindMissingEntry:
		return http.StatusNotFound
	case docfill.KindCorruptArchive, docfill.KindTemplateSyntax:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
