package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "calheat/internal/errors"
	mw "calheat/internal/middleware"
	"calheat/internal/pipeline"
	"calheat/internal/services"
)

// uploadField is the multipart field carrying the uploaded file
const uploadField = "file"

// HeatmapHandler handles the upload, process and download steps
type HeatmapHandler struct {
	service      HeatmapServiceInterface
	validator    *mw.Validator
	errorHandler *apierrors.ErrorHandler
	maxUpload    int64
	logger       *slog.Logger
}

// NewHeatmapHandler creates a heatmap handler. maxUpload bounds the size of
// an uploaded file in bytes.
func NewHeatmapHandler(service HeatmapServiceInterface, validator *mw.Validator, errorHandler *apierrors.ErrorHandler, maxUpload int64, logger *slog.Logger) *HeatmapHandler {
	return &HeatmapHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		maxUpload:    maxUpload,
		logger:       logger.With(slog.String("component", "heatmap_handler")),
	}
}

// Routes returns the heatmap routes
func (h *HeatmapHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/upload", h.Upload)
	r.Get("/columns", h.Columns)
	r.With(mw.ContentTypeValidator(h.errorHandler, "application/json")).Post("/process", h.Process)
	r.Get("/download", h.Download)

	return r
}

// Upload handles POST /api/upload
func (h *HeatmapHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Leave room for the multipart envelope around the file
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewMissingInputError(pipeline.MsgMissingInput))
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusRequestEntityTooLarge,
			"PAYLOAD_TOO_LARGE",
			fmt.Sprintf("%s exceeds the maximum upload size", header.Filename),
			map[string]interface{}{"max_bytes": h.maxUpload, "size": header.Size},
		))
		return
	}

	h.logger.InfoContext(ctx, "receiving upload",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size),
	)

	summary, err := h.service.Upload(ctx, header.Filename, file)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summary,
	})
}

// Columns handles GET /api/columns
func (h *HeatmapHandler) Columns(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Current()
	if err != nil {
		if errors.Is(err, services.ErrNoUpload) {
			h.errorHandler.HandleError(w, r, apierrors.ErrNoUpload)
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summary,
		"count":  len(summary.Columns),
	})
}

// Process handles POST /api/process
func (h *HeatmapHandler) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req services.ProcessRequest
	if err := h.validator.DecodeAndValidate(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "processing upload",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("column", req.Column),
	)

	result, err := h.service.Process(ctx, req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// Download handles GET /api/download
func (h *HeatmapHandler) Download(w http.ResponseWriter, r *http.Request) {
	artifact, err := h.service.Download(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrNoRenderedPlot) {
			h.errorHandler.HandleError(w, r, apierrors.ErrNoRenderedPlot)
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer artifact.File.Close()

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Name))
	http.ServeContent(w, r, artifact.Name, artifact.ModTime, artifact.File)
}
