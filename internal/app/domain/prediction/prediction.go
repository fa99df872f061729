package prediction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/api"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/domain"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/domain/export"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/middleware"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/pages"
	"github.com/FACorreiaa/churninsight-dashboard/internal/pkg/cache"
)

// ExportPath serves the CSV of the viewer's last batch prediction.
const ExportPath = "/predict/export.csv"

// MaxUploadSize is the largest batch file accepted.
const MaxUploadSize = 2 << 20

const (
	msgRequired    = "Campo obligatorio"
	msgOutOfRange  = "Valor fuera de rango (%d a %d)"
	msgSelect      = "Debe seleccionar una opción válida"
	msgNoFile      = "Debe cargar un archivo"
	msgNotCSV      = "El archivo debe ser CSV"
	msgTooLarge    = "El archivo no debe superar los 2 MB"
	msgUnavailable = "Predicción no disponible. Intenta más tarde o contacta a soporte"
	msgFailed      = "No se pudo completar la predicción"
	msgNoBatch     = "No hay predicciones para descargar"
)

// unselected is the value of a select left on its placeholder option.
const unselected = "0"

type rangeRule struct {
	field    string
	min, max int
}

var numericRules = []rangeRule{
	{field: "antiguedad", min: 0, max: 120},
	{field: "facturasImpagas", min: 0, max: 10},
	{field: "frecuenciaUso", min: 0, max: 30},
	{field: "ticketsSoporte", min: 0, max: 50},
	{field: "cambiosPlan", min: 0, max: 5},
}

// Predictor scores customers on the backend.
type Predictor interface {
	Predict(ctx context.Context, in api.PredictRequest) (api.Prediction, error)
	BatchPredict(ctx context.Context, filename string, csv io.Reader) ([]api.Prediction, error)
}

type PredictionHandlers struct {
	*domain.BaseHandler
	predictor Predictor
	caches    *cache.CacheManager
	now       func() time.Time
}

func NewPredictionHandlers(predictor Predictor, caches *cache.CacheManager, logger *zap.Logger) *PredictionHandlers {
	return &PredictionHandlers{
		BaseHandler: domain.NewBaseHandler(logger.With(zap.String("component", "prediction"))),
		predictor:   predictor,
		caches:      caches,
		now:         time.Now,
	}
}

func (h *PredictionHandlers) PredictPage(c *gin.Context) {
	h.render(c, http.StatusOK, pages.Predict{})
}

// PredictHandler validates the single prediction form and scores it.
func (h *PredictionHandlers) PredictHandler(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		h.render(c, http.StatusBadRequest, pages.Predict{Error: msgFailed})
		return
	}

	values := make(map[string]string, len(c.Request.PostForm))
	for k := range c.Request.PostForm {
		values[k] = strings.TrimSpace(c.Request.PostForm.Get(k))
	}
	req, errs := ParseForm(values)
	if len(errs) > 0 {
		h.render(c, http.StatusBadRequest, pages.Predict{Values: values, Errors: errs})
		return
	}

	pred, err := h.predictor.Predict(c.Request.Context(), req)
	if err != nil {
		h.fail(c, pages.Predict{Values: values}, err)
		return
	}

	h.Logger.Info("Prediction completed",
		zap.String("prediccion", pred.Prediccion),
		zap.Float64("probabilidad", pred.ProbabilidadChurn))
	h.render(c, http.StatusOK, pages.Predict{Result: &pred})
}

// ParseForm turns submitted fields into a request. Numeric fields must be
// whole numbers within their range; any other field is a select that must
// not be left on its placeholder.
func ParseForm(values map[string]string) (api.PredictRequest, map[string]string) {
	errs := map[string]string{}
	nums := make(map[string]int, len(numericRules))
	for _, r := range numericRules {
		raw := values[r.field]
		if raw == "" {
			errs[r.field] = msgRequired
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < r.min || n > r.max {
			errs[r.field] = fmt.Sprintf(msgOutOfRange, r.min, r.max)
			continue
		}
		nums[r.field] = n
	}

	attrs := map[string]string{}
	for k, v := range values {
		if isNumericField(k) {
			continue
		}
		if v == "" || v == unselected {
			errs[k] = msgSelect
			continue
		}
		attrs[k] = v
	}

	return api.PredictRequest{
		Antiguedad:      nums["antiguedad"],
		FacturasImpagas: nums["facturasImpagas"],
		FrecuenciaUso:   nums["frecuenciaUso"],
		TicketsSoporte:  nums["ticketsSoporte"],
		CambiosPlan:     nums["cambiosPlan"],
		Attributes:      attrs,
	}, errs
}

func isNumericField(name string) bool {
	for _, r := range numericRules {
		if r.field == name {
			return true
		}
	}
	return false
}

// BatchHandler forwards an uploaded CSV and keeps the results for download.
func (h *PredictionHandlers) BatchHandler(c *gin.Context) {
	id, ok := h.Identity(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+64<<10)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.render(c, http.StatusRequestEntityTooLarge, pages.Predict{Errors: map[string]string{"file": msgTooLarge}})
			return
		}
		h.render(c, http.StatusBadRequest, pages.Predict{Errors: map[string]string{"file": msgNoFile}})
		return
	}
	if !isCSV(fh.Filename, fh.Header.Get("Content-Type")) {
		h.render(c, http.StatusBadRequest, pages.Predict{Errors: map[string]string{"file": msgNotCSV}})
		return
	}
	if fh.Size > MaxUploadSize {
		h.render(c, http.StatusRequestEntityTooLarge, pages.Predict{Errors: map[string]string{"file": msgTooLarge}})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.Logger.Error("Failed to open uploaded file", zap.Error(err))
		h.render(c, http.StatusBadRequest, pages.Predict{Errors: map[string]string{"file": msgNoFile}})
		return
	}
	defer f.Close()

	preds, err := h.predictor.BatchPredict(c.Request.Context(), filepath.Base(fh.Filename), f)
	if err != nil {
		h.fail(c, pages.Predict{}, err)
		return
	}

	view := pages.Predict{Batch: preds}
	if key, err := batchKey(id.Username); err == nil {
		h.caches.Batches.Set(key, preds)
		view.ExportURL = ExportPath
	} else {
		h.Logger.Warn("Failed to build batch cache key", zap.Error(err))
	}

	h.Logger.Info("Batch prediction completed",
		zap.String("file", fh.Filename),
		zap.Int("rows", len(preds)))
	h.render(c, http.StatusOK, view)
}

// ExportHandler downloads the viewer's last batch prediction as CSV.
func (h *PredictionHandlers) ExportHandler(c *gin.Context) {
	id, ok := h.Identity(c)
	if !ok {
		return
	}

	key, err := batchKey(id.Username)
	if err != nil {
		h.Logger.Error("Failed to build batch cache key", zap.Error(err))
		c.String(http.StatusInternalServerError, msgFailed)
		return
	}
	preds, ok := h.caches.Batches.Get(key)
	if !ok || len(preds) == 0 {
		c.String(http.StatusNotFound, msgNoBatch)
		return
	}

	name := export.PredictionsFileName(h.now())
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Status(http.StatusOK)
	if err := export.WriteCSV(c.Writer, export.Predictions(preds)); err != nil {
		h.Logger.Error("Failed to write CSV export", zap.Error(err))
		_ = c.Error(err)
	}
}

func (h *PredictionHandlers) render(c *gin.Context, status int, p pages.Predict) {
	h.RenderPage(c, status, "Predicción", "Predicción", pages.PredictPage(p))
}

func (h *PredictionHandlers) fail(c *gin.Context, p pages.Predict, err error) {
	switch {
	case errors.Is(err, api.ErrUnauthenticated):
		target := "/"
		if g, ok := middleware.GetGuard(c); ok {
			target = g.EntryPath()
		}
		middleware.Redirect(c, target)
	case errors.Is(err, api.ErrPredictionUnavailable):
		h.Logger.Warn("Prediction service unavailable")
		p.Error = msgUnavailable
		h.render(c, http.StatusServiceUnavailable, p)
	default:
		h.Logger.Error("Prediction request failed", zap.Error(err))
		p.Error = msgFailed
		h.render(c, http.StatusBadGateway, p)
	}
}

func isCSV(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "text/csv"
}

func batchKey(viewer string) (string, error) {
	return cache.NewCacheKeyBuilder().AddViewer(viewer).Add("batch", "last").Build()
}
