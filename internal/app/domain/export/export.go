// Package export turns prediction results into downloadable tables.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/api"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/domain/statistics"
)

// ErrNoRows is returned when there is nothing to export.
var ErrNoRows = errors.New("export: no data to download")

// utf8BOM lets spreadsheet software detect the encoding of accented headers.
const utf8BOM = "\ufeff"

// Table is a header row plus data rows of equal width.
type Table struct {
	Header []string
	Rows   [][]string
}

// RiskLevel labels a probability for the exported tables. Unlike the dashboard
// buckets, 0.7 itself is still "Medio" here.
func RiskLevel(p float64) string {
	switch {
	case p < statistics.MediumRiskThreshold:
		return "Bajo"
	case p <= statistics.HighRiskThreshold:
		return "Medio"
	default:
		return "Alto"
	}
}

func impactLevel(impacto string) string {
	switch impacto {
	case api.ImpactHigh:
		return "Alto"
	case api.ImpactMedium:
		return "Medio"
	default:
		return "Bajo"
	}
}

func predictionLabel(p string) string {
	switch p {
	case api.LabelChurn:
		return "Cancelará"
	case api.LabelNoChurn:
		return "No cancelará"
	default:
		return "Sin predicción"
	}
}

func percent(p float64) string {
	return strconv.Itoa(statistics.Percent(p)) + "%"
}

// FeatureName formats a model feature key for display.
func FeatureName(feature string) string {
	return strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(feature, "_", " ")))
}

// FilteredLogs builds the table offered after an admin filter.
func FilteredLogs(entries []api.LogEntry) Table {
	t := Table{
		Header: []string{"Número", "Error", "Predicción", "Probabilidad", "Nivel de Riesgo", "Fecha de cálculo", "Usuario"},
		Rows:   make([][]string, 0, len(entries)),
	}
	for i, e := range entries {
		errCol := "No error"
		if e.Failed() {
			errCol = "DS no disponible"
		}
		risk := "NA"
		if e.ProbabilidadChurn != 0 {
			risk = RiskLevel(e.ProbabilidadChurn)
		}
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(i + 1),
			errCol,
			predictionLabel(e.Prediccion),
			percent(e.ProbabilidadChurn),
			risk,
			e.Timestamp.UTC().Format(time.DateOnly),
			e.Usuario,
		})
	}
	return t
}

// maxFactors is how many top features the prediction table lists.
const maxFactors = 3

// Predictions builds the table offered after a batch prediction.
func Predictions(preds []api.Prediction) Table {
	header := []string{"Número", "Predicción", "Probabilidad", "Nivel de Riesgo"}
	for i := 1; i <= maxFactors; i++ {
		header = append(header, fmt.Sprintf("Factor_%d", i))
	}
	header = append(header, "Acción Recomendada")

	t := Table{Header: header, Rows: make([][]string, 0, len(preds))}
	for i, p := range preds {
		label, action := "Cancelará", "Contactar cliente"
		if !p.Churn() {
			label, action = "No cancelará", "No requiere acción"
		}
		row := []string{strconv.Itoa(i + 1), label, percent(p.ProbabilidadChurn), RiskLevel(p.ProbabilidadChurn)}
		for f := 0; f < maxFactors; f++ {
			if f < len(p.TopFeatures) {
				tf := p.TopFeatures[f]
				row = append(row, fmt.Sprintf("%s (%s)", FeatureName(tf.Feature), impactLevel(tf.Impacto)))
			} else {
				row = append(row, "")
			}
		}
		t.Rows = append(t.Rows, append(row, action))
	}
	return t
}

// WriteCSV writes t as UTF-8 CSV with a byte order mark.
func WriteCSV(w io.Writer, t Table) error {
	if len(t.Rows) == 0 {
		return ErrNoRows
	}
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("export: write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("export: write rows: %w", err)
	}
	return nil
}

// FilteredFileName names the download of a filter result, stamped with today.
func FilteredFileName(username string, from, to, today time.Time) string {
	who := strings.ToUpper(username)
	if username == api.AllUsers || username == "" {
		who = "TODOS"
	}
	return fmt.Sprintf("%s_%s_%s_%s.csv", who,
		from.Format(time.DateOnly), to.Format(time.DateOnly), today.Format(time.DateOnly))
}

// PredictionsFileName names the download of a batch prediction.
func PredictionsFileName(today time.Time) string {
	return "predicciones_churn_" + today.Format(time.DateOnly) + ".csv"
}
