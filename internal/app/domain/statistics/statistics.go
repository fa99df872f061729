package statistics

import (
	"math"
	"sort"
	"time"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/api"
)

// Risk thresholds on churn probability.
const (
	HighRiskThreshold   = 0.7
	MediumRiskThreshold = 0.3
)

// Compute derives the dashboard figures from raw prediction log entries.
// Failed entries count towards the totals and the error count only.
func Compute(entries []api.LogEntry) api.Metrics {
	var m api.Metrics
	if len(entries) == 0 {
		return m
	}

	m.TotalPredicciones = len(entries)
	m.FechaPrimerPrediccion = firstTimestamp(entries)

	var sum float64
	ok := 0
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, e := range entries {
		if e.Failed() {
			m.TotalErrorPrediccion++
			continue
		}
		ok++
		p := e.ProbabilidadChurn
		sum += p
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)

		switch e.Prediccion {
		case api.LabelChurn:
			m.TotalCancelara++
		case api.LabelNoChurn:
			m.TotalNoCancelara++
		}

		switch {
		case p >= HighRiskThreshold:
			m.TotalRiesgoAlto++
		case p >= MediumRiskThreshold:
			m.TotalRiesgoMedio++
		default:
			m.TotalRiesgoBajo++
		}
	}

	if ok > 0 {
		m.ProbabilidadChurnPromedio = round4(sum / float64(ok))
		m.ValorMinimoProbabilidad = round4(lo)
		m.ValorMaximoProbabilidad = round4(hi)
	}
	return m
}

func firstTimestamp(entries []api.LogEntry) *string {
	sorted := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		if !e.Timestamp.IsZero() {
			sorted = append(sorted, e.Timestamp)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	s := sorted[0].UTC().Format(time.RFC3339)
	return &s
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Percent renders a probability as a whole percentage.
func Percent(p float64) int {
	return int(math.Round(p * 100))
}
