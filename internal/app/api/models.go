package api

import (
	"encoding/json"
	"time"
)

// Credentials is the login payload.
type Credentials struct {
	Usuario  string `json:"usuario"`
	Password string `json:"password"`
}

// Registration is the sign-up payload.
type Registration struct {
	Usuario  string `json:"usuario"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token issued by the backend.
type LoginResponse struct {
	Token string `json:"token"`
}

// User is one row of the user listing.
type User struct {
	Usuario string `json:"usuario"`
	Email   string `json:"email,omitempty"`
}

// Metrics are the aggregated dashboard figures. The backend computes them for
// the unfiltered views; statistics.Compute derives the same shape from log
// entries for filtered views.
type Metrics struct {
	TotalPredicciones         int     `json:"totalPredicciones"`
	FechaPrimerPrediccion     *string `json:"fechaPrimerPrediccion"`
	ProbabilidadChurnPromedio float64 `json:"probabilidadChurnPromedio"`
	ValorMinimoProbabilidad   float64 `json:"valorMinimoProbabilidad"`
	ValorMaximoProbabilidad   float64 `json:"valorMaximoProbabilidad"`
	TotalCancelara            int     `json:"totalCancelara"`
	TotalNoCancelara          int     `json:"totalNoCancelara"`
	TotalErrorPrediccion      int     `json:"totalErrorPrediccion"`
	TotalRiesgoAlto           int     `json:"totalRiesgoAlto"`
	TotalRiesgoMedio          int     `json:"totalRiesgoMedio"`
	TotalRiesgoBajo           int     `json:"totalRiesgoBajo"`
}

// Prediction labels returned by the model.
const (
	LabelChurn   = "cancelara"
	LabelNoChurn = "no_cancelara"
)

// LogEntry is one persisted prediction as returned by the filter endpoints.
type LogEntry struct {
	Prediccion        string    `json:"prediccion"`
	ProbabilidadChurn float64   `json:"probabilidadChurn"`
	ErrorMessage      *string   `json:"errorMessage"`
	Timestamp         time.Time `json:"timestamp"`
	Usuario           string    `json:"usuario"`
}

// Failed reports whether the backend stored an error instead of a prediction.
func (e LogEntry) Failed() bool {
	return e.ErrorMessage != nil
}

// Feature impact levels.
const (
	ImpactHigh   = "alto_riesgo"
	ImpactMedium = "medio_riesgo"
)

// Feature is one contributing factor of a prediction.
type Feature struct {
	Feature string `json:"feature"`
	Impacto string `json:"impacto"`
}

// Prediction is the model output for one customer.
type Prediction struct {
	Prediccion        string    `json:"prediccion"`
	ProbabilidadChurn float64   `json:"probabilidadChurn"`
	TopFeatures       []Feature `json:"topFeatures"`
}

// Churn reports whether the customer is predicted to cancel.
func (p Prediction) Churn() bool {
	return p.Prediccion != LabelNoChurn
}

// PredictRequest holds the customer attributes sent for a single prediction.
// Attributes carries the categorical fields of the form verbatim.
type PredictRequest struct {
	Antiguedad      int
	FacturasImpagas int
	FrecuenciaUso   int
	TicketsSoporte  int
	CambiosPlan     int
	Attributes      map[string]string
}

// MarshalJSON flattens the categorical attributes next to the numeric ones.
func (r PredictRequest) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Attributes)+5)
	for k, v := range r.Attributes {
		m[k] = v
	}
	m["antiguedad"] = r.Antiguedad
	m["facturasImpagas"] = r.FacturasImpagas
	m["frecuenciaUso"] = r.FrecuenciaUso
	m["ticketsSoporte"] = r.TicketsSoporte
	m["cambiosPlan"] = r.CambiosPlan
	return json.Marshal(m)
}

type dateRange struct {
	FechaDesde string `json:"fechaDesde"`
	FechaHasta string `json:"fechaHasta"`
}
