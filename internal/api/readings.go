package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thermoguard/thermoguard-core/internal/ingest"
	"github.com/thermoguard/thermoguard-core/internal/sensor"
)

// defaultReadingLimit caps per-sensor history queries when the client
// does not specify one.
const defaultReadingLimit = 1000

// handleSubmitReading accepts one sensor reading.
func (s *Server) handleSubmitReading(w http.ResponseWriter, r *http.Request) {
	var sub ingest.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.pipeline.Submit(r.Context(), sub)
	if err != nil {
		writeSubmissionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// bulkRequest is the request body for POST /readings/bulk.
type bulkRequest struct {
	Readings []ingest.Submission `json:"readings"`
}

// bulkItem is the per-reading outcome in a bulk response.
type bulkItem struct {
	Index  int            `json:"index"`
	Result *ingest.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// handleSubmitReadingsBulk accepts a batch of readings. Items are
// processed independently: one bad reading never blocks the rest.
func (s *Server) handleSubmitReadingsBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Readings) == 0 {
		writeBadRequest(w, "readings array is required")
		return
	}

	outcomes := s.pipeline.SubmitBulk(r.Context(), req.Readings)

	items := make([]bulkItem, 0, len(outcomes))
	accepted := 0
	for _, o := range outcomes {
		item := bulkItem{Index: o.Index, Result: o.Result}
		if o.Error != nil {
			item.Error = o.Error.Error()
		} else {
			accepted++
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accepted": accepted,
		"rejected": len(items) - accepted,
		"items":    items,
	})
}

// handleLatestReadings returns the most recent reading per sensor.
func (s *Server) handleLatestReadings(w http.ResponseWriter, r *http.Request) {
	readings, err := s.sensors.LatestReadings(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list latest readings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"readings": readings, "count": len(readings)})
}

// handleSensorLatestReading returns the most recent reading for one sensor.
func (s *Server) handleSensorLatestReading(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	reading, err := s.sensors.LatestReading(r.Context(), id)
	if err != nil {
		if errors.Is(err, sensor.ErrNoReadings) {
			writeNotFound(w, "no readings recorded for sensor")
			return
		}
		writeInternalError(w, "failed to get latest reading")
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

// handleSensorReadings returns raw readings for one sensor.
//
// Query parameters:
//   - since: RFC 3339 lower bound (default: beginning of time)
//   - until: RFC 3339 upper bound (default: now)
//   - limit: maximum rows (default 1000)
func (s *Server) handleSensorReadings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	since, until, ok := parseTimeRange(w, r)
	if !ok {
		return
	}

	limit := defaultReadingLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	readings, err := s.sensors.ListReadings(r.Context(), id, since, until, limit)
	if err != nil {
		writeInternalError(w, "failed to list readings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"readings": readings, "count": len(readings)})
}

// handleSensorAggregated returns hourly aggregates for one sensor.
func (s *Server) handleSensorAggregated(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	since, until, ok := parseTimeRange(w, r)
	if !ok {
		return
	}

	aggregates, err := s.sensors.ListAggregated(r.Context(), id, since, until)
	if err != nil {
		writeInternalError(w, "failed to list aggregated readings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"aggregated": aggregates, "count": len(aggregates)})
}

// parseTimeRange reads the since/until query parameters. On a malformed
// value it writes a 400 response and returns ok=false.
func parseTimeRange(w http.ResponseWriter, r *http.Request) (since, until time.Time, ok bool) {
	until = time.Now().UTC()

	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return since, until, false
		}
		since = t
	}
	if v := r.URL.Query().Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "until must be an RFC 3339 timestamp")
			return since, until, false
		}
		until = t
	}
	return since, until, true
}

// writeSubmissionError maps ingestion failures to HTTP responses.
func writeSubmissionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sensor.ErrSensorNotFound):
		writeNotFound(w, "unknown sensor or device ID")
	case errors.Is(err, sensor.ErrEmptyReading),
		errors.Is(err, sensor.ErrTemperatureOutOfRange),
		errors.Is(err, sensor.ErrHumidityOutOfRange):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		writeInternalError(w, "failed to record reading")
	}
}
