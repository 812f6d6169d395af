package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/thermoguard/thermoguard-core/internal/sensor"
)

// handleListSensors returns all sensors, optionally filtered by room.
func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if roomID := r.URL.Query().Get("room_id"); roomID != "" {
		sensors, err := s.sensors.ListSensorsByRoom(ctx, roomID)
		if err != nil {
			writeInternalError(w, "failed to list sensors")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sensors": sensors, "count": len(sensors)})
		return
	}

	sensors, err := s.sensors.ListSensors(ctx)
	if err != nil {
		writeInternalError(w, "failed to list sensors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sensors": sensors, "count": len(sensors)})
}

// handleGetSensor returns a single sensor by ID.
func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sens, err := s.sensors.GetSensor(r.Context(), id)
	if err != nil {
		if errors.Is(err, sensor.ErrSensorNotFound) {
			writeNotFound(w, "sensor not found")
			return
		}
		writeInternalError(w, "failed to get sensor")
		return
	}
	writeJSON(w, http.StatusOK, sens)
}

// handleCreateSensor registers a new sensor.
func (s *Server) handleCreateSensor(w http.ResponseWriter, r *http.Request) {
	var sens sensor.Sensor
	if err := json.NewDecoder(r.Body).Decode(&sens); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if sens.ID == "" {
		sens.ID = uuid.NewString()
	}

	if err := s.sensors.CreateSensor(r.Context(), &sens); err != nil {
		switch {
		case errors.Is(err, sensor.ErrDuplicateDeviceID):
			writeConflict(w, "device ID already registered")
		case isSensorValidationError(err):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			writeInternalError(w, "failed to create sensor")
		}
		return
	}

	writeJSON(w, http.StatusCreated, sens)
}

// handleUpdateSensor partially updates a sensor.
func (s *Server) handleUpdateSensor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.sensors.GetSensor(r.Context(), id)
	if err != nil {
		if errors.Is(err, sensor.ErrSensorNotFound) {
			writeNotFound(w, "sensor not found")
			return
		}
		writeInternalError(w, "failed to get sensor")
		return
	}

	// Decode partial update onto existing sensor
	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := s.sensors.UpdateSensor(r.Context(), existing); err != nil {
		switch {
		case errors.Is(err, sensor.ErrSensorNotFound):
			writeNotFound(w, "sensor not found")
		case errors.Is(err, sensor.ErrDuplicateDeviceID):
			writeConflict(w, "device ID already registered")
		case isSensorValidationError(err):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			writeInternalError(w, "failed to update sensor")
		}
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteSensor removes a sensor and its readings.
func (s *Server) handleDeleteSensor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.sensors.DeleteSensor(r.Context(), id); err != nil {
		if errors.Is(err, sensor.ErrSensorNotFound) {
			writeNotFound(w, "sensor not found")
			return
		}
		writeInternalError(w, "failed to delete sensor")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// isSensorValidationError reports whether the error is a sensor field
// validation failure.
func isSensorValidationError(err error) bool {
	return errors.Is(err, sensor.ErrNameRequired) ||
		errors.Is(err, sensor.ErrDeviceIDRequired) ||
		errors.Is(err, sensor.ErrInvalidType)
}
