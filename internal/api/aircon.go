package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/thermoguard/thermoguard-core/internal/aircon"
)

// defaultCommandLogLimit caps per-unit command history queries.
const defaultCommandLogLimit = 100

// handleListACs returns all AC units, optionally filtered by room.
func (s *Server) handleListACs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if roomID := r.URL.Query().Get("room_id"); roomID != "" {
		units, err := s.acs.ListACsByRoom(ctx, roomID)
		if err != nil {
			writeInternalError(w, "failed to list AC units")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"acs": units, "count": len(units)})
		return
	}

	units, err := s.acs.ListACs(ctx)
	if err != nil {
		writeInternalError(w, "failed to list AC units")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"acs": units, "count": len(units)})
}

// handleGetAC returns a single AC unit by ID.
func (s *Server) handleGetAC(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ac, err := s.acs.GetAC(r.Context(), id)
	if err != nil {
		if errors.Is(err, aircon.ErrACNotFound) {
			writeNotFound(w, "AC unit not found")
			return
		}
		writeInternalError(w, "failed to get AC unit")
		return
	}
	writeJSON(w, http.StatusOK, ac)
}

// handleCreateAC registers a new AC unit. Units start active; decoding
// into the struct with a prefilled flag lets the body opt out.
func (s *Server) handleCreateAC(w http.ResponseWriter, r *http.Request) {
	ac := aircon.AirConditioner{IsActive: true}
	if err := json.NewDecoder(r.Body).Decode(&ac); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if ac.ID == "" {
		ac.ID = uuid.NewString()
	}
	if ac.Status == "" {
		ac.Status = aircon.StatusOff
	}

	if err := s.acs.CreateAC(r.Context(), &ac); err != nil {
		if isACValidationError(err) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		writeInternalError(w, "failed to create AC unit")
		return
	}
	writeJSON(w, http.StatusCreated, ac)
}

// handleUpdateAC partially updates an AC unit.
func (s *Server) handleUpdateAC(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.acs.GetAC(r.Context(), id)
	if err != nil {
		if errors.Is(err, aircon.ErrACNotFound) {
			writeNotFound(w, "AC unit not found")
			return
		}
		writeInternalError(w, "failed to get AC unit")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := s.acs.UpdateAC(r.Context(), existing); err != nil {
		switch {
		case errors.Is(err, aircon.ErrACNotFound):
			writeNotFound(w, "AC unit not found")
		case isACValidationError(err):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			writeInternalError(w, "failed to update AC unit")
		}
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteAC removes an AC unit and its recorded IR signals.
func (s *Server) handleDeleteAC(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.acs.DeleteAC(r.Context(), id); err != nil {
		if errors.Is(err, aircon.ErrACNotFound) {
			writeNotFound(w, "AC unit not found")
			return
		}
		writeInternalError(w, "failed to delete AC unit")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleACTurnOn dispatches a turn_on command on behalf of the caller.
func (s *Server) handleACTurnOn(w http.ResponseWriter, r *http.Request) {
	s.executeACCommand(w, r, aircon.CommandTurnOn)
}

// handleACTurnOff dispatches a turn_off command on behalf of the caller.
func (s *Server) handleACTurnOff(w http.ResponseWriter, r *http.Request) {
	s.executeACCommand(w, r, aircon.CommandTurnOff)
}

// executeACCommand runs one actuation command and maps the outcome.
// A failed dispatch returns 502: the core is healthy, the transmitter
// or unit is not.
func (s *Server) executeACCommand(w http.ResponseWriter, r *http.Request, command aircon.Command) {
	id := chi.URLParam(r, "id")

	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "authentication required")
		return
	}

	ac, err := s.control.Execute(r.Context(), id, command, aircon.UserActor(claims.Username))
	if err != nil {
		switch {
		case errors.Is(err, aircon.ErrACNotFound):
			writeNotFound(w, "AC unit not found")
		case errors.Is(err, aircon.ErrInvalidCommand):
			writeBadRequest(w, "unknown command")
		case errors.Is(err, aircon.ErrCommandFailed):
			writeError(w, http.StatusBadGateway, ErrCodeCommandFailed, "command was not acknowledged by the transmitter")
		default:
			writeInternalError(w, "failed to execute command")
		}
		return
	}
	writeJSON(w, http.StatusOK, ac)
}

// irRecordRequest is the request body for POST /acs/{id}/ir-record.
type irRecordRequest struct {
	Command aircon.Command `json:"command"`
}

// handleStartIRRecording puts the unit's transmitter into capture mode
// for one command. The captured code arrives asynchronously over MQTT.
func (s *Server) handleStartIRRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req irRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.control.StartIRRecording(r.Context(), id, req.Command); err != nil {
		switch {
		case errors.Is(err, aircon.ErrACNotFound):
			writeNotFound(w, "AC unit not found")
		case errors.Is(err, aircon.ErrInvalidCommand):
			writeBadRequest(w, "command must be turn_on or turn_off")
		default:
			writeInternalError(w, "failed to start IR recording")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recording"})
}

// handleListIRSignals returns the recorded IR codes for one unit.
func (s *Server) handleListIRSignals(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	signals, err := s.acs.ListIRSignals(r.Context(), id)
	if err != nil {
		writeInternalError(w, "failed to list IR signals")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signals": signals, "count": len(signals)})
}

// irSignalRequest is the request body for PUT /acs/{id}/ir-signals/{command}.
type irSignalRequest struct {
	SignalData string `json:"signal_data"`
}

// handleSaveIRSignal stores a captured IR code directly, replacing any
// previous code for the (unit, command) pair. Used when codes are
// captured out of band rather than through the recording flow.
func (s *Server) handleSaveIRSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	command := aircon.Command(chi.URLParam(r, "command"))

	var req irSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	sig, err := s.control.RecordIRSignal(r.Context(), id, command, req.SignalData)
	if err != nil {
		switch {
		case errors.Is(err, aircon.ErrACNotFound):
			writeNotFound(w, "AC unit not found")
		case errors.Is(err, aircon.ErrInvalidCommand):
			writeBadRequest(w, "command must be turn_on or turn_off")
		case errors.Is(err, aircon.ErrSignalDataRequired):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			writeInternalError(w, "failed to save IR signal")
		}
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

// handleListCommandLogs returns the command audit trail for one unit,
// newest first.
func (s *Server) handleListCommandLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := defaultCommandLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	logs, err := s.acs.ListCommandLogs(r.Context(), id, limit)
	if err != nil {
		writeInternalError(w, "failed to list command logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": logs, "count": len(logs)})
}

// isACValidationError reports whether the error is an AC field
// validation failure.
func isACValidationError(err error) bool {
	return errors.Is(err, aircon.ErrNameRequired) ||
		errors.Is(err, aircon.ErrTransmitterRequired) ||
		errors.Is(err, aircon.ErrInvalidStatus)
}
