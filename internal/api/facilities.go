package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/thermoguard/thermoguard-core/internal/datacenter"
)

// defaultClimateWindow is how far back room climate averages look when
// the client does not specify a window.
const defaultClimateWindow = 15 * time.Minute

// handleListDataCenters returns all data centers.
func (s *Server) handleListDataCenters(w http.ResponseWriter, r *http.Request) {
	dcs, err := s.facilities.ListDataCenters(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list data centers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"datacenters": dcs, "count": len(dcs)})
}

// handleGetDataCenter returns a single data center by ID.
func (s *Server) handleGetDataCenter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dc, err := s.facilities.GetDataCenter(r.Context(), id)
	if err != nil {
		if errors.Is(err, datacenter.ErrDataCenterNotFound) {
			writeNotFound(w, "data center not found")
			return
		}
		writeInternalError(w, "failed to get data center")
		return
	}
	writeJSON(w, http.StatusOK, dc)
}

// handleCreateDataCenter creates a new data center.
func (s *Server) handleCreateDataCenter(w http.ResponseWriter, r *http.Request) {
	var dc datacenter.DataCenter
	if err := json.NewDecoder(r.Body).Decode(&dc); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if dc.ID == "" {
		dc.ID = uuid.NewString()
	}

	if err := s.facilities.CreateDataCenter(r.Context(), &dc); err != nil {
		if errors.Is(err, datacenter.ErrNameRequired) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		writeInternalError(w, "failed to create data center")
		return
	}
	writeJSON(w, http.StatusCreated, dc)
}

// handleUpdateDataCenter partially updates a data center.
func (s *Server) handleUpdateDataCenter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.facilities.GetDataCenter(r.Context(), id)
	if err != nil {
		if errors.Is(err, datacenter.ErrDataCenterNotFound) {
			writeNotFound(w, "data center not found")
			return
		}
		writeInternalError(w, "failed to get data center")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := s.facilities.UpdateDataCenter(r.Context(), existing); err != nil {
		switch {
		case errors.Is(err, datacenter.ErrDataCenterNotFound):
			writeNotFound(w, "data center not found")
		case errors.Is(err, datacenter.ErrNameRequired):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			writeInternalError(w, "failed to update data center")
		}
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteDataCenter removes a data center and everything in it.
func (s *Server) handleDeleteDataCenter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.facilities.DeleteDataCenter(r.Context(), id); err != nil {
		if errors.Is(err, datacenter.ErrDataCenterNotFound) {
			writeNotFound(w, "data center not found")
			return
		}
		writeInternalError(w, "failed to delete data center")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleListRoomsByDataCenter returns the rooms in one data center.
func (s *Server) handleListRoomsByDataCenter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rooms, err := s.facilities.ListRoomsByDataCenter(r.Context(), id)
	if err != nil {
		writeInternalError(w, "failed to list rooms")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms, "count": len(rooms)})
}

// handleListRooms returns all rooms.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.facilities.ListRooms(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list rooms")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms, "count": len(rooms)})
}

// handleGetRoom returns a single room by ID.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	room, err := s.facilities.GetRoom(r.Context(), id)
	if err != nil {
		if errors.Is(err, datacenter.ErrRoomNotFound) {
			writeNotFound(w, "room not found")
			return
		}
		writeInternalError(w, "failed to get room")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// handleCreateRoom creates a new room.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var room datacenter.Room
	if err := json.NewDecoder(r.Body).Decode(&room); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.OperationMode == "" {
		room.OperationMode = datacenter.ModeManual
	}

	if err := s.facilities.CreateRoom(r.Context(), &room); err != nil {
		switch {
		case errors.Is(err, datacenter.ErrDuplicateRoomName):
			writeConflict(w, "room name already exists in data center")
		case isRoomValidationError(err):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			writeInternalError(w, "failed to create room")
		}
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// handleUpdateRoom partially updates a room. Changing setpoints or the
// operation mode takes effect on the next reading.
func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.facilities.GetRoom(r.Context(), id)
	if err != nil {
		if errors.Is(err, datacenter.ErrRoomNotFound) {
			writeNotFound(w, "room not found")
			return
		}
		writeInternalError(w, "failed to get room")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := s.facilities.UpdateRoom(r.Context(), existing); err != nil {
		switch {
		case errors.Is(err, datacenter.ErrRoomNotFound):
			writeNotFound(w, "room not found")
		case errors.Is(err, datacenter.ErrDuplicateRoomName):
			writeConflict(w, "room name already exists in data center")
		case isRoomValidationError(err):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			writeInternalError(w, "failed to update room")
		}
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteRoom removes a room.
func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.facilities.DeleteRoom(r.Context(), id); err != nil {
		if errors.Is(err, datacenter.ErrRoomNotFound) {
			writeNotFound(w, "room not found")
			return
		}
		writeInternalError(w, "failed to delete room")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleRoomClimate returns recent averaged climate across a room's sensors.
//
// Query parameters:
//   - window_minutes: averaging window (default 15)
func (s *Server) handleRoomClimate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	window := defaultClimateWindow
	if v := r.URL.Query().Get("window_minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "window_minutes must be a positive integer")
			return
		}
		window = time.Duration(n) * time.Minute
	}

	climate, err := s.sensors.RoomAverages(r.Context(), id, window)
	if err != nil {
		writeInternalError(w, "failed to compute room climate")
		return
	}
	writeJSON(w, http.StatusOK, climate)
}

// isRoomValidationError reports whether the error is a room field
// validation failure.
func isRoomValidationError(err error) bool {
	return errors.Is(err, datacenter.ErrNameRequired) ||
		errors.Is(err, datacenter.ErrInvalidTargetTemperature) ||
		errors.Is(err, datacenter.ErrInvalidTargetHumidity) ||
		errors.Is(err, datacenter.ErrInvalidOperationMode)
}
