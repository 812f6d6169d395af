package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)

			// WS ticket requires authentication - user must be logged in to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Reading ingestion and queries
			r.Route("/readings", func(r chi.Router) {
				r.Post("/", s.handleSubmitReading)
				r.Post("/bulk", s.handleSubmitReadingsBulk)
				r.Get("/latest", s.handleLatestReadings)
			})

			// Sensor endpoints
			r.Route("/sensors", func(r chi.Router) {
				r.Get("/", s.handleListSensors)
				r.With(s.requireAdmin).Post("/", s.handleCreateSensor)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetSensor)
					r.With(s.requireAdmin).Patch("/", s.handleUpdateSensor)
					r.With(s.requireAdmin).Delete("/", s.handleDeleteSensor)
					r.Get("/latest", s.handleSensorLatestReading)
					r.Get("/readings", s.handleSensorReadings)
					r.Get("/aggregated", s.handleSensorAggregated)
				})
			})

			// Data center endpoints
			r.Route("/datacenters", func(r chi.Router) {
				r.Get("/", s.handleListDataCenters)
				r.With(s.requireAdmin).Post("/", s.handleCreateDataCenter)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDataCenter)
					r.With(s.requireAdmin).Patch("/", s.handleUpdateDataCenter)
					r.With(s.requireAdmin).Delete("/", s.handleDeleteDataCenter)
					r.Get("/rooms", s.handleListRoomsByDataCenter)
				})
			})

			// Room endpoints
			r.Route("/rooms", func(r chi.Router) {
				r.Get("/", s.handleListRooms)
				r.With(s.requireAdmin).Post("/", s.handleCreateRoom)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetRoom)
					r.With(s.requireAdmin).Patch("/", s.handleUpdateRoom)
					r.With(s.requireAdmin).Delete("/", s.handleDeleteRoom)
					r.Get("/climate", s.handleRoomClimate)
					r.Get("/alerts", s.handleRoomAlerts)
				})
			})

			// Alert endpoints
			r.Route("/alerts", func(r chi.Router) {
				r.Get("/active", s.handleActiveAlerts)
				r.Get("/counts", s.handleAlertCounts)
				r.Get("/{id}", s.handleGetAlert)
				r.With(s.requireOperator).Post("/{id}/acknowledge", s.handleAcknowledgeAlert)
			})

			// AC unit endpoints
			r.Route("/acs", func(r chi.Router) {
				r.Get("/", s.handleListACs)
				r.With(s.requireAdmin).Post("/", s.handleCreateAC)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetAC)
					r.With(s.requireAdmin).Patch("/", s.handleUpdateAC)
					r.With(s.requireAdmin).Delete("/", s.handleDeleteAC)
					r.With(s.requireOperator).Post("/turn-on", s.handleACTurnOn)
					r.With(s.requireOperator).Post("/turn-off", s.handleACTurnOff)
					r.With(s.requireOperator).Post("/ir-record", s.handleStartIRRecording)
					r.Get("/ir-signals", s.handleListIRSignals)
					r.With(s.requireOperator).Put("/ir-signals/{command}", s.handleSaveIRSignal)
					r.Get("/commands", s.handleListCommandLogs)
				})
			})

			// User management (admin only)
			r.Route("/users", func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)
				r.Get("/{id}", s.handleGetUser)
				r.Patch("/{id}", s.handleUpdateUser)
				r.Delete("/{id}", s.handleDeleteUser)
			})

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
