package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/factory-data-core/internal/factorydata"
)

// handleUpdateVehicle applies a metadata patch to the newest record with
// the VIN and mirrors it to SWM.
func (s *Server) handleUpdateVehicle(w http.ResponseWriter, r *http.Request) {
	var patch factorydata.VehiclePatch
	if err := decodeBody(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.service.UpdateVehicle(r.Context(), chi.URLParam(r, "vin"), patch, actorFrom(r))
	s.writeResult(w, r, http.StatusOK, result, err)
}

// handleDeleteVehicle decommissions the vehicle locally and deletes it from
// SWM. The record is kept; its state becomes DECOMMISSIONED.
func (s *Server) handleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.DeleteVehicle(r.Context(), chi.URLParam(r, "vin"), actorFrom(r))
	s.writeResult(w, r, http.StatusOK, result, err)
}
