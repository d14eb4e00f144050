package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/cutroom/floor-service/internal/api"
	"github.com/cutroom/floor-service/internal/models"
	"github.com/cutroom/floor-service/internal/service"
)

// MattressHandler handles mattress-related requests
type MattressHandler struct {
	mattressService *service.MattressService
}

// NewMattressHandler creates a new mattress handler
func NewMattressHandler(mattressService *service.MattressService) *MattressHandler {
	return &MattressHandler{
		mattressService: mattressService,
	}
}

// Kanban lists the mattresses of a day
func (h *MattressHandler) Kanban(w http.ResponseWriter, r *http.Request) {
	mattresses, err := h.mattressService.Kanban(r.Context(), r.URL.Query().Get("day"))
	if err != nil {
		api.Error(w, err)
		return
	}

	api.OK(w, http.StatusOK, mattresses)
}

// CutterQueue lists the mattresses a cutter can see
func (h *MattressHandler) CutterQueue(w http.ResponseWriter, r *http.Request) {
	device := r.URL.Query().Get("device")
	if device == "" {
		api.BadRequest(w, "device is required")
		return
	}

	mattresses, err := h.mattressService.CutterQueue(r.Context(), device)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.OK(w, http.StatusOK, mattresses)
}

// Create enqueues a new mattress
func (h *MattressHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.MattressRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.BadRequest(w, "Invalid request body")
		return
	}

	mattress, err := h.mattressService.CreateMattress(r.Context(), req)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.OK(w, http.StatusCreated, mattress)
}

// UpdateStatus moves a mattress to its next status
func (h *MattressHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := mattressID(w, r)
	if !ok {
		return
	}

	var req models.StatusUpdateRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.BadRequest(w, "Invalid request body")
		return
	}

	mattress, err := h.mattressService.UpdateStatus(r.Context(), id, req)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.OK(w, http.StatusOK, mattress)
}

// UpdateLayersA records the actual spread layer count
func (h *MattressHandler) UpdateLayersA(w http.ResponseWriter, r *http.Request) {
	id, ok := mattressID(w, r)
	if !ok {
		return
	}

	var req models.LayersUpdateRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.BadRequest(w, "Invalid request body")
		return
	}

	mattress, err := h.mattressService.UpdateLayersA(r.Context(), id, req.LayersA)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.OK(w, http.StatusOK, mattress)
}

// FinishSpreading writes the finishing status and actual layers together
func (h *MattressHandler) FinishSpreading(w http.ResponseWriter, r *http.Request) {
	id, ok := mattressID(w, r)
	if !ok {
		return
	}

	var req models.FinishSpreadingRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.BadRequest(w, "Invalid request body")
		return
	}

	mattress, err := h.mattressService.FinishSpreading(r.Context(), id, req)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.OK(w, http.StatusOK, mattress)
}

// History lists the status changes of a mattress
func (h *MattressHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := mattressID(w, r)
	if !ok {
		return
	}

	entries, err := h.mattressService.History(r.Context(), id)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.OK(w, http.StatusOK, entries)
}

func mattressID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		api.BadRequest(w, "Invalid mattress ID")
		return 0, false
	}
	return id, true
}
