package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/cutroom/floor-service/internal/api"
	"github.com/cutroom/floor-service/internal/models"
	"github.com/cutroom/floor-service/internal/service"
)

// OperatorHandler handles operator-related requests
type OperatorHandler struct {
	operatorService *service.OperatorService
}

// NewOperatorHandler creates a new operator handler
func NewOperatorHandler(operatorService *service.OperatorService) *OperatorHandler {
	return &OperatorHandler{
		operatorService: operatorService,
	}
}

// ListActive lists active operators, optionally filtered with ?type=
func (h *OperatorHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, r.URL.Query().Get("type"))
}

// ListActiveCutters lists active cutter operators
func (h *OperatorHandler) ListActiveCutters(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, string(models.OperatorCutter))
}

func (h *OperatorHandler) list(w http.ResponseWriter, r *http.Request, opType string) {
	operators, err := h.operatorService.ListActive(r.Context(), opType)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.OK(w, http.StatusOK, operators)
}

// Create adds an operator
func (h *OperatorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.OperatorRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.BadRequest(w, "Invalid request body")
		return
	}

	operator, err := h.operatorService.CreateOperator(r.Context(), req)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.OK(w, http.StatusCreated, operator)
}

// Deactivate removes an operator from the active lists
func (h *OperatorHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		api.BadRequest(w, "Invalid operator ID")
		return
	}

	if err := h.operatorService.DeactivateOperator(r.Context(), id); err != nil {
		api.Error(w, err)
		return
	}

	api.OK(w, http.StatusOK, map[string]int64{"id": id})
}
