package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/cutroom/floor-service/internal/service"
)

// Envelope is the body of every mattress and operator response
type Envelope struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data,omitempty"`
	Message  string      `json:"message,omitempty"`
	Conflict bool        `json:"conflict,omitempty"`
	// CurrentStatus is set on conflicts so the client can show the real state
	CurrentStatus string `json:"current_status,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("error encoding response: %v", err)
		}
	}
}

// OK writes a successful envelope
func OK(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, Envelope{Success: true, Data: data})
}

// Fail writes a failed envelope
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Message: message})
}

func BadRequest(w http.ResponseWriter, message string) {
	Fail(w, http.StatusBadRequest, message)
}

// Error maps a service error onto a status code and envelope
func Error(w http.ResponseWriter, err error) {
	var conflict *service.ConflictError
	switch {
	case errors.As(err, &conflict):
		JSON(w, http.StatusConflict, Envelope{
			Success:       false,
			Conflict:      true,
			Message:       "Mattress status was changed by another device, please refresh",
			CurrentStatus: string(conflict.Current),
		})
	case errors.Is(err, service.ErrConflict):
		JSON(w, http.StatusConflict, Envelope{Success: false, Conflict: true, Message: err.Error()})
	case errors.Is(err, service.ErrNotFound):
		Fail(w, http.StatusNotFound, "Not found")
	case errors.Is(err, service.ErrActiveJobExists):
		Fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrInvalidLayers),
		errors.Is(err, service.ErrValidation):
		Fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInactiveUser):
		Fail(w, http.StatusUnauthorized, err.Error())
	default:
		log.Printf("internal error: %v", err)
		Fail(w, http.StatusInternalServerError, "Internal server error")
	}
}

// DecodeJSON decodes a JSON request body into the given target.
func DecodeJSON(r *http.Request, target interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}
