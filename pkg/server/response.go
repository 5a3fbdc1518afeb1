package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"telescope/pkg/client"
	"telescope/pkg/control"
	"telescope/pkg/telescope"
)

// Global transaction counter
var txCounter atomic.Int32

type baseResponse struct {
	ClientTransactionID int    `json:"ClientTransactionID"`
	ServerTransactionID int    `json:"ServerTransactionID"`
	ErrorNumber         int    `json:"ErrorNumber"`
	ErrorMessage        string `json:"ErrorMessage"`
	Value               any    `json:"Value,omitempty"`
}

// clientTxID returns the ClientTransactionID sent with the request, matched
// case-insensitively in the query or a form-encoded body. It is optional.
func clientTxID(r *http.Request) int {
	if err := r.ParseForm(); err != nil {
		return 0
	}
	for param, value := range r.Form {
		if strings.EqualFold(param, "clienttransactionid") {
			id, err := strconv.Atoi(value[0])
			if err != nil || id < 0 {
				return 0
			}
			return id
		}
	}
	return 0
}

func handleResponse(w http.ResponseWriter, r *http.Request, value any) {
	response := baseResponse{
		ServerTransactionID: int(txCounter.Add(1)),
		ClientTransactionID: clientTxID(r),
		Value:               value,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func handleError(w http.ResponseWriter, r *http.Request, code int, message string) {
	response := baseResponse{
		ServerTransactionID: int(txCounter.Add(1)),
		ClientTransactionID: clientTxID(r),
		ErrorNumber:         code,
		ErrorMessage:        message,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// errorCode maps an error from the control layer to the HTTP status used
// as ErrorNumber.
func errorCode(err error) int {
	switch {
	case errors.Is(err, telescope.ErrInvalidSlot),
		errors.Is(err, telescope.ErrInvalidPort),
		errors.Is(err, telescope.ErrInvalidDelay),
		errors.Is(err, telescope.ErrInvalidName),
		errors.Is(err, telescope.ErrInvalidKind),
		errors.Is(err, telescope.ErrInvalidEquinox),
		errors.Is(err, telescope.ErrMissingField),
		errors.Is(err, control.ErrInvalidPosition):
		return http.StatusBadRequest
	case errors.Is(err, control.ErrNoDescriptor), errors.Is(err, control.ErrNoClient):
		return http.StatusNotFound
	case errors.Is(err, control.ErrSlotBusy), errors.Is(err, client.ErrNotConnected):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func handleControlError(w http.ResponseWriter, r *http.Request, err error) {
	handleError(w, r, errorCode(err), err.Error())
}
