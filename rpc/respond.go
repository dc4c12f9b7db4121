package rpc

import (
	"encoding/json"
	"net/http"

	"defiledger/native/common"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps the engine error taxonomy onto HTTP statuses: validation
// errors are bad requests, authorization failures are forbidden, state
// conflicts map to 409, failed external transfers surface as bad gateway and
// range violations as unprocessable.
func writeError(w http.ResponseWriter, err error) {
	kind := common.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case common.KindValidation:
		status = http.StatusBadRequest
	case common.KindAuthorization:
		status = http.StatusForbidden
	case common.KindState:
		status = http.StatusConflict
	case common.KindTransfer:
		status = http.StatusBadGateway
	case common.KindOverflow:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind.String()})
}
