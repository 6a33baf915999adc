package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
)

type envelope struct {
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
	Success bool       `json:"success"`
}

type errorBody struct {
	Fields  map[string]string `json:"fields,omitempty"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
}

type messageData struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, e *Error) {
	writeJSON(w, e.Status, envelope{Error: &errorBody{
		Code:    e.Code,
		Message: e.Message,
		Fields:  e.Fields,
	}})
}

// decodeJSON reads a JSON object body into v.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBadRequest("Request body too large")
		}
		return errBadRequest("Unable to read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errBadRequest("No JSON body provided")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errBadRequest("Invalid JSON body")
	}
	return nil
}

// id accepts a positive integer given as a JSON number or a numeric string.
type id int64

func (i *id) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		data = []byte(s)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*i = id(n)
	return nil
}
