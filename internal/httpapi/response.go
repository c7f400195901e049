package httpapi

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respond sends a {success:true,...} envelope merged with extra fields.
func respond(w http.ResponseWriter, status int, extra map[string]any) {
	payload := map[string]any{"success": true}
	for k, v := range extra {
		payload[k] = v
	}
	writeJSON(w, status, payload)
}

func respondData(w http.ResponseWriter, data any) {
	respond(w, http.StatusOK, map[string]any{"data": data})
}

func respondMessage(w http.ResponseWriter, message string) {
	respond(w, http.StatusOK, map[string]any{"message": message})
}

// fail sends a {success:false,message} envelope for business and auth errors.
func fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

// failFields sends a 422 per-field validation envelope.
func failFields(w http.ResponseWriter, errs map[string]string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"success": false, "errors": errs})
}

func requiredFieldMessage(field string) string {
	return "The " + field + " field is required."
}

func decodeBody(r *http.Request, dest any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dest)
}
