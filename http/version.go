package http

import (
	"net/http"
)

// HandleVersion serves the build version as plain text.
func HandleVersion(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(version))
	}
}
