package serverrig

import (
	"encoding/json"
	"net/http"
)

// echoResponse is what EchoHandler reports back about the request it saw.
type echoResponse struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	TLSVersion uint16 `json:"tls_version,omitempty"`
	ServerName string `json:"server_name,omitempty"`
}

// EchoHandler returns a minimal request handler for fixture servers: it
// answers every request with a JSON summary of the method, path, and the
// negotiated TLS parameters. Real application routing is the calling
// test's business, not the rig's.
func EchoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := echoResponse{
			Method: r.Method,
			Path:   r.URL.Path,
		}
		if r.TLS != nil {
			resp.TLSVersion = r.TLS.Version
			resp.ServerName = r.TLS.ServerName
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
