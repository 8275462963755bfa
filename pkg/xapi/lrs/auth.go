package lrs

import "encoding/base64"

// BasicAuth returns the Authorization header value for HTTP basic auth.
func BasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
