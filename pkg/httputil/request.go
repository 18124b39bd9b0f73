package httputil

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// DefaultMaxBody caps request bodies read by DecodeJSONStrict.
const DefaultMaxBody = 1 << 20

// DecodeJSONStrict decodes at most DefaultMaxBody bytes of the request body
// into v and rejects unknown fields.
func DecodeJSONStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, DefaultMaxBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// DecodeBase64 decodes a standard base64 string.
func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// EncodeBase64 encodes bytes as standard base64.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// QueryValues returns every non-empty value of a repeated query parameter.
// Comma separated values are split, so ?channel=a,b and
// ?channel=a&channel=b are equivalent.
func QueryValues(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
