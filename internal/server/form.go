package server

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxFormBytes = 1 << 20

// readForm reads the whole body and decodes it as
// application/x-www-form-urlencoded whatever the declared content type.
func readForm(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return decodeForm(string(body))
}

// decodeForm splits pairs on '&' only, so ';' is an ordinary character.
// Pairs without '=' are skipped and a repeated key keeps its last value.
func decodeForm(body string) (url.Values, error) {
	values := url.Values{}
	for _, pair := range strings.Split(body, "&") {
		rawKey, rawValue, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("decode form key %q: %w", rawKey, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("decode form value for %q: %w", key, err)
		}
		values.Set(key, value)
	}
	return values, nil
}
