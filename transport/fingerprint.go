package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"sort"
	"strings"
)

// fingerprint derives the deterministic cache key for a request: method,
// scheme/host/path and the normalized query, excluding auth-injected
// parameters so secrets never reach the cache key.
func fingerprint(method string, u *url.URL, body []byte, secretParams []string) string {
	h := sha256.New()

	_, _ = io.WriteString(h, strings.ToUpper(method))
	h.Write([]byte{0})
	_, _ = io.WriteString(h, u.Scheme+"://"+u.Host+u.Path)
	h.Write([]byte{0})

	query := u.Query()
	for _, param := range secretParams {
		query.Del(param)
	}
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		values := query[key]
		sort.Strings(values)
		for _, value := range values {
			_, _ = io.WriteString(h, key)
			h.Write([]byte{'='})
			_, _ = io.WriteString(h, value)
			h.Write([]byte{'&'})
		}
	}

	h.Write([]byte{0})
	h.Write(body)

	return hex.EncodeToString(h.Sum(nil))
}
