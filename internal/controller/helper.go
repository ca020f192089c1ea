package controller

import (
	"crypto/rand"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
)

func (c controller) generateTimeBasedId() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// authToken reads an account token from "Authorization: Bearer" or
// X-Auth-Token.
func (c controller) authToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	return strings.TrimSpace(r.Header.Get("X-Auth-Token"))
}
