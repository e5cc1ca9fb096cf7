package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"tribehub/auth"
)

// KeyFunc derives the human-readable name part of a cache key from a read
// request. Names are what invalidation patterns match against; they must be
// pure functions of the request.
type KeyFunc func(r *http.Request) string

// ModelKey names entries after a model and its path parameter,
// e.g. ModelKey("event", "id") -> "event:42".
func ModelKey(model, param string) KeyFunc {
	return func(r *http.Request) string {
		return fmt.Sprintf("%s:%s", model, mux.Vars(r)[param])
	}
}

// UserKey names entries per user and resource, e.g. "user:7:feed". The user
// comes from the path parameter when routed, from the authenticated
// identity otherwise.
func UserKey(resource string) KeyFunc {
	return func(r *http.Request) string {
		user := mux.Vars(r)["userId"]
		if user == "" {
			user = auth.IdentityFromContext(r.Context())
		}
		return fmt.Sprintf("user:%s:%s", user, resource)
	}
}

// SearchKey names entries after a digest of the canonical query string so
// two logically identical searches share one entry.
func SearchKey() KeyFunc {
	return func(r *http.Request) string {
		return fmt.Sprintf("search:%s", digest(canonicalQuery(r))[:16])
	}
}

// PageKey names paginated listings per path, page and limit.
func PageKey() KeyFunc {
	return func(r *http.Request) string {
		q := r.URL.Query()
		page := q.Get("page")
		if page == "" {
			page = "1"
		}
		limit := q.Get("limit")
		if limit == "" {
			limit = "20"
		}
		return fmt.Sprintf("page:%s:%s:%s", r.URL.Path, page, limit)
	}
}

// Fingerprint hashes the identity-relevant fields of a read request:
// method, path, identity-or-anonymous, query parameters and path
// parameters. Irrelevant headers never enter the digest, so two requests
// differing only there resolve to the same entry.
func Fingerprint(r *http.Request) string {
	identity := auth.IdentityFromContext(r.Context())
	if identity == "" {
		identity = "anonymous"
	}

	vars := mux.Vars(r)
	varKeys := make([]string, 0, len(vars))
	for k := range vars {
		varKeys = append(varKeys, k)
	}
	sort.Strings(varKeys)

	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte('|')
	b.WriteString(r.URL.Path)
	b.WriteByte('|')
	b.WriteString(identity)
	b.WriteByte('|')
	b.WriteString(canonicalQuery(r))
	for _, k := range varKeys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(vars[k])
	}
	return digest(b.String())
}

// canonicalQuery sorts query parameters so ordering never splits entries.
func canonicalQuery(r *http.Request) string {
	q := r.URL.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		values := append([]string(nil), q[k]...)
		sort.Strings(values)
		for _, v := range values {
			parts = append(parts, k+"="+v)
		}
	}
	return strings.Join(parts, "&")
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
