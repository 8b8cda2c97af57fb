package ws

import (
	"net/http"
	"net/url"
	"strings"
)

type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

// newOriginPolicy normalizes the configured origins; "*" allows every origin.
// Invalid entries are returned so the caller can log them.
func newOriginPolicy(origins []string) (originPolicy, []string) {
	p := originPolicy{allowed: map[string]struct{}{}}
	var invalid []string
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			p.allowAll = true
			continue
		}
		n, ok := normalizeOrigin(o)
		if !ok {
			invalid = append(invalid, o)
			continue
		}
		p.allowed[n] = struct{}{}
	}
	return p, invalid
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

// allow reports whether r may upgrade. Requests without an Origin header come
// from non-browser clients and are allowed.
func (p originPolicy) allow(r *http.Request) bool {
	h := r.Header.Get("Origin")
	if h == "" || p.allowAll {
		return true
	}
	n, ok := normalizeOrigin(h)
	if !ok {
		return false
	}
	_, ok = p.allowed[n]
	return ok
}
