package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/memvault/memvault/config"
)

// OriginMatcher matches exact origins, "*" and single-label wildcards such
// as "https://*.example.com", case-insensitively.
type OriginMatcher struct {
	any       bool
	exact     map[string]bool
	wildcards []wildcardOrigin
}

type wildcardOrigin struct {
	scheme string // "https://"
	domain string // ".example.com"
}

// NewOriginMatcher compiles an allowed-origins list.
func NewOriginMatcher(allowed []string) OriginMatcher {
	m := OriginMatcher{exact: make(map[string]bool)}
	for _, o := range allowed {
		o = strings.ToLower(strings.TrimSpace(o))
		switch {
		case o == "*":
			m.any = true
		case strings.Contains(o, "://*."):
			scheme, domain, _ := strings.Cut(o, "://*")
			m.wildcards = append(m.wildcards, wildcardOrigin{scheme: scheme + "://", domain: domain})
		case o != "":
			m.exact[o] = true
		}
	}
	return m
}

// Allows reports whether origin is on the list.
func (m OriginMatcher) Allows(origin string) bool {
	if m.any {
		return true
	}
	origin = strings.ToLower(origin)
	if m.exact[origin] {
		return true
	}
	for _, w := range m.wildcards {
		host, ok := strings.CutPrefix(origin, w.scheme)
		if !ok {
			continue
		}
		label, ok := strings.CutSuffix(host, w.domain)
		if ok && label != "" && !strings.Contains(label, ".") {
			return true
		}
	}
	return false
}

// CORS sets CORS headers for allowed origins and answers preflight requests
// without reaching the handler. Disallowed origins are served without CORS
// headers, leaving enforcement to the browser.
func CORS(cfg *config.CORSConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}

	origins := NewOriginMatcher(cfg.AllowedOrigins)
	preflight := map[string]string{
		"Access-Control-Allow-Methods": strings.Join(cfg.AllowedMethods, ", "),
		"Access-Control-Allow-Headers": strings.Join(cfg.AllowedHeaders, ", "),
	}
	if cfg.MaxAge > 0 {
		preflight["Access-Control-Max-Age"] = strconv.Itoa(cfg.MaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			if origin == "" || !origins.Allows(origin) {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)
				return
			}
			for k, v := range preflight {
				if v != "" {
					h.Set(k, v)
				}
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
