package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy configures WithCORS. An empty AllowedOrigins disables CORS headers.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type corsRules struct {
	anyOrigin   bool
	origins     map[string]struct{}
	methods     map[string]struct{}
	credentials bool
	headers     map[string]string
}

func newCORSRules(p CORSPolicy) corsRules {
	rules := corsRules{
		origins:     map[string]struct{}{},
		methods:     map[string]struct{}{},
		credentials: p.AllowCredentials,
		headers:     map[string]string{},
	}
	for _, o := range p.AllowedOrigins {
		o = strings.ToLower(strings.TrimSpace(o))
		switch o {
		case "":
		case "*":
			rules.anyOrigin = true
		default:
			rules.origins[o] = struct{}{}
		}
	}
	var methods []string
	for _, m := range p.AllowedMethods {
		if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
			rules.methods[m] = struct{}{}
			methods = append(methods, m)
		}
	}
	var headers []string
	for _, h := range p.AllowedHeaders {
		if h = strings.TrimSpace(h); h != "" {
			headers = append(headers, h)
		}
	}
	if len(methods) > 0 {
		rules.headers["Access-Control-Allow-Methods"] = strings.Join(methods, ", ")
	}
	if len(headers) > 0 {
		rules.headers["Access-Control-Allow-Headers"] = strings.Join(headers, ", ")
	}
	if secs := int(p.MaxAge.Seconds()); secs > 0 {
		rules.headers["Access-Control-Max-Age"] = strconv.Itoa(secs)
	}
	return rules
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin. A wildcard policy
// echoes the origin when credentials are allowed, since browsers reject "*" with them.
func (c corsRules) allowOrigin(origin string) (string, bool) {
	if _, ok := c.origins[strings.ToLower(origin)]; ok {
		return origin, true
	}
	if c.anyOrigin {
		if c.credentials {
			return origin, true
		}
		return "*", true
	}
	return "", false
}

func (c corsRules) enabled() bool {
	return c.anyOrigin || len(c.origins) > 0
}

// WithCORS answers preflight requests from allowed origins and decorates their responses.
// Requests from other origins pass through without CORS headers.
func WithCORS(p CORSPolicy) Middleware {
	rules := newCORSRules(p)
	return func(next http.Handler) http.Handler {
		if !rules.enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allow, ok := rules.allowOrigin(origin)
			if origin == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			h.Add("Vary", "Origin")
			if rules.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			requested := r.Header.Get("Access-Control-Request-Method")
			if r.Method != http.MethodOptions || requested == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := rules.methods[strings.ToUpper(requested)]; len(rules.methods) > 0 && !ok {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			for k, v := range rules.headers {
				h.Set(k, v)
			}
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
