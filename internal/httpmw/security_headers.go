package httpmw

import (
	"net/http"
	"strings"
)

// SecurityOptions feeds the Content-Security-Policy. The site is static
// and same-origin except for CMS media, which may live on another host.
type SecurityOptions struct {
	// ImageOrigins are extra img-src sources, e.g. the Strapi media host.
	ImageOrigins []string
	// FrameOrigins are allowed frame-src sources for embedded forms.
	FrameOrigins []string
	// HSTS sends Strict-Transport-Security. Off for local development.
	HSTS bool
}

// ContentSecurityPolicy renders the policy for opts.
func ContentSecurityPolicy(opts SecurityOptions) string {
	img := append([]string{"'self'", "data:"}, opts.ImageOrigins...)
	frame := []string{"'none'"}
	if len(opts.FrameOrigins) > 0 {
		frame = opts.FrameOrigins
	}
	directives := []string{
		"default-src 'self'",
		"script-src 'self'",
		"style-src 'self' 'unsafe-inline'",
		"img-src " + strings.Join(img, " "),
		"font-src 'self'",
		"connect-src 'self'",
		"frame-src " + strings.Join(frame, " "),
		"base-uri 'self'",
		"form-action 'self'",
		"frame-ancestors 'none'",
		"object-src 'none'",
	}
	if opts.HSTS {
		directives = append(directives, "upgrade-insecure-requests")
	}
	return strings.Join(directives, "; ")
}

// SecurityHeaders sets the browser hardening headers on every response.
func SecurityHeaders(opts SecurityOptions) Middleware {
	csp := ContentSecurityPolicy(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if opts.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), geolocation=(), microphone=(), payment=(), usb=()")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			next.ServeHTTP(w, r)
		})
	}
}
