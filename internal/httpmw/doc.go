// Package httpmw holds the middleware shared by the site listener, the
// JSON API routes and the ops listener.
//
// Everything here is a plain func(http.Handler) http.Handler so the
// servers can pick and order what they need with [Chain]. Request bodies,
// query strings and user agents never reach the access log.
package httpmw
