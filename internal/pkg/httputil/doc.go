// Package httputil holds the JSON response and request helpers shared by
// the API handlers. Errors always use the ErrorResponse envelope.
package httputil
