// Package httpserver exposes the feed storage engine over a small JSON API:
// record CRUD and listing per namespace, queue introspection, and a health
// probe. Authentication and domain payload validation live in front of this
// surface and are not reproduced here.
package httpserver
