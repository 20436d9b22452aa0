// Package server exposes the crawler over HTTP.
//
// Routes:
//
//	POST /crawl             run one crawl and return its pages
//	GET  /status            liveness and version
//	GET  /runs              persisted runs, newest first
//	GET  /runs/{id}/pages   persisted pages of one run
//
// Every response carries permissive CORS headers so a browser frontend on
// another origin can call the API.
package server
