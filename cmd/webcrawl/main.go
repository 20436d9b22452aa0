// Package main provides the entry point for the webcrawl CLI.
//
// webcrawl is a concurrent breadth-first web crawler. It records the title,
// status and depth of every page it reaches, stores runs in SQLite and can
// serve crawls over an HTTP API.
//
// Usage:
//
//	webcrawl crawl <url>
//	webcrawl serve --addr :8000
//	webcrawl runs
//
// See --help for all available options.
package main

func main() {
	Execute()
}
