// Package model defines the data structures shared by the crawler, the
// storage backends, the report writers and the HTTP API.
//
// This package contains the following main types:
//   - PageRecord: the summary of one successfully fetched page
//   - FetchFailure: a per-URL diagnostic for a page that could not be fetched
//   - CrawlRequest: the JSON body accepted by POST /crawl
//   - CrawlResult: everything one crawl run produced
//   - RunSummary: a persisted crawl run as read back from storage
//
// Models live in their own package so that crawler, storage, report and
// server can share them without import cycles. All of them serialize to JSON.
package model
