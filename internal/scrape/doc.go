// Package scrape implements the browser-based lead scraper. It drives a
// Chrome instance over the DevTools protocol, injects a stored session,
// extracts lead rows with an in-page script and paginates until the
// requested number of leads is collected or the listing runs out.
package scrape
