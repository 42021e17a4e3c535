// Package domain contains the core entities of the attribution pipeline:
// campaigns, pageviews, behavioral events, leads reported by affiliate
// platforms, and the monetary conversion records derived from them.
// It has no dependencies on storage or transport.
package domain
