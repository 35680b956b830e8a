// Package bookmarks holds the process-wide bookmark snapshot guests read.
//
// Guests cannot wait on platform callbacks, so bookmark reads are served
// from a Cache that is refreshed out of band: by Notify on a change event,
// by a Scheduler on a cron spec, or by Replace directly. A cache that has
// never been filled returns ErrNotPopulated.
package bookmarks
