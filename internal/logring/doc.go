// Package logring implements the relay's bounded in-memory log buffer.
//
// Ring holds the most recent entries (capacity-bounded, oldest evicted
// first) and a set of subscribers, each with a minimum severity filter.
// Append pushes an entry and fans it out synchronously to every subscriber
// whose filter admits it. Subscribe delivers the filtered backlog in
// chronological order before any live entry, so a new subscriber sees
// history and live traffic with no gap and no duplicate.
//
// Entries are never persisted; the buffer exists for the lifetime of the
// process only.
package logring
