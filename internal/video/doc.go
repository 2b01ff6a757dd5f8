// Package video implements the per-stream latest-frame cache and viewer
// fan-out. Exactly one frame is cached per stream (last-write-wins), which
// bounds memory regardless of ingest rate and gives late-joining viewers an
// immediate, if stale, picture. Streams are created implicitly on first use
// and live for the rest of the process.
package video
