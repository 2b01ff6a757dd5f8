// Package robot implements the per-robot command channel registry. Each
// robot id has a subscriber set; Dispatch fans a structured command to every
// current subscriber, best effort. Every dispatch is recorded in the log
// ring so operators can see command traffic and offline robots.
package robot
