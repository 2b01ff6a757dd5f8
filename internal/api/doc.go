// Package api implements the relay's REST control plane: admin login,
// snapshot fetch, robot command dispatch, health, and metrics. It holds no
// connection state of its own — it is a secondary caller into the video
// cache and the robot channel registry.
package api
