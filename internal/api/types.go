package api

// loginRequest is the body of POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse is the success payload of POST /auth/login.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// controlRequest is the body of POST /api/robot/{id}/control. A missing
// speed dispatches as 0; out-of-range speeds are clamped, not rejected.
type controlRequest struct {
	Action string `json:"action"`
	Speed  int    `json:"speed"`
}

// okResponse is the generic success payload.
type okResponse struct {
	OK bool `json:"ok"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
