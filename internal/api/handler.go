package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/roverlink/roverlink/internal/auth"
	"github.com/roverlink/roverlink/internal/metrics"
	"github.com/roverlink/roverlink/internal/robot"
	"github.com/roverlink/roverlink/internal/video"
)

// Handler serves the REST control plane.
type Handler struct {
	gate   auth.Gate
	video  *video.Cache
	robots *robot.Registry
	met    *metrics.Registry
}

// New wires the control plane routes and returns the router. ws, when
// non-nil, is mounted at /ws (the persistent-connection endpoint). Callers
// may register further routes (e.g. static files) on the returned router.
func New(gate auth.Gate, vid *video.Cache, robots *robot.Registry, met *metrics.Registry, ws http.Handler) chi.Router {
	h := &Handler{gate: gate, video: vid, robots: robots, met: met}

	r := chi.NewRouter()
	r.Post("/auth/login", h.login)
	r.Get("/api/health", h.health)
	r.Handle("/metrics", met.Handler())
	if ws != nil {
		r.Get("/ws", ws.ServeHTTP)
	}

	r.Group(func(gr chi.Router) {
		gr.Use(h.requireToken)
		gr.Get("/api/snapshot/{stream}", h.snapshot)
		gr.Post("/api/robot/{id}/control", h.robotControl)
	})

	return r
}

// --- middleware -------------------------------------------------------------

type identityKey struct{}

// IdentityFrom returns the authenticated identity placed on the context by
// the token gate middleware.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	return id, ok
}

// requireToken resolves and validates the request token, rejecting with 401
// before any handler runs.
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.ResolveToken(r)
		if token == "" {
			jsonErr(w, http.StatusUnauthorized, "no token")
			return
		}
		id, ok := h.gate.Validate(token)
		if !ok {
			jsonErr(w, http.StatusUnauthorized, "bad token")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// --- route handlers ---------------------------------------------------------

// login handles POST /auth/login — issues a token for the admin identity.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeCredentials(r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, "bad request")
		return
	}

	token, ok := h.gate.Issue(req.Username, req.Password)
	if !ok {
		jsonErr(w, http.StatusUnauthorized, "bad credentials")
		return
	}
	jsonResp(w, http.StatusOK, tokenResponse{AccessToken: token})
}

// snapshot handles GET /api/snapshot/{stream} — the cached frame as JPEG.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	stream := chi.URLParam(r, "stream")

	frame, ok := h.video.Snapshot(stream)
	if !ok {
		jsonErr(w, http.StatusNotFound, "no frame")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(frame) //nolint:errcheck
}

// robotControl handles POST /api/robot/{id}/control — dispatches a command
// to every connected subscriber of the robot.
func (h *Handler) robotControl(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "bad request")
		return
	}

	delivered := h.robots.Dispatch(id, req.Action, req.Speed)
	h.met.CommandDispatched(delivered)
	if !delivered {
		jsonErr(w, http.StatusNotFound, "no robot connected")
		return
	}
	jsonResp(w, http.StatusOK, okResponse{OK: true})
}

// health handles GET /api/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, okResponse{OK: true})
}

// --- helpers ----------------------------------------------------------------

// decodeCredentials reads login credentials from a JSON body or, for form
// posts, from urlencoded values.
func decodeCredentials(r *http.Request, req *loginRequest) error {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return err
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
		return nil
	}
	return json.NewDecoder(r.Body).Decode(req)
}

func jsonResp(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, status int, msg string) {
	jsonResp(w, status, errorResponse{Error: msg})
}
