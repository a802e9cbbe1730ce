package httpapi

import (
	"net/http"

	"github.com/vvvdotnet/crusades/internal/httputil"
)

func (h *handler) discordCallback(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code string `json:"code"`
	}
	if err := httputil.DecodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.app.Auth.LoginWithDiscord(r.Context(), payload.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *handler) supabaseSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := httputil.DecodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.app.Auth.LoginWithSupabase(r.Context(), payload.AccessToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	u, err := h.app.Auth.Me(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": u})
}

func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var payload struct {
		XUsername *string `json:"x_username"`
	}
	if err := httputil.DecodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	handle := ""
	if payload.XUsername != nil {
		handle = *payload.XUsername
	}
	u, err := h.app.Auth.UpdateProfile(r.Context(), userID, handle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": u})
}

// logout is a no-op on the server; clients drop the token.
func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, message{Message: "Logged out successfully"})
}
