package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vvvdotnet/crusades/internal/app/services/photos"
	"github.com/vvvdotnet/crusades/internal/errors"
	"github.com/vvvdotnet/crusades/internal/httputil"
)

func (h *handler) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := parseForm(w, r, photos.MaxSize+formOverhead, "File size must be less than 5MB"); err != nil {
		writeError(w, r, err)
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		writeError(w, r, errors.BadRequest("No photo provided"))
		return
	}
	defer file.Close()

	photo, err := h.app.Photos.Upload(r.Context(), userID, photos.Upload{
		Filename: header.Filename,
		Body:     file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, photo)
}

func (h *handler) deletePhoto(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := h.app.Photos.Delete(r.Context(), userID, mux.Vars(r)["key"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Photo deleted successfully"})
}
