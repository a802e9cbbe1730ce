package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tidwall/gjson"

	"github.com/vvvdotnet/crusades/internal/app/domain/crusade"
	"github.com/vvvdotnet/crusades/internal/app/domain/progress"
	"github.com/vvvdotnet/crusades/internal/app/services/photos"
	progresssvc "github.com/vvvdotnet/crusades/internal/app/services/progress"
	"github.com/vvvdotnet/crusades/internal/errors"
	"github.com/vvvdotnet/crusades/internal/httputil"
)

// entryBodyLimit fits MaxPhotos photos plus the form fields.
const entryBodyLimit = progress.MaxPhotos*photos.MaxSize + formOverhead

func (h *handler) logFitness(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := parseForm(w, r, entryBodyLimit, "Photos must be less than 5MB each"); err != nil {
		writeError(w, r, err)
		return
	}
	uploads, closeFiles, err := formPhotos(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer closeFiles()

	in := progress.FitnessInput{
		CrusadeID:    r.FormValue("crusade_id"),
		ExerciseType: r.FormValue("exercise_type"),
		Weight:       r.FormValue("weight"),
		WeightUnit:   r.FormValue("weight_unit"),
		WeightKg:     r.FormValue("weight_kg"),
		WeightLbs:    r.FormValue("weight_lbs"),
		Reps:         r.FormValue("reps"),
		Sets:         r.FormValue("sets"),
		Notes:        r.FormValue("notes"),
	}
	out, err := h.app.Progress.LogFitness(r.Context(), userID, in, uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "Progress logged successfully",
		"id":         out.Entry.ID,
		"entry":      out.Entry,
		"photo_urls": out.PhotoURLs,
		"x_post":     out.Post,
	})
}

func (h *handler) logMeal(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := parseForm(w, r, entryBodyLimit, "Photos must be less than 5MB each"); err != nil {
		writeError(w, r, err)
		return
	}
	uploads, closeFiles, err := formPhotos(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer closeFiles()

	in := progress.MealInput{
		CrusadeID: r.FormValue("crusade_id"),
		MealType:  r.FormValue("meal_type"),
		Calories:  r.FormValue("calories"),
		ProteinG:  r.FormValue("protein_g"),
		CarbsG:    r.FormValue("carbs_g"),
		FatG:      r.FormValue("fat_g"),
		FoodItems: r.FormValue("food_items"),
		Notes:     r.FormValue("notes"),
	}
	out, err := h.app.Progress.LogMeal(r.Context(), userID, in, uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "Meal logged successfully",
		"id":         out.Entry.ID,
		"entry":      out.Entry,
		"photo_urls": out.PhotoURLs,
		"x_post":     out.Post,
	})
}

// previewPost accepts the same fields as the log forms as JSON. Numbers may
// be sent as JSON numbers or strings.
func (h *handler) previewPost(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	body, err := httputil.ReadAllStrict(r.Body, httputil.MaxJSONBody)
	if err != nil {
		writeError(w, r, errors.BadRequest("Request body too large"))
		return
	}
	if len(body) == 0 || !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		writeError(w, r, errors.BadRequest("Invalid JSON body"))
		return
	}
	field := func(name string) string { return gjson.GetBytes(body, name).String() }

	kind, err := crusade.ParseEntryKind(field("type"))
	if err != nil {
		writeError(w, r, errors.BadRequest("type must be fitness or meal"))
		return
	}
	in := progresssvc.PreviewInput{
		Kind: kind,
		Fitness: progress.FitnessInput{
			CrusadeID:    field("crusade_id"),
			ExerciseType: field("exercise_type"),
			Weight:       field("weight"),
			WeightUnit:   field("weight_unit"),
			WeightKg:     field("weight_kg"),
			WeightLbs:    field("weight_lbs"),
			Reps:         field("reps"),
			Sets:         field("sets"),
			Notes:        field("notes"),
		},
		Meal: progress.MealInput{
			CrusadeID: field("crusade_id"),
			MealType:  field("meal_type"),
			Calories:  field("calories"),
			ProteinG:  field("protein_g"),
			CarbsG:    field("carbs_g"),
			FatG:      field("fat_g"),
			FoodItems: field("food_items"),
			Notes:     field("notes"),
		},
	}
	text, err := h.app.Progress.Preview(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	hist, err := h.app.Progress.History(r.Context(), userID, q.Get("type"), queryInt(r, "limit", progresssvc.HistoryLimit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"type":    hist.Kind,
		"entries": hist.Entries(),
	})
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	s, err := h.app.Progress.Stats(r.Context(), userID, r.URL.Query().Get("crusade_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": s})
}

func (h *handler) getProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	entry, err := h.app.Progress.Get(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"type":       entry.Kind,
		"entry":      entry.Value(),
		"photo_urls": entry.PhotoURLs,
	})
}
