package httpapi

import (
	stderrors "errors"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/vvvdotnet/crusades/internal/app/services/photos"
	"github.com/vvvdotnet/crusades/internal/errors"
)

const (
	// formMemory is how much of a multipart body is buffered in memory
	// before spilling to temp files.
	formMemory = 8 << 20
	// formOverhead allows for non-file fields and multipart framing.
	formOverhead = 1 << 20
)

// parseForm reads a multipart or urlencoded body of at most limit bytes,
// reporting tooLarge when the body exceeds it.
func parseForm(w http.ResponseWriter, r *http.Request, limit int64, tooLarge string) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	err := r.ParseMultipartForm(formMemory)
	if stderrors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err == nil {
		return nil
	}
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return errors.BadRequest(tooLarge)
	}
	return errors.BadRequest("Invalid form data")
}

// formPhotos collects files sent as photos[0], photos[1], ... or as a
// repeated photos field, in index order.
func formPhotos(r *http.Request) ([]photos.Upload, func(), error) {
	noop := func() {}
	if r.MultipartForm == nil {
		return nil, noop, nil
	}

	type indexed struct {
		index  int
		header *multipart.FileHeader
	}
	var found []indexed
	for field, headers := range r.MultipartForm.File {
		idx, ok := photoIndex(field)
		if !ok {
			continue
		}
		for i, fh := range headers {
			found = append(found, indexed{index: idx*100 + i, header: fh})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].index < found[j].index })

	files := make([]multipart.File, 0, len(found))
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	uploads := make([]photos.Upload, 0, len(found))
	for _, item := range found {
		f, err := item.header.Open()
		if err != nil {
			closeAll()
			return nil, noop, errors.BadRequest("Invalid photo upload")
		}
		files = append(files, f)
		uploads = append(uploads, photos.Upload{Filename: item.header.Filename, Body: f})
	}
	return uploads, closeAll, nil
}

func photoIndex(field string) (int, bool) {
	if field == "photos" || field == "photos[]" {
		return 0, true
	}
	if !strings.HasPrefix(field, "photos[") || !strings.HasSuffix(field, "]") {
		return 0, false
	}
	n, err := strconv.Atoi(field[len("photos[") : len(field)-1])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// queryInt parses an optional integer query parameter, returning def when
// it is absent or malformed.
func queryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
