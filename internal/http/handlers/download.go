package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"productshot/internal/storage"
)

// DownloadObject serves a filesystem object behind a signed URL.
func (a *App) DownloadObject(w http.ResponseWriter, r *http.Request) {
	if a.Files == nil {
		a.error(w, http.StatusNotFound, "not_found", "signed downloads are not served by this storage driver")
		return
	}
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")
	q := r.URL.Query()
	if err := a.Files.Verify(bucket, key, q.Get("expires"), q.Get("sig")); err != nil {
		msg := "invalid signature"
		if errors.Is(err, storage.ErrURLExpired) {
			msg = "url expired"
		}
		a.error(w, http.StatusForbidden, "forbidden", msg)
		return
	}
	data, err := a.Files.Read(r.Context(), bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "object not found")
			return
		}
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
