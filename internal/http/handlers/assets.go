package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"productshot/internal/domain"
	"productshot/internal/storage"
)

var uploadExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type assetResponse struct {
	ID            string          `json:"id"`
	ProjectID     string          `json:"project_id"`
	Kind          string          `json:"kind"`
	MIME          string          `json:"mime"`
	Bytes         int64           `json:"bytes"`
	Width         int             `json:"width,omitempty"`
	Height        int             `json:"height,omitempty"`
	SourceAssetID string          `json:"source_asset_id,omitempty"`
	Mode          string          `json:"mode,omitempty"`
	URL           string          `json:"url,omitempty"`
	URLExpiresAt  *time.Time      `json:"url_expires_at,omitempty"`
	PromptAudit   json.RawMessage `json:"prompt_audit,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func newAssetResponse(asset *domain.Asset) assetResponse {
	resp := assetResponse{
		ID:            asset.ID,
		ProjectID:     asset.ProjectID,
		Kind:          string(asset.Kind),
		MIME:          asset.MIME,
		Bytes:         asset.Bytes,
		Width:         asset.Width,
		Height:        asset.Height,
		SourceAssetID: asset.SourceAssetID,
		Mode:          string(asset.Mode),
		CreatedAt:     asset.CreatedAt,
	}
	if len(asset.PromptAudit) > 0 {
		resp.PromptAudit = json.RawMessage(asset.PromptAudit)
	}
	return resp
}

// UploadAsset stores the request body as an input image in the project.
func (a *App) UploadAsset(w http.ResponseWriter, r *http.Request) {
	userID := a.requireUser(w, r)
	if userID == "" {
		return
	}
	projectID := strings.TrimSpace(chi.URLParam(r, "project_id"))
	if projectID == "" {
		a.error(w, http.StatusBadRequest, "invalid_input", "project_id required")
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.Config.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "invalid_input", "image exceeds upload limit")
			return
		}
		a.error(w, http.StatusBadRequest, "invalid_input", "could not read body")
		return
	}
	if len(data) == 0 {
		a.error(w, http.StatusBadRequest, "invalid_input", "empty body")
		return
	}
	mime := http.DetectContentType(data)
	ext, ok := uploadExtensions[mime]
	if !ok {
		a.error(w, http.StatusBadRequest, "invalid_input", "unsupported image type "+mime)
		return
	}

	asset := &domain.Asset{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProjectID: projectID,
		Kind:      domain.AssetKindInput,
		Bucket:    a.Config.InputBucket,
		MIME:      mime,
		Bytes:     int64(len(data)),
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		asset.Width, asset.Height = cfg.Width, cfg.Height
	}
	asset.StoragePath = storage.InputKey(userID, projectID, asset.ID, ext)

	if err := a.Store.Upload(r.Context(), asset.Bucket, asset.StoragePath, data, mime); err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("upload input image failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store image")
		return
	}
	if err := a.Assets.Create(r.Context(), asset); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, newAssetResponse(asset))
}

// GetAsset returns the asset with a short-lived read URL and, for outputs,
// the prompt audit record.
func (a *App) GetAsset(w http.ResponseWriter, r *http.Request) {
	userID := a.requireUser(w, r)
	if userID == "" {
		return
	}
	asset, err := a.Assets.GetByID(r.Context(), chi.URLParam(r, "asset_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if asset.UserID != userID {
		a.error(w, http.StatusForbidden, "forbidden", "not your asset")
		return
	}
	resp := newAssetResponse(asset)
	url, err := a.Store.SignedReadURL(r.Context(), asset.Bucket, asset.StoragePath, a.Config.SignedURLTTL)
	switch {
	case err == nil:
		expires := a.now().Add(a.Config.SignedURLTTL).UTC()
		resp.URL, resp.URLExpiresAt = url, &expires
	case errors.Is(err, storage.ErrObjectNotFound):
		a.Logger.Warn().Str("asset_id", asset.ID).Msg("asset row has no stored object")
	default:
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, resp)
}
