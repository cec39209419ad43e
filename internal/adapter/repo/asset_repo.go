package repo

import (
	"context"
	"fmt"

	"productshot/internal/domain"
	"productshot/internal/infra"
	"productshot/internal/sqlinline"
)

// AssetRepositoryPG implements domain.AssetRepository using PostgreSQL.
type AssetRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewAssetRepository constructs a new asset repository instance.
func NewAssetRepository(sql infra.SQLExecutor) *AssetRepositoryPG {
	return &AssetRepositoryPG{sql: sql}
}

// Create inserts the asset row and fills CreatedAt.
func (r *AssetRepositoryPG) Create(ctx context.Context, asset *domain.Asset) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertAsset,
		asset.ID,
		asset.UserID,
		asset.ProjectID,
		string(asset.Kind),
		asset.Bucket,
		asset.StoragePath,
		asset.MIME,
		asset.Bytes,
		asset.Width,
		asset.Height,
		asset.SourceAssetID,
		string(asset.Mode),
		nullableBytes(asset.PromptAudit),
	)
	if err := row.Scan(&asset.CreatedAt); err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// GetByID returns the asset or domain.ErrNotFound.
func (r *AssetRepositoryPG) GetByID(ctx context.Context, assetID string) (*domain.Asset, error) {
	if !validID(assetID) {
		return nil, domain.ErrNotFound
	}
	row := r.sql.QueryRow(ctx, sqlinline.QSelectAssetByID, assetID)
	var asset domain.Asset
	var kind, mode string
	if err := row.Scan(
		&asset.ID,
		&asset.UserID,
		&asset.ProjectID,
		&kind,
		&asset.Bucket,
		&asset.StoragePath,
		&asset.MIME,
		&asset.Bytes,
		&asset.Width,
		&asset.Height,
		&asset.SourceAssetID,
		&mode,
		&asset.PromptAudit,
		&asset.CreatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	asset.Kind = domain.AssetKind(kind)
	asset.Mode = domain.Mode(mode)
	return &asset, nil
}

var _ domain.AssetRepository = (*AssetRepositoryPG)(nil)
