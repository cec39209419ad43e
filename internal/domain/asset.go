package domain

import "time"

// AssetKind enumerates asset roles.
type AssetKind string

const (
	AssetKindInput  AssetKind = "input"
	AssetKindOutput AssetKind = "output"
)

// Asset is an image stored in object storage. Output assets carry the mode
// they were produced with, the source input and the prompt audit record.
type Asset struct {
	ID            string
	UserID        string
	ProjectID     string
	Kind          AssetKind
	Bucket        string
	StoragePath   string
	MIME          string
	Bytes         int64
	Width         int
	Height        int
	SourceAssetID string
	Mode          Mode
	PromptAudit   []byte
	CreatedAt     time.Time
}
