package models

import (
	"time"

	"github.com/wrensec/keygate/pkg/constants"
)

// AccessKey is the persistent record for a machine-client API key. For the
// simple strategy the record is the bare key; for the signed strategy it also
// carries the shared secret used to verify request signatures. The database
// is the system of record; the key stores mirror it through caches.
type AccessKey struct {
	// Key is the public key identifier presented by clients.
	Key string `gorm:"primaryKey;column:access_key"`
	// Secret is the signing secret for signed-strategy keys. Empty for
	// simple-strategy keys. Never written to logs or responses.
	Secret string `gorm:"column:secret_key"`
	// Strategy records which authentication strategy the key belongs to.
	Strategy constants.AuthStrategy `gorm:"column:strategy;index"`
	// Remark is an operator-facing note about the key's owner or purpose.
	Remark    string `gorm:"column:remark"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName sets the GORM table name.
func (AccessKey) TableName() string {
	return "access_keys"
}

// IsSigned reports whether the key authenticates via the signed strategy.
func (k *AccessKey) IsSigned() bool {
	return k.Strategy == constants.StrategySigned
}
