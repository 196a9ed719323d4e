package storage

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Blacklist categories
const (
	CategoryContract      = "contract"
	CategoryConcentration = "concentration"
	CategoryVolume        = "volume"
)

// BlacklistEntry permanently disqualifies an address
type BlacklistEntry struct {
	Address  string `gorm:"primaryKey;size:128"`
	Category string `gorm:"size:32;not null;index"`
	Reason   string `gorm:"size:255;not null"`
	AddedTS  int64  `gorm:"not null;index"`
}

func (BlacklistEntry) TableName() string {
	return "blacklist"
}

// AssetSnapshot is the first-seen market/ownership view of an asset
type AssetSnapshot struct {
	Address     string         `gorm:"primaryKey;size:128"`
	Metadata    datatypes.JSON `gorm:"not null"`
	FirstSeenTS int64          `gorm:"not null;index"`
}

func (AssetSnapshot) TableName() string {
	return "asset_snapshots"
}

// SecurityCheck records one pipeline run that reached the storage stage
type SecurityCheck struct {
	ID             int64   `gorm:"primaryKey;autoIncrement"`
	Address        string  `gorm:"size:128;not null;index"`
	RiskScore      float64 `gorm:"type:decimal(10,4);not null"`
	IsConcentrated bool    `gorm:"not null"`
	IsSafe         bool    `gorm:"not null"`
	CheckedTS      int64   `gorm:"not null;index"`
}

func (SecurityCheck) TableName() string {
	return "security_checks"
}

// VolumeCheck records detected fake activity
type VolumeCheck struct {
	ID        int64   `gorm:"primaryKey;autoIncrement"`
	Address   string  `gorm:"size:128;not null;index"`
	VolumeUSD float64 `gorm:"type:decimal(24,6);not null"`
	IsFake    bool    `gorm:"not null"`
	Source    string  `gorm:"size:64;not null"`
	CheckedTS int64   `gorm:"not null;index"`
}

func (VolumeCheck) TableName() string {
	return "volume_checks"
}

// AlertRecord is the append-only audit trail of notable events
type AlertRecord struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	AlertType string `gorm:"size:32;not null;index"`
	Message   string `gorm:"type:text;not null"`
	Address   string `gorm:"size:128;index"`
	CreatedTS int64  `gorm:"not null;index"`
}

func (AlertRecord) TableName() string {
	return "alerts"
}

// TradeRecord audits every trade attempt
type TradeRecord struct {
	ID        int64   `gorm:"primaryKey;autoIncrement"`
	TradeID   string  `gorm:"size:128;index"`
	Address   string  `gorm:"size:128;not null;index"`
	Action    string  `gorm:"size:8;not null"`
	Amount    float64 `gorm:"type:decimal(24,9);not null"`
	Slippage  float64 `gorm:"type:decimal(10,4);not null"`
	Status    string  `gorm:"size:16;not null;index"` // executed, failed
	Error     string  `gorm:"type:text"`
	CreatedTS int64   `gorm:"not null;index"`
}

func (TradeRecord) TableName() string {
	return "trades"
}

// BeforeCreate hooks for timestamps
func (b *BlacklistEntry) BeforeCreate(tx *gorm.DB) error {
	if b.AddedTS == 0 {
		b.AddedTS = time.Now().Unix()
	}
	return nil
}

func (s *AssetSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.FirstSeenTS == 0 {
		s.FirstSeenTS = time.Now().Unix()
	}
	return nil
}

func (c *SecurityCheck) BeforeCreate(tx *gorm.DB) error {
	if c.CheckedTS == 0 {
		c.CheckedTS = time.Now().Unix()
	}
	return nil
}

func (v *VolumeCheck) BeforeCreate(tx *gorm.DB) error {
	if v.CheckedTS == 0 {
		v.CheckedTS = time.Now().Unix()
	}
	return nil
}

func (a *AlertRecord) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedTS == 0 {
		a.CreatedTS = time.Now().Unix()
	}
	return nil
}

func (t *TradeRecord) BeforeCreate(tx *gorm.DB) error {
	if t.CreatedTS == 0 {
		t.CreatedTS = time.Now().Unix()
	}
	return nil
}
