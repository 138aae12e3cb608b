package registry

import (
	"gorm.io/gorm"
)

// Domain is one registered name under a managed zone. Nameservers are stored
// comma-joined: the pipeline only ever round-trips the whole set, so a values
// table would buy nothing.
type Domain struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex"`
	Zone        string `gorm:"index"`
	Active      bool
	Nameservers string `gorm:"type:text"`
}

// DSRecord is one delegation-signer entry for a domain. Rows are replaced
// wholesale whenever the parent domain is saved, so they carry no soft
// delete of their own.
type DSRecord struct {
	ID         uint   `gorm:"primarykey"`
	DomainID   uint   `gorm:"index"`
	Domain     Domain `gorm:"constraint:OnDelete:CASCADE;"`
	KeyTag     uint16
	Algorithm  uint8
	DigestType uint8
	Digest     string
}

// Host is one glue host object with its comma-joined address set.
type Host struct {
	gorm.Model
	Name      string `gorm:"uniqueIndex"`
	Addresses string `gorm:"type:text"`
}

// Zone is one managed zone and its publish settings. Zero TTLs fall back to
// the service-wide defaults.
type Zone struct {
	gorm.Model
	Name       string `gorm:"uniqueIndex"`
	WriterName string
	TTLNS      uint32
	TTLDS      uint32
	TTLGlue    uint32
}
