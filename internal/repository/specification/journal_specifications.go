package specification

import (
	"time"

	"gorm.io/gorm"
)

type ByRealm struct {
	Realm string
}

func (s ByRealm) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("realm = ?", s.Realm)
}

type CreatedSince struct {
	Since time.Time
}

func (s CreatedSince) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("created_at >= ?", s.Since)
}
