package transport

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"meteostations.app/pkg/errors"
	"meteostations.app/pkg/logger"
)

// CacheRecord is the durable form of a cache entry
type CacheRecord struct {
	Fingerprint string    `gorm:"primaryKey;size:64"`
	Status      int       `gorm:"not null"`
	Body        []byte    `gorm:"not null"`
	RetrievedAt time.Time `gorm:"not null"`
	ExpiresAt   time.Time `gorm:"index;not null"`
}

// TableName sets the table name used by GORM
func (CacheRecord) TableName() string {
	return "http_cache"
}

// GormStore keeps cache entries on durable storage through GORM, so cached
// catalogs survive process restarts.
type GormStore struct {
	db  *gorm.DB
	log *logger.Logger
}

// OpenSQLite opens (creating if needed) the cache database under dir
func OpenSQLite(dir string) (*gorm.DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewConfigurationError("create cache directory", err)
	}
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "http_cache.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.NewConfigurationError("open sqlite cache database", err)
	}
	return db, nil
}

// OpenPostgres connects to a shared cache database
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.NewConfigurationError("connect to postgres cache database", err)
	}
	return db, nil
}

func NewGormStore(db *gorm.DB, log *logger.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&CacheRecord{}); err != nil {
		return nil, errors.NewConfigurationError("migrate cache schema", err)
	}
	return &GormStore{db: db, log: log}, nil
}

func (s *GormStore) Get(ctx context.Context, fingerprint string) (*Entry, bool) {
	var record CacheRecord
	err := s.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).Take(&record).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			s.log.Error("cache read error", "error", err, "fingerprint", fingerprint)
		}
		return nil, false
	}

	entry := Entry{
		Fingerprint: record.Fingerprint,
		Status:      record.Status,
		Body:        record.Body,
		RetrievedAt: record.RetrievedAt,
		ExpiresAt:   record.ExpiresAt,
	}
	if entry.expired(time.Now()) {
		s.Delete(ctx, fingerprint)
		return nil, false
	}
	return &entry, true
}

func (s *GormStore) Set(ctx context.Context, entry *Entry) {
	if entry == nil {
		return
	}
	record := CacheRecord{
		Fingerprint: entry.Fingerprint,
		Status:      entry.Status,
		Body:        entry.Body,
		RetrievedAt: entry.RetrievedAt,
		ExpiresAt:   entry.ExpiresAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error
	if err != nil {
		s.log.Error("cache write error", "error", err, "fingerprint", entry.Fingerprint)
	}
}

func (s *GormStore) Delete(ctx context.Context, fingerprint string) {
	err := s.db.WithContext(ctx).Delete(&CacheRecord{}, "fingerprint = ?", fingerprint).Error
	if err != nil {
		s.log.Error("cache delete error", "error", err, "fingerprint", fingerprint)
	}
}
