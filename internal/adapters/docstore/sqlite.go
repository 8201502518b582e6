package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/waypoint/pkg/logger"
)

// document is one row of the documents table.
type document struct {
	Namespace string         `gorm:"primaryKey;size:191"`
	Name      string         `gorm:"primaryKey;size:191"`
	Body      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

func (document) TableName() string { return "documents" }

// SQLiteStore keeps documents in one table of a SQLite database.
type SQLiteStore struct {
	mu  sync.Mutex
	db  *gorm.DB
	log logger.Logger
}

// NewSQLiteStore opens (or creates) the database at path. An empty path opens
// a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStorage, dsn, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	// one connection keeps :memory: a single database and serialises writers
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).AutoMigrate(&document{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: migrate: %w", ErrStorage, err)
	}

	o := buildOptions(opts)
	return &SQLiteStore{db: db, log: o.log.Named("docstore.sqlite")}, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, key Key) (json.RawMessage, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc document
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND name = ?", key.Namespace, key.Name).
		Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return slices.Clone(emptyDocument), nil
	}
	if err != nil {
		s.log.Error(ctx, "load document", logger.String("key", key.String()), logger.Error(err))
		return nil, fmt.Errorf("%w: load %s: %w", ErrStorage, key, err)
	}
	return json.RawMessage(doc.Body), nil
}

// Save upserts the row for key.
func (s *SQLiteStore) Save(ctx context.Context, key Key, doc json.RawMessage) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateDocument(doc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row := document{
		Namespace: key.Namespace,
		Name:      key.Name,
		Body:      datatypes.JSON(slices.Clone(doc)),
		UpdatedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		s.log.Error(ctx, "save document", logger.String("key", key.String()), logger.Error(err))
		return fmt.Errorf("%w: save %s: %w", ErrStorage, key, err)
	}
	return nil
}

// Keys implements Store.
func (s *SQLiteStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	names := []string{}
	err := s.db.WithContext(ctx).Model(&document{}).
		Where("namespace = ?", namespace).
		Order("name").
		Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrStorage, namespace, err)
	}
	return names, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return sqlDB.Close()
}
