package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"osops-utils/pkg/model"
)

// nodeRecord is the SQL row behind a node. The document column holds the
// full JSON record; environment is denormalised so searches can scope in SQL.
type nodeRecord struct {
	Name        string    `gorm:"primaryKey;size:191"`
	Environment string    `gorm:"index;size:128"`
	Document    string    `gorm:"type:text"`
	Revision    int64     `gorm:"not null;default:0"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (nodeRecord) TableName() string { return "node_records" }

func (r nodeRecord) decode() (model.Node, error) {
	var n model.Node
	if err := json.Unmarshal([]byte(r.Document), &n); err != nil {
		return model.Node{}, fmt.Errorf("decode node %s: %w", r.Name, err)
	}
	n.Revision = r.Revision
	return n, nil
}

// GormStore keeps node records in a relational database through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewMySQLStore opens a MySQL-backed registry from a go-sql-driver DSN.
func NewMySQLStore(dsn string) (*GormStore, error) {
	return NewGormStore(mysql.Open(dsn))
}

// NewGormStore opens a registry on any gorm dialector and migrates the schema.
func NewGormStore(dialector gorm.Dialector) (*GormStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(20)
	}
	if err := db.AutoMigrate(&nodeRecord{}); err != nil {
		return nil, fmt.Errorf("migrate registry db: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) UpsertNode(ctx context.Context, n model.Node) (model.Node, error) {
	if n.Name == "" {
		return n, fmt.Errorf("node name is required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec nodeRecord
		err := tx.Where("name = ?", n.Name).First(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = nodeRecord{Name: n.Name}
		case err != nil:
			return err
		}
		n.Revision = rec.Revision + 1
		b, err := json.Marshal(n)
		if err != nil {
			return err
		}
		rec.Environment = n.Environment
		rec.Document = string(b)
		rec.Revision = n.Revision
		return tx.Save(&rec).Error
	})
	if err != nil {
		return n, fmt.Errorf("upsert node %s: %w", n.Name, err)
	}
	return n, nil
}

func (s *GormStore) GetNode(ctx context.Context, name string) (model.Node, bool, error) {
	var rec nodeRecord
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Node{}, false, nil
	}
	if err != nil {
		return model.Node{}, false, fmt.Errorf("get node %s: %w", name, err)
	}
	n, err := rec.decode()
	if err != nil {
		return model.Node{}, false, err
	}
	return n, true, nil
}

func (s *GormStore) ListNodes(ctx context.Context) ([]model.Node, error) {
	return s.find(s.db.WithContext(ctx))
}

func (s *GormStore) DeleteNode(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&nodeRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete node %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNodeNotFound
	}
	return nil
}

func (s *GormStore) Search(ctx context.Context, query string) ([]model.Node, error) {
	q, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}
	tx := s.db.WithContext(ctx)
	if env, ok := q.Environment(); ok {
		tx = tx.Where("environment = ?", env)
	}
	nodes, err := s.find(tx)
	if err != nil {
		return nil, err
	}
	return Filter(nodes, q), nil
}

func (s *GormStore) find(tx *gorm.DB) ([]model.Node, error) {
	var recs []nodeRecord
	if err := tx.Order("name").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	out := make([]model.Node, 0, len(recs))
	for _, rec := range recs {
		n, err := rec.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// DB exposes the underlying gorm handle.
func (s *GormStore) DB() *gorm.DB { return s.db }

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
