package pg

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/username/archflow/pkg/core"
	"github.com/username/archflow/pkg/spi"
)

// CursorModel is the single-row cursor record in the database
type CursorModel struct {
	ID           uint   `gorm:"primaryKey;autoIncrement:false"`
	LastImported uint64 `gorm:"not null"`
	LastHash     string `gorm:"size:66;not null"`
	Mode         string `gorm:"size:16;not null"`
	UpdatedAt    time.Time
}

// Store implements spi.CursorStore using PostgreSQL
type Store struct {
	db *gorm.DB
}

var _ spi.CursorStore = (*Store)(nil)

// NewStore creates a new PostgreSQL store
func NewStore(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn), // Warn level for production
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&CursorModel{}); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Load(ctx context.Context) (*core.Cursor, error) {
	var model CursorModel
	result := s.db.WithContext(ctx).First(&model, 1)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil // No cursor yet
		}
		return nil, result.Error
	}
	return &core.Cursor{
		LastImported: model.LastImported,
		LastHash:     common.HexToHash(model.LastHash),
		Mode:         core.Mode(model.Mode),
	}, nil
}

func (s *Store) Save(ctx context.Context, cursor *core.Cursor) error {
	model := CursorModel{
		ID:           1,
		LastImported: cursor.LastImported,
		LastHash:     cursor.LastHash.Hex(),
		Mode:         string(cursor.Mode),
		UpdatedAt:    time.Now(),
	}
	// Use Save to upsert (primary key is fixed at 1)
	return s.db.WithContext(ctx).Save(&model).Error
}
