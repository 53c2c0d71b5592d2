package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/heist-sync/pkg/types"
)

type identityRow struct {
	Profile     string `gorm:"primaryKey"`
	PlayerID    string `gorm:"not null"`
	DisplayName string
	UpdatedAt   time.Time
}

func (identityRow) TableName() string { return "client_identities" }

// SQLBackend keeps identities in a shared database so several client
// processes can reuse one profile.
type SQLBackend struct {
	db      *gorm.DB
	profile string
}

// OpenSQL connects to postgres and migrates the identity table.
func OpenSQL(dsn, profile string) (*SQLBackend, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open identity db: %w", err)
	}
	return NewSQLBackend(db, profile)
}

func NewSQLBackend(db *gorm.DB, profile string) (*SQLBackend, error) {
	if profile == "" {
		profile = "default"
	}
	if err := db.AutoMigrate(&identityRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate identity table: %w", err)
	}
	return &SQLBackend{db: db, profile: profile}, nil
}

func (b *SQLBackend) Load(ctx context.Context) (Identity, error) {
	var row identityRow
	err := b.db.WithContext(ctx).First(&row, "profile = ?", b.profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, ErrNotFound
	}
	if err != nil {
		return Identity{}, err
	}
	return Identity{ID: types.PlayerID(row.PlayerID), DisplayName: row.DisplayName}, nil
}

// Create inserts the row unless the profile already has one.
func (b *SQLBackend) Create(ctx context.Context, id Identity) error {
	row := identityRow{Profile: b.profile, PlayerID: string(id.ID), DisplayName: id.DisplayName}
	return b.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

// Save upserts the display name. The player id of an existing row is never
// rewritten.
func (b *SQLBackend) Save(ctx context.Context, id Identity) error {
	row := identityRow{Profile: b.profile, PlayerID: string(id.ID), DisplayName: id.DisplayName}
	return b.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "profile"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "updated_at"}),
		}).
		Create(&row).Error
}

func (b *SQLBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
