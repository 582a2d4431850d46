// Package store archives finished games. The room layer only sees the
// Archive interface; deployments without a database get the noop.
package store

import (
	"context"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type GameRecord struct {
	ID            uint   `gorm:"primaryKey"`
	RoomID        string `gorm:"index"`
	WinnerID      string
	WinnerName    string
	Round         int
	CalledNumbers string `gorm:"type:json"` // ordered draw history as a JSON array
	FinishedAt    time.Time
}

type Archive interface {
	SaveResult(ctx context.Context, rec GameRecord) error
}

type Noop struct{}

func (Noop) SaveResult(context.Context, GameRecord) error { return nil }

type Postgres struct {
	db *gorm.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&GameRecord{}); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) SaveResult(ctx context.Context, rec GameRecord) error {
	return p.db.WithContext(ctx).Create(&rec).Error
}
