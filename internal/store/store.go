// Package store keeps the latest top of book per symbol in a SQL table.
package store

import (
	"context"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tob/internal/schema"
	"tob/internal/snapshot"
	"tob/pkg/exception"
)

const batchSize = 256

// Book is one row per symbol. Prices carry four implied decimals.
type Book struct {
	Symbol    uint16 `gorm:"primaryKey;autoIncrement:false"`
	Stock     string `gorm:"size:8"`
	BidPrice  int64
	BidQty    int64
	AskPrice  int64
	AskQty    int64
	LastTrade int64
	Session   string `gorm:"size:36;index"`
	LastSeq   uint32
	// nanoseconds
	SnapshotAt int64
}

func (Book) TableName() string {
	return "tob_books"
}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, exception.ErrNilInstance
	}
	return &Store{db: db}, nil
}

// Migrate creates or updates the book table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Book{}); err != nil {
		return errors.Wrap(err, "migrate tob_books")
	}
	return nil
}

// Save upserts every book of the snapshot in one transaction.
func (s *Store) Save(ctx context.Context, snap snapshot.Snapshot) error {
	if len(snap.Books) == 0 {
		return nil
	}
	rows := make([]Book, 0, len(snap.Books))
	for _, e := range snap.Books {
		rows = append(rows, Book{
			Symbol:     uint16(e.Symbol),
			Stock:      e.Stock,
			BidPrice:   int64(e.BidPrice),
			BidQty:     int64(e.BidQty),
			AskPrice:   int64(e.AskPrice),
			AskQty:     int64(e.AskQty),
			LastTrade:  int64(e.LastTrade),
			Session:    snap.Session,
			LastSeq:    snap.LastSeq,
			SnapshotAt: snap.Timestamp,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			UpdateAll: true,
		}).CreateInBatches(rows, batchSize).Error
	})
	if err != nil {
		return errors.Wrapf(err, "save %d books", len(rows))
	}
	return nil
}

// Load reads all rows back as a snapshot ordered by symbol.
func (s *Store) Load(ctx context.Context) (snapshot.Snapshot, error) {
	var rows []Book
	if err := s.db.WithContext(ctx).Order("symbol").Find(&rows).Error; err != nil {
		return snapshot.Snapshot{}, errors.Wrap(err, "load books")
	}

	var snap snapshot.Snapshot
	for _, r := range rows {
		snap.Books = append(snap.Books, snapshot.Entry{
			Symbol:    schema.SymbolIndex(r.Symbol),
			Stock:     r.Stock,
			BidPrice:  schema.Price(r.BidPrice),
			BidQty:    schema.Quantity(r.BidQty),
			AskPrice:  schema.Price(r.AskPrice),
			AskQty:    schema.Quantity(r.AskQty),
			LastTrade: schema.Price(r.LastTrade),
		})
		if r.LastSeq > snap.LastSeq {
			snap.LastSeq = r.LastSeq
			snap.Session = r.Session
		}
		if r.SnapshotAt > snap.Timestamp {
			snap.Timestamp = r.SnapshotAt
		}
	}
	return snap, nil
}
