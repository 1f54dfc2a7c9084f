package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tob/internal/snapshot"
	"tob/pkg/exception"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "tob.db")), &gorm.Config{})
	require.NoError(t, err)
	s, err := New(db)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(t.Context()))
	return s
}

func TestNewRejectsNil(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, exception.ErrNilInstance)
}

func TestSaveUpserts(t *testing.T) {
	s := openStore(t)
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).UnixNano()

	first := snapshot.Snapshot{
		Session:   "a",
		Timestamp: ts,
		LastSeq:   10,
		Books: []snapshot.Entry{
			{Symbol: 1, Stock: "AAPL", BidPrice: 1000000, BidQty: 100},
			{Symbol: 4, Stock: "MSFT", AskPrice: 2000000, AskQty: 5},
		},
	}
	require.NoError(t, s.Save(t.Context(), first))

	second := snapshot.Snapshot{
		Session:   "b",
		Timestamp: ts + int64(time.Second),
		LastSeq:   20,
		Books: []snapshot.Entry{
			{Symbol: 1, Stock: "AAPL", BidPrice: 1000100, BidQty: 40, LastTrade: 1000050},
		},
	}
	require.NoError(t, s.Save(t.Context(), second))
	require.NoError(t, s.Save(t.Context(), snapshot.Snapshot{}))

	got, err := s.Load(t.Context())
	require.NoError(t, err)
	require.Len(t, got.Books, 2)
	assert.Equal(t, "b", got.Session)
	assert.Equal(t, uint32(20), got.LastSeq)
	assert.Equal(t, second.Timestamp, got.Timestamp)
	assert.Equal(t, second.Books[0], got.Books[0])
	assert.Equal(t, first.Books[1], got.Books[1])

	var count int64
	require.NoError(t, s.db.Model(&Book{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
