package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

// The unread counter has two concurrent writers (increment on message, reset
// on read), so both writes must reach the database as one UPDATE each, with
// the increment expressed in SQL rather than read back and written.
func TestIncrementUnreadIsOneAtomicUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepository(db)

	mock.ExpectExec(`UPDATE "room_members" SET "unread_count"=unread_count \+ 1 WHERE room_id = \$1 AND user_id <> \$2`).
		WithArgs("room-1", "alice").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.IncrementUnread(context.Background(), "room-1", "alice"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetUnreadTouchesOnlyOneMember(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepository(db)

	mock.ExpectExec(`UPDATE "room_members" SET "unread_count"=\$1 WHERE room_id = \$2 AND user_id = \$3`).
		WithArgs(0, "room-1", "bob").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ResetUnread(context.Background(), "room-1", "bob"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
