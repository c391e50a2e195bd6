package repositories

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/anhct/chirper/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return gdb, mock
}

func TestCreateFollowInsertsRow(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewPostgresFollowRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "follows"`).
		WithArgs(uint(1), uint(2), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	follow := &models.Follow{FollowerID: 1, FollowingID: 2}
	require.NoError(t, repo.CreateFollow(follow))
	assert.Equal(t, uint(7), follow.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFollowPropagatesConstraintViolation(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewPostgresFollowRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "follows"`).
		WillReturnError(gorm.ErrDuplicatedKey)
	mock.ExpectRollback()

	err := repo.CreateFollow(&models.Follow{FollowerID: 1, FollowingID: 2})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteFollowRemovesRow(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewPostgresFollowRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "follows"`).
		WithArgs(uint(1), uint(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteFollow(1, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteFollowAbsentRowIsNotAnError(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewPostgresFollowRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "follows"`).
		WithArgs(uint(1), uint(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteFollow(1, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsFollowing(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewPostgresFollowRepository(gdb)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "follows"`).
		WithArgs(uint(1), uint(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	following, err := repo.IsFollowing(1, 2)
	require.NoError(t, err)
	assert.True(t, following)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "follows"`).
		WithArgs(uint(1), uint(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	following, err = repo.IsFollowing(1, 3)
	require.NoError(t, err)
	assert.False(t, following)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAllFollows(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewPostgresFollowRepository(gdb)

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "follows"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "follower_id", "following_id", "created_at"}).
			AddRow(1, 1, 2, now).
			AddRow(2, 2, 3, now))

	follows, err := repo.GetAllFollows()
	require.NoError(t, err)
	require.Len(t, follows, 2)
	assert.Equal(t, uint(1), follows[0].FollowerID)
	assert.Equal(t, uint(2), follows[0].FollowingID)
	assert.Equal(t, uint(3), follows[1].FollowingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFollowCounts(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewPostgresFollowRepository(gdb)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "follows"`).
		WithArgs(uint(5)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	count, err := repo.GetFollowersCount(5)
	require.NoError(t, err)
	assert.Equal(t, int64(12), count)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "follows"`).
		WithArgs(uint(5)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err = repo.GetFollowingCount(5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
