package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func nullInt64(v int64) sql.NullInt64 { return sql.NullInt64{Int64: v, Valid: true} }

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewStore(db, testLogger()), mock
}

func TestRegionGetOrCreateInsertsOnFirstSight(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name FROM regions WHERE name = $1`)).
		WithArgs("EUW").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	mock.ExpectQuery(`INSERT INTO regions`).
		WithArgs("EUW").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(3, "EUW"))

	region, err := s.Regions.GetOrCreate(context.Background(), "EUW")
	require.NoError(t, err)
	assert.Equal(t, int64(3), region.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRejectsExistingMatch(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM historical_matches WHERE match_id = \$1 AND region_id = \$2`).
		WithArgs(int64(100), int64(1)).
		WillReturnRows(matchRows().AddRow(
			1, 100, 1, nil, nil, nil, nil, nil, nil, nil))

	err := s.Matches.Claim(context.Background(), 100, 1)
	assert.ErrorIs(t, err, ErrMatchTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimInsertsBareRow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM historical_matches`).
		WithArgs(int64(100), int64(1)).
		WillReturnRows(matchRows())
	mock.ExpectExec(`INSERT INTO historical_matches \(match_id, region_id\)`).
		WithArgs(int64(100), int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.Matches.Claim(context.Background(), 100, 1)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimMapsUniqueViolationToMatchTaken(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM historical_matches`).
		WithArgs(int64(100), int64(1)).
		WillReturnRows(matchRows())
	mock.ExpectExec(`INSERT INTO historical_matches`).
		WithArgs(int64(100), int64(1)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.Matches.Claim(context.Background(), 100, 1)
	assert.ErrorIs(t, err, ErrMatchTaken)
}

func TestAttachResultPreservesExistingValues(t *testing.T) {
	s, mock := newMockStore(t)

	// COALESCE keeps already-filled columns, so concurrent repairs never
	// overwrite each other.
	mock.ExpectExec(`UPDATE historical_matches\s+SET game_version_id = COALESCE`).
		WithArgs(int64(100), int64(1), sqlmock.AnyArg(), int64(1801), `{"gameId":100}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Matches.AttachResult(context.Background(), 100, 1, nullInt64(7), 1801, []byte(`{"gameId":100}`))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncompleteSweepFlagsMissingPieces(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT\s+hm\.match_id`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"match_id", "version_missing", "result_missing", "timeline_missing", "history_missing"}).
			AddRow(100, false, false, true, true).
			AddRow(101, true, true, true, true))

	rows, err := s.Matches.Incomplete(context.Background(), 1, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.False(t, rows[0].ResultMissing)
	assert.True(t, rows[0].TimelineMissing)
	assert.True(t, rows[1].VersionMissing)
}

func TestIncompleteSweepFiltersBySemver(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`AND gv\.semver = \$2`).
		WithArgs(int64(1), "8.15.236.12").
		WillReturnRows(sqlmock.NewRows(
			[]string{"match_id", "version_missing", "result_missing", "timeline_missing", "history_missing"}))

	rows, err := s.Matches.Incomplete(context.Background(), 1, "8.15.236.12")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGetMatchNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM historical_matches`).
		WithArgs(int64(5), int64(1)).
		WillReturnRows(matchRows())

	_, err := s.Matches.Get(context.Background(), 5, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSummonerUpsertRefreshesName(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO summoners`).
		WithArgs(int64(1), int64(77), int64(42), "NewName").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "region_id", "account_id", "summoner_id", "latest_name"}).
			AddRow(9, 1, 77, 42, "NewName"))

	summoner, err := s.Summoners.Upsert(context.Background(), 1, 77, 42, "NewName")
	require.NoError(t, err)
	assert.Equal(t, int64(9), summoner.ID)
	assert.Equal(t, "NewName", summoner.LatestName)
}

func matchRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "match_id", "region_id", "game_version_id", "regional_tier_avg",
		"regional_tier_meta", "game_duration", "match_result_json",
		"match_timeline_json", "match_participants_histories_json",
	})
}
