package staticdata

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftwatch/riftwatch/internal/store"
)

func TestMajorMinor(t *testing.T) {
	assert.Equal(t, "8.15", MajorMinor("8.15.236.12"))
	assert.Equal(t, "8.15", MajorMinor("8.15.1"))
	assert.Equal(t, "8.15", MajorMinor("8.15"))
	assert.Equal(t, "8", MajorMinor("8"))
}

func TestMatchVersionPicksEarliestKnown(t *testing.T) {
	known := []store.GameVersion{
		{ID: 1, Semver: "8.15.1"},
		{ID: 2, Semver: "8.15.2"},
		{ID: 3, Semver: "8.16.1"},
	}

	v := matchVersion(known, "8.15")
	assert.NotNil(t, v)
	assert.Equal(t, int64(1), v.ID, "first listed version of the patch wins")

	assert.Nil(t, matchVersion(known, "9.1"))
}

func TestCatalogForUngatheredVersion(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	st := store.NewStore(sqlx.NewDb(mockDB, "sqlmock"), zerolog.Nop())

	mock.ExpectQuery(`SELECT sgd.items_json`).
		WithArgs("8.15.1").
		WillReturnRows(sqlmock.NewRows([]string{"items_json"}))

	_, err = NewCatalogs(st).CatalogFor(context.Background(), "8.15.1")
	assert.ErrorIs(t, err, ErrMissingItems)
	assert.NoError(t, mock.ExpectationsWereMet())
}
