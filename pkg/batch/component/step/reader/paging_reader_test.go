package reader_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/passbatch/pkg/batch/component/step/reader"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
)

func TestPagingReader_FetchesPagesUntilShortPage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("LIMIT 2 OFFSET 0").
		WithArgs("READY").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "name"}).
			AddRow(1, "one").
			AddRow(2, "two"))
	mock.ExpectQuery("LIMIT 2 OFFSET 2").
		WithArgs("READY").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "name"}).
			AddRow(3, "three"))

	r := reader.NewPagingReader[row]("thingReader", db, "sqlite", selectRows, []interface{}{"READY"}, 2, scanRow)

	ctx := context.Background()
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	defer r.Close(ctx)

	var got []row
	for {
		item, err := r.Read(ctx)
		if err == port.ErrNoMoreItems {
			break
		}
		require.NoError(t, err)
		got = append(got, item)
	}

	assert.Equal(t, []row{{1, "one"}, {2, "two"}, {3, "three"}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPagingReader_RestoresOffsetFromCheckpoint(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("LIMIT 2 OFFSET 4").
		WithArgs("READY").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "name"}).
			AddRow(5, "five"))

	r := reader.NewPagingReader[row]("thingReader", db, "sqlite", selectRows, []interface{}{"READY"}, 2, scanRow)

	ec := model.NewExecutionContext()
	ec.Put("reader.position", 4)

	ctx := context.Background()
	require.NoError(t, r.Open(ctx, ec))
	defer r.Close(ctx)

	item, err := r.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, row{5, "five"}, item)

	_, err = r.Read(ctx)
	assert.ErrorIs(t, err, port.ErrNoMoreItems)

	outEC, err := r.GetExecutionContext(ctx)
	require.NoError(t, err)
	pos, ok := outEC.GetInt("reader.position")
	assert.True(t, ok)
	assert.Equal(t, 5, pos)
}

func TestPagingReader_EmptyFirstPageMeansNoItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("LIMIT 2 OFFSET 0").
		WithArgs("READY").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "name"}))

	r := reader.NewPagingReader[row]("thingReader", db, "sqlite", selectRows, []interface{}{"READY"}, 2, scanRow)

	ctx := context.Background()
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	defer r.Close(ctx)

	_, err = r.Read(ctx)
	assert.ErrorIs(t, err, port.ErrNoMoreItems)
	assert.NoError(t, mock.ExpectationsWereMet())
}
