package reader_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/passbatch/pkg/batch/component/step/reader"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
)

type row struct {
	Seq  int64
	Name string
}

func scanRow(rows *sql.Rows) (row, error) {
	var r row
	err := rows.Scan(&r.Seq, &r.Name)
	return r, err
}

const selectRows = "SELECT seq, name FROM things WHERE status = ? ORDER BY seq"

func TestCursorReader_StreamsAllRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT seq, name FROM things").
		WithArgs("READY").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "name"}).
			AddRow(1, "one").
			AddRow(2, "two").
			AddRow(3, "three"))

	r := reader.NewCursorReader[row]("thingReader", db, "sqlite", selectRows, []interface{}{"READY"}, scanRow)

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

	ec, err := r.GetExecutionContext(ctx)
	require.NoError(t, err)
	pos, ok := ec.GetInt("reader.position")
	assert.True(t, ok)
	assert.Equal(t, 3, pos)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCursorReader_OpenSkipsToCheckpointedPosition(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT seq, name FROM things").
		WithArgs("READY").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "name"}).
			AddRow(1, "one").
			AddRow(2, "two").
			AddRow(3, "three"))

	r := reader.NewCursorReader[row]("thingReader", db, "sqlite", selectRows, []interface{}{"READY"}, scanRow)

	ec := model.NewExecutionContext()
	ec.Put("reader.position", 2)

	ctx := context.Background()
	require.NoError(t, r.Open(ctx, ec))
	defer r.Close(ctx)

	item, err := r.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, row{3, "three"}, item)

	_, err = r.Read(ctx)
	assert.ErrorIs(t, err, port.ErrNoMoreItems)
}

func TestCursorReader_DisabledPositionRestoreDeliversAllPendingRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// The previous run committed three rows and flipped the flag the
	// predicate selects on, so the re-executed query returns only the
	// pending ones. The checkpointed position must not skip them.
	mock.ExpectQuery("SELECT seq, name FROM things").
		WithArgs("READY").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "name"}).
			AddRow(4, "four").
			AddRow(5, "five"))

	r := reader.NewCursorReader[row]("thingReader", db, "sqlite", selectRows, []interface{}{"READY"}, scanRow).
		DisablePositionRestore()

	ec := model.NewExecutionContext()
	ec.Put("reader.position", 3)

	ctx := context.Background()
	require.NoError(t, r.Open(ctx, ec))
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
	assert.Equal(t, []row{{4, "four"}, {5, "five"}}, got)
}

func TestCursorReader_ReadBeforeOpenFails(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := reader.NewCursorReader[row]("thingReader", db, "sqlite", selectRows, nil, scanRow)
	_, err = r.Read(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before Open")
}

func TestRebind(t *testing.T) {
	query := "SELECT * FROM t WHERE a = ? AND b = ?"

	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", reader.Rebind("postgres", query))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", reader.Rebind("redshift", query))
	assert.Equal(t, query, reader.Rebind("mysql", query))
	assert.Equal(t, query, reader.Rebind("sqlite", query))
}
