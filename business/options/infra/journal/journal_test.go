package journal_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/business/options/infra/journal"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

func testEvent() domain.Event {
	return domain.NewExercised("OPYN_GAMMA",
		common.HexToAddress("0xa11ce"),
		common.HexToAddress("0x0700"),
		0,
		big.NewInt(10_000_000),
		big.NewInt(12_500_000_000_000_000),
		time.Date(2021, 1, 29, 9, 0, 0, 0, time.UTC),
	)
}

func TestConsole_Record(t *testing.T) {
	var buf bytes.Buffer
	sink := journal.NewConsole(logger.New(&buf, logger.LevelInfo, "journal", nil))

	require.NoError(t, sink.Record(context.Background(), testEvent()))
	out := buf.String()
	assert.Contains(t, out, `"type":"exercised"`)
	assert.Contains(t, out, `"value":"12500000000000000"`)
	assert.NoError(t, sink.Close())
}

func TestPostgres_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sink, err := journal.NewPostgres(db, "adapter_events", logger.NewNop())
	require.NoError(t, err)

	e := testEvent()
	mock.ExpectExec("INSERT INTO adapter_events").
		WithArgs(
			e.ID.String(),
			"exercised",
			"OPYN_GAMMA",
			e.Caller.Hex(),
			e.Token.Hex(),
			int64(0),
			"10000000",
			"12500000000000000",
			int64(0),
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, sink.Record(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sink, err := journal.NewPostgres(db, "adapter_events", logger.NewNop())
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO adapter_events").WillReturnError(errors.New("connection reset"))

	err = sink.Record(context.Background(), testEvent())
	assert.True(t, apperror.HasCode(err, apperror.CodeJournalWriteFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_EnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sink, err := journal.NewPostgres(db, "events", logger.NewNop())
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS events").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, sink.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgres_RejectsBadTableName(t *testing.T) {
	_, err := journal.NewPostgres(nil, "events; DROP TABLE x", logger.NewNop())
	assert.Error(t, err)
}

func TestPostgres_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	sink, err := journal.NewPostgres(db, "events", logger.NewNop())
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.Error(t, sink.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
