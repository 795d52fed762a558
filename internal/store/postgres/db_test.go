package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func TestPing(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	defer db.Close()

	mock.ExpectPing()
	if err := Ping(context.Background(), db); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	down := errors.New("connection refused")
	mock.ExpectPing().WillReturnError(down)
	if err := Ping(context.Background(), db); !errors.Is(err, down) {
		t.Fatalf("Ping() error = %v, want %v", err, down)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
	if err := Ping(context.Background(), nil); err == nil {
		t.Fatalf("Ping(nil) should fail")
	}
}
