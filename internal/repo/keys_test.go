package repo

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func TestKeys_InsertIfGrantedIsConditional(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	k := EscrowedKey{
		AccessRequestID: uuid.New(), RecordID: uuid.New(),
		WrappedKey: "wrapped", IV: []byte{1, 2, 3},
		OriginalFileName: "scan.png", OriginalFileType: "image/png",
	}
	mock.ExpectExec(`(?s)INSERT\s+INTO\s+access_request_keys.*WHERE\s+EXISTS\s*\(SELECT\s+1\s+FROM\s+access_requests\s+WHERE\s+id\s*=\s*\$1::uuid\s+AND\s+status\s*=\s*'granted'\).*ON\s+CONFLICT`).
		WithArgs(k.AccessRequestID, k.RecordID, "wrapped", []byte{1, 2, 3}, "scan.png", "image/png").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := (&PostgresKeys{db: db}).InsertIfGranted(context.Background(), k); err != nil {
		t.Fatalf("InsertIfGranted: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestKeys_ListByRequestOrdered(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	req := uuid.New()
	r1, r2 := uuid.New(), uuid.New()
	mock.ExpectQuery(`(?s)FROM\s+access_request_keys\s+WHERE\s+access_request_id\s*=\s*\$1\s+ORDER\s+BY\s+position`).
		WithArgs(req).
		WillReturnRows(sqlmock.NewRows([]string{
			"access_request_id", "record_id", "position", "wrapped_key", "iv", "original_file_name", "original_file_type",
		}).
			AddRow(req.String(), r1.String(), 0, "w1", []byte{1}, "a.pdf", "application/pdf").
			AddRow(req.String(), r2.String(), 1, "w2", []byte{2}, "b.png", "image/png"))

	keys, err := (&PostgresKeys{db: db}).ListByRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("ListByRequest: %v", err)
	}
	if len(keys) != 2 || keys[0].RecordID != r1 || keys[1].Position != 1 {
		t.Fatalf("unexpected keys: %+v", keys)
	}
}

func TestKeys_DeleteByRequest(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	req := uuid.New()
	mock.ExpectExec(`DELETE FROM access_request_keys WHERE access_request_id = \$1`).
		WithArgs(req).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := (&PostgresKeys{db: db}).DeleteByRequest(context.Background(), req)
	if err != nil || n != 3 {
		t.Fatalf("DeleteByRequest = %d, %v", n, err)
	}
}
