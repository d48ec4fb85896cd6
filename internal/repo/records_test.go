package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

var recordCols = []string{
	"id", "patient_id", "file_name", "file_type", "file_key", "file_size", "category",
	"iv", "original_name", "original_type", "encryption_key", "ai_summary", "created_at", "updated_at",
}

func TestRecords_CreateWithoutMetadataStoresNulls(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	rec := &MedicalRecord{
		ID: uuid.New(), PatientID: uuid.New(),
		FileName: "old.pdf", FileType: "application/octet-stream", FileKey: "records/x/y",
		Category: CategoryOther,
	}
	now := time.Now()
	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+medical_records.*RETURNING\s+created_at,\s*updated_at`).
		WithArgs(rec.ID, rec.PatientID, "old.pdf", "application/octet-stream", "records/x/y", int64(0), "other",
			nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	if err := (&PostgresRecords{db: db}).Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !rec.CreatedAt.Equal(now) {
		t.Fatalf("created_at not populated")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRecords_ListByPatient(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	patient := uuid.New()
	withMeta, bare := uuid.New(), uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows(recordCols).
		AddRow(withMeta.String(), patient.String(), "labresult.pdf", "application/octet-stream", "k1", int64(10), "lab-result",
			[]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, "labresult.pdf", "application/pdf", "wrapped", nil, now, now).
		AddRow(bare.String(), patient.String(), "legacy.txt", "text/plain", "k2", int64(3), "other",
			nil, nil, nil, nil, nil, now, now)

	mock.ExpectQuery(`(?s)FROM\s+medical_records\s+WHERE\s+patient_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at`).
		WithArgs(patient).
		WillReturnRows(rows)

	recs, err := (&PostgresRecords{db: db}).ListByPatient(context.Background(), patient)
	if err != nil {
		t.Fatalf("ListByPatient: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d", len(recs))
	}
	if !recs[0].HasMetadata() || !recs[0].HasKey() || recs[0].Category != CategoryLabResult {
		t.Fatalf("first record: %+v", recs[0])
	}
	if recs[1].HasMetadata() || recs[1].HasKey() {
		t.Fatalf("second record should be bare: %+v", recs[1])
	}
}

func TestRecords_Delete(t *testing.T) {
	q := `^DELETE FROM medical_records WHERE id = \$1 AND patient_id = \$2$`

	t.Run("owner", func(t *testing.T) {
		db, mock := newDB(t)
		defer db.Close()

		id, patient := uuid.New(), uuid.New()
		mock.ExpectExec(q).WithArgs(id, patient).WillReturnResult(sqlmock.NewResult(0, 1))
		if err := (&PostgresRecords{db: db}).Delete(context.Background(), patient, id); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	})

	t.Run("not owner or missing", func(t *testing.T) {
		db, mock := newDB(t)
		defer db.Close()

		mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))
		err := (&PostgresRecords{db: db}).Delete(context.Background(), uuid.New(), uuid.New())
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("db error", func(t *testing.T) {
		db, mock := newDB(t)
		defer db.Close()

		mock.ExpectExec(q).WillReturnError(errors.New("db down"))
		err := (&PostgresRecords{db: db}).Delete(context.Background(), uuid.New(), uuid.New())
		if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
			t.Fatalf("expected wrapped db error, got %v", err)
		}
	})
}
