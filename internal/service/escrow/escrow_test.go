package escrow

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/medvault_backend/internal/repo"
	"github.com/Alijeyrad/medvault_backend/internal/repo/repotest"
	"github.com/Alijeyrad/medvault_backend/pkg/crypto"
)

type fixture struct {
	svc       *escrowService
	store     *repotest.Store
	logs      *bytes.Buffer
	master    []byte
	doctorID  uuid.UUID
	patientID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	master, err := crypto.GenerateKey()
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := repotest.New()

	return &fixture{
		// The in-memory store ignores the handle, so no database is needed.
		svc:       New(nil, store, master, logger, nil).(*escrowService),
		store:     store,
		logs:      logs,
		master:    master,
		doctorID:  uuid.New(),
		patientID: uuid.New(),
	}
}

// addRecord stores a record of the fixture patient and returns its id and
// raw key. A nil key means no encryption metadata.
func (f *fixture) addRecord(t *testing.T, name string, withMetadata bool) (uuid.UUID, []byte) {
	t.Helper()

	rec := &repo.MedicalRecord{
		ID:        uuid.New(),
		PatientID: f.patientID,
		FileName:  name,
		FileType:  "application/octet-stream",
		FileKey:   "records/" + f.patientID.String() + "/" + uuid.NewString(),
		Category:  repo.CategoryReport,
	}

	var key []byte
	if withMetadata {
		var err error
		key, err = crypto.GenerateKey()
		require.NoError(t, err)
		wrapped, err := crypto.WrapKey(f.master, key)
		require.NoError(t, err)

		typ := "application/pdf"
		rec.IV = crypto.IV{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
		rec.OriginalName, rec.OriginalType = &name, &typ
		rec.EncryptionKey = &wrapped
	}
	require.NoError(t, f.store.Records(nil).Create(context.Background(), rec))
	return rec.ID, key
}

func (f *fixture) addRequest(t *testing.T, status repo.Status, at time.Time) *repo.AccessRequest {
	t.Helper()

	ar := &repo.AccessRequest{
		ID:          uuid.New(),
		DoctorID:    f.doctorID,
		PatientID:   f.patientID,
		DoctorName:  "Dr. Who",
		PatientName: "Pat",
		Status:      repo.StatusPending,
		RequestedAt: at,
	}
	ctx := context.Background()
	requests := f.store.AccessRequests(nil)
	require.NoError(t, requests.Create(ctx, ar))

	switch status {
	case repo.StatusGranted, repo.StatusDenied:
		require.NoError(t, requests.Resolve(ctx, ar.ID, status, at))
	case repo.StatusRevoked:
		require.NoError(t, requests.Resolve(ctx, ar.ID, repo.StatusGranted, at))
		require.NoError(t, requests.Revoke(ctx, ar.ID, at))
	}
	ar.Status = status
	return ar
}

func TestEscrowAllKeysFor_SkipsRecordsWithoutMetadata(t *testing.T) {
	f := newFixture(t)
	first, firstKey := f.addRecord(t, "a.pdf", true)
	bare, _ := f.addRecord(t, "legacy.pdf", false)
	second, secondKey := f.addRecord(t, "b.pdf", true)

	keys, err := f.svc.EscrowAllKeysFor(context.Background(), f.patientID, f.doctorID)
	require.NoError(t, err)
	require.Len(t, keys, 2)

	assert.Equal(t, first, keys[0].RecordID)
	assert.Equal(t, crypto.KeyToHex(firstKey), keys[0].Key)
	assert.Equal(t, "a.pdf", keys[0].OriginalFileName)
	assert.Equal(t, "application/pdf", keys[0].OriginalFileType)
	assert.Equal(t, crypto.IV{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, keys[0].IV)

	assert.Equal(t, second, keys[1].RecordID)
	assert.Equal(t, crypto.KeyToHex(secondKey), keys[1].Key)

	out := f.logs.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "skipping record without encryption metadata")
	assert.Contains(t, out, bare.String())
}

func TestEscrowAllKeysFor_SkipsUnreadableKeys(t *testing.T) {
	f := newFixture(t)
	good, _ := f.addRecord(t, "good.pdf", true)

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	wrapped, err := crypto.WrapKey(other, key)
	require.NoError(t, err)

	name, typ := "foreign.pdf", "application/pdf"
	require.NoError(t, f.store.Records(nil).Create(context.Background(), &repo.MedicalRecord{
		ID:            uuid.New(),
		PatientID:     f.patientID,
		FileName:      name,
		Category:      repo.CategoryOther,
		IV:            make(crypto.IV, crypto.IVSize),
		OriginalName:  &name,
		OriginalType:  &typ,
		EncryptionKey: &wrapped,
	}))

	keys, err := f.svc.EscrowAllKeysFor(context.Background(), f.patientID, f.doctorID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, good, keys[0].RecordID)
	assert.Contains(t, f.logs.String(), "unreadable keys")
}

func TestEscrowAllKeysFor_NoRecords(t *testing.T) {
	f := newFixture(t)
	keys, err := f.svc.EscrowAllKeysFor(context.Background(), f.patientID, f.doctorID)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestDepositAndScrub(t *testing.T) {
	f := newFixture(t)
	f.addRecord(t, "a.pdf", true)
	f.addRecord(t, "b.pdf", true)
	ar := f.addRequest(t, repo.StatusGranted, time.Now())
	ctx := context.Background()

	require.NoError(t, f.svc.Deposit(ctx, nil, ar))
	assert.Equal(t, 2, f.store.KeyCount(ar.ID))

	bundle, err := f.svc.Bundle(ctx, f.doctorID, ar.ID)
	require.NoError(t, err)
	direct, err := f.svc.EscrowAllKeysFor(ctx, f.patientID, f.doctorID)
	require.NoError(t, err)
	assert.Equal(t, direct, bundle)

	// Rows are wrapped with fresh nonces, never copied from the record.
	rows, err := f.store.Keys(nil).ListByRequest(ctx, ar.ID)
	require.NoError(t, err)
	rec, err := f.store.Records(nil).Get(ctx, rows[0].RecordID)
	require.NoError(t, err)
	assert.NotEqual(t, *rec.EncryptionKey, rows[0].WrappedKey)

	require.NoError(t, f.svc.Scrub(ctx, nil, ar.ID))
	assert.Equal(t, 0, f.store.KeyCount(ar.ID))
}

func TestDeposit_EmptyBundle(t *testing.T) {
	f := newFixture(t)
	f.addRecord(t, "legacy.pdf", false)
	ar := f.addRequest(t, repo.StatusGranted, time.Now())

	require.NoError(t, f.svc.Deposit(context.Background(), nil, ar))
	assert.Equal(t, 0, f.store.KeyCount(ar.ID))
}

func TestFetchKeyFor_Gating(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		history []repo.Status
		wantErr error
	}{
		{name: "no request", wantErr: ErrAuthorization},
		{name: "pending", history: []repo.Status{repo.StatusPending}, wantErr: ErrAuthorization},
		{name: "denied", history: []repo.Status{repo.StatusDenied}, wantErr: ErrAuthorization},
		{name: "revoked", history: []repo.Status{repo.StatusRevoked}, wantErr: ErrAuthorization},
		{name: "granted", history: []repo.Status{repo.StatusGranted}},
		{name: "granted after denial", history: []repo.Status{repo.StatusDenied, repo.StatusGranted}},
		{name: "pending after revoke", history: []repo.Status{repo.StatusRevoked, repo.StatusPending}, wantErr: ErrAuthorization},
		{name: "denied after revoke", history: []repo.Status{repo.StatusRevoked, repo.StatusDenied}, wantErr: ErrAuthorization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			recordID, key := f.addRecord(t, "labresult.pdf", true)
			for i, status := range tt.history {
				f.addRequest(t, status, base.Add(time.Duration(i)*time.Hour))
			}

			got, err := f.svc.FetchKeyFor(context.Background(), f.doctorID, f.patientID, recordID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, crypto.KeyToHex(key), got.Key)
			assert.Equal(t, "labresult.pdf", got.OriginalFileName)
		})
	}
}

func TestFetchKeyFor_WarmsBundle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ar := f.addRequest(t, repo.StatusGranted, time.Now())

	// Uploaded after the grant, so absent from the bundle.
	recordID, key := f.addRecord(t, "late.pdf", true)
	require.Equal(t, 0, f.store.KeyCount(ar.ID))

	got, err := f.svc.FetchKeyFor(ctx, f.doctorID, f.patientID, recordID)
	require.NoError(t, err)
	assert.Equal(t, crypto.KeyToHex(key), got.Key)
	assert.Equal(t, 1, f.store.KeyCount(ar.ID))

	again, err := f.svc.FetchKeyFor(ctx, f.doctorID, f.patientID, recordID)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, 1, f.store.KeyCount(ar.ID))
}

func TestFetchKeyFor_NoWarmAfterRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ar := f.addRequest(t, repo.StatusRevoked, time.Now())
	recordID, _ := f.addRecord(t, "a.pdf", true)

	_, err := f.svc.FetchKeyFor(ctx, f.doctorID, f.patientID, recordID)
	assert.ErrorIs(t, err, ErrAuthorization)
	assert.Equal(t, 0, f.store.KeyCount(ar.ID))
}

func TestFetchKeyFor_RecordErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addRequest(t, repo.StatusGranted, time.Now())
	bare, _ := f.addRecord(t, "legacy.pdf", false)

	_, err := f.svc.FetchKeyFor(ctx, f.doctorID, f.patientID, bare)
	assert.ErrorIs(t, err, ErrMissingMetadata)

	_, err = f.svc.FetchKeyFor(ctx, f.doctorID, f.patientID, uuid.New())
	assert.ErrorIs(t, err, ErrRecordNotFound)

	// A record of another patient is not reachable through this grant.
	name, typ := "x.pdf", "application/pdf"
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	wrapped, err := crypto.WrapKey(f.master, key)
	require.NoError(t, err)
	foreign := &repo.MedicalRecord{
		ID:            uuid.New(),
		PatientID:     uuid.New(),
		FileName:      name,
		Category:      repo.CategoryScan,
		IV:            make(crypto.IV, crypto.IVSize),
		OriginalName:  &name,
		OriginalType:  &typ,
		EncryptionKey: &wrapped,
	}
	require.NoError(t, f.store.Records(nil).Create(ctx, foreign))

	_, err = f.svc.FetchKeyFor(ctx, f.doctorID, f.patientID, foreign.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestBundle_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := f.addRequest(t, repo.StatusPending, time.Now())

	_, err := f.svc.Bundle(ctx, f.doctorID, pending.ID)
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = f.svc.Bundle(ctx, uuid.New(), pending.ID)
	assert.ErrorIs(t, err, ErrRequestNotFound)

	_, err = f.svc.Bundle(ctx, f.doctorID, uuid.New())
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestCheckGrant(t *testing.T) {
	f := newFixture(t)
	ar := f.addRequest(t, repo.StatusGranted, time.Now())

	got, err := f.svc.CheckGrant(context.Background(), f.doctorID, f.patientID)
	require.NoError(t, err)
	assert.Equal(t, ar.ID, got.ID)

	_, err = f.svc.CheckGrant(context.Background(), uuid.New(), f.patientID)
	assert.ErrorIs(t, err, ErrAuthorization)
}

func TestOwnerKey_RecoversOwnRecordWithoutGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recordID, key := f.addRecord(t, "a.pdf", true)

	// The patient's own identity is not a grant.
	_, err := f.svc.FetchKeyFor(ctx, f.patientID, f.patientID, recordID)
	assert.ErrorIs(t, err, ErrAuthorization)

	got, err := f.svc.OwnerKey(ctx, f.patientID, recordID)
	require.NoError(t, err)
	assert.Equal(t, recordID, got.RecordID)
	assert.Equal(t, crypto.KeyToHex(key), got.Key)
	assert.Equal(t, "a.pdf", got.OriginalFileName)
	assert.Equal(t, crypto.IV{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, got.IV)
}

func TestOwnerKey_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recordID, _ := f.addRecord(t, "a.pdf", true)
	bare, _ := f.addRecord(t, "legacy.pdf", false)

	_, err := f.svc.OwnerKey(ctx, f.doctorID, recordID)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = f.svc.OwnerKey(ctx, f.patientID, uuid.New())
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = f.svc.OwnerKey(ctx, f.patientID, bare)
	assert.ErrorIs(t, err, ErrMissingMetadata)
}
