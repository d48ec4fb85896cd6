package vaultclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/medvault_backend/config"
	"github.com/Alijeyrad/medvault_backend/pkg/crypto"
	"github.com/Alijeyrad/medvault_backend/pkg/envelope"
)

// fakeVault stores what the client uploads and serves it back.
type fakeVault struct {
	mu          sync.Mutex
	srv         *httptest.Server
	patientID   uuid.UUID
	callerID    uuid.UUID
	records     map[uuid.UUID]Record
	blobs       map[uuid.UUID][]byte
	keys        map[uuid.UUID]string
	keyCalls    int
	ownKeyCalls int
	meCalls     int
	denyKeys    bool
	authSeen    []string
}

func newFakeVault(t *testing.T) *fakeVault {
	t.Helper()
	v := &fakeVault{
		patientID: uuid.New(),
		records:   map[uuid.UUID]Record{},
		blobs:     map[uuid.UUID][]byte{},
		keys:      map[uuid.UUID]string{},
	}
	v.callerID = v.patientID

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/records", v.upload)
	mux.HandleFunc("GET /api/v1/records/{id}", v.record)
	mux.HandleFunc("GET /api/v1/records/{id}/download", v.downloadURL)
	mux.HandleFunc("GET /api/v1/records/{id}/key", v.ownKey)
	mux.HandleFunc("GET /api/v1/me", v.me)
	mux.HandleFunc("GET /blobs/{id}", v.blob)
	mux.HandleFunc("GET /api/v1/patients/{pid}/records/{id}/key", v.key)
	mux.HandleFunc("GET /api/v1/access-requests/{id}/keys", v.bundle)

	v.srv = httptest.NewServer(mux)
	t.Cleanup(v.srv.Close)
	return v
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}

func (v *fakeVault) upload(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.authSeen = append(v.authSeen, r.Header.Get("Authorization"))

	f, fh, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer f.Close()
	data, _ := io.ReadAll(f)

	iv, err := crypto.ParseIV(r.FormValue("iv"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad iv")
		return
	}
	name, typ := r.FormValue("original_name"), r.FormValue("original_type")

	rec := Record{
		ID:           uuid.New(),
		PatientID:    v.patientID,
		FileName:     fh.Filename,
		FileType:     fh.Header.Get("Content-Type"),
		FileSize:     int64(len(data)),
		Category:     r.FormValue("category"),
		IV:           iv,
		OriginalName: &name,
		OriginalType: &typ,
		CreatedAt:    time.Now().UTC(),
	}
	v.records[rec.ID] = rec
	v.blobs[rec.ID] = data
	if k := r.FormValue("encryption_key"); k != "" {
		v.keys[rec.ID] = k
	}
	writeData(w, http.StatusCreated, rec)
}

func (v *fakeVault) lookup(w http.ResponseWriter, r *http.Request) (Record, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return Record{}, false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	rec, ok := v.records[id]
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
	}
	return rec, ok
}

func (v *fakeVault) record(w http.ResponseWriter, r *http.Request) {
	if rec, ok := v.lookup(w, r); ok {
		writeData(w, http.StatusOK, rec)
	}
}

func (v *fakeVault) downloadURL(w http.ResponseWriter, r *http.Request) {
	if rec, ok := v.lookup(w, r); ok {
		writeData(w, http.StatusOK, map[string]string{"url": v.srv.URL + "/blobs/" + rec.ID.String()})
	}
}

func (v *fakeVault) blob(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "" {
		writeError(w, http.StatusBadRequest, "presigned urls take no token")
		return
	}
	rec, ok := v.lookup(w, r)
	if !ok {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	_, _ = w.Write(v.blobs[rec.ID])
}

func (v *fakeVault) me(w http.ResponseWriter, _ *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.meCalls++
	writeData(w, http.StatusOK, map[string]any{"id": v.callerID, "role": "patient"})
}

// key serves the doctor endpoint. Only a caller other than the owner uses it.
func (v *fakeVault) key(w http.ResponseWriter, r *http.Request) {
	rec, ok := v.lookup(w, r)
	if !ok {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keyCalls++
	if v.callerID == rec.PatientID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	v.writeKey(w, rec)
}

// ownKey serves the owner endpoint.
func (v *fakeVault) ownKey(w http.ResponseWriter, r *http.Request) {
	rec, ok := v.lookup(w, r)
	if !ok {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ownKeyCalls++
	if v.callerID != rec.PatientID {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	v.writeKey(w, rec)
}

func (v *fakeVault) writeKey(w http.ResponseWriter, rec Record) {
	hexKey, ok := v.keys[rec.ID]
	if v.denyKeys || !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeData(w, http.StatusOK, Key{
		RecordID:         rec.ID,
		Key:              hexKey,
		IV:               rec.IV,
		OriginalFileName: *rec.OriginalName,
		OriginalFileType: *rec.OriginalType,
	})
}

func (v *fakeVault) bundle(w http.ResponseWriter, _ *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Key, 0, len(v.keys))
	for id, k := range v.keys {
		out = append(out, Key{RecordID: id, Key: k})
	}
	writeData(w, http.StatusOK, out)
}

// snapshot runs fn under the vault lock.
func (v *fakeVault) snapshot(fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn()
}

func newClient(t *testing.T, v *fakeVault) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = v.srv.URL + "/"
	cfg.Token = "v4.local.test"
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func labResult() envelope.File {
	return envelope.File{Name: "labresult.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4 hemoglobin 14.2")}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNoBaseURL)
}

func TestFromCentralConfig(t *testing.T) {
	cfg := FromCentralConfig(
		config.ClientConfig{BaseURL: "https://vault.example.com", Token: "tok", TimeoutSeconds: 5},
		config.KeyCacheConfig{TTLMinutes: 2},
	)
	assert.Equal(t, "https://vault.example.com", cfg.BaseURL)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.KeyTTL)

	def := FromCentralConfig(config.ClientConfig{}, config.KeyCacheConfig{})
	assert.Equal(t, DefaultConfig(), def)
}

func TestUploadAndOpen_FromCache(t *testing.T) {
	v := newFakeVault(t)
	c := newClient(t, v)
	ctx := context.Background()

	rec, err := c.UploadRecord(ctx, labResult(), "lab-result", false)
	require.NoError(t, err)
	assert.Equal(t, envelope.OpaqueType, rec.FileType)
	assert.Equal(t, 1, c.CachedKeys())

	v.snapshot(func() {
		assert.Equal(t, []string{"Bearer v4.local.test"}, v.authSeen)
		// Ciphertext only on the server.
		assert.NotContains(t, string(v.blobs[rec.ID]), "hemoglobin")
		assert.Empty(t, v.keys)
	})

	got, err := c.OpenRecord(ctx, rec.PatientID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, labResult(), got)
	v.snapshot(func() { assert.Zero(t, v.keyCalls) })
}

func TestOpen_OwnerRecoversKeyAfterLogout(t *testing.T) {
	v := newFakeVault(t)
	c := newClient(t, v)
	ctx := context.Background()

	rec, err := c.UploadRecord(ctx, labResult(), "lab-result", true)
	require.NoError(t, err)
	v.snapshot(func() { require.Contains(t, v.keys, rec.ID) })

	c.Logout()
	assert.Zero(t, c.CachedKeys())

	got, err := c.OpenRecord(ctx, rec.PatientID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, labResult(), got)
	v.snapshot(func() {
		assert.Equal(t, 1, v.ownKeyCalls)
		assert.Zero(t, v.keyCalls)
	})

	// Cached now.
	_, err = c.OpenRecord(ctx, rec.PatientID, rec.ID)
	require.NoError(t, err)
	v.snapshot(func() { assert.Equal(t, 1, v.ownKeyCalls) })

	// A second recovery reuses the known identity.
	c.Logout()
	_, err = c.OpenRecord(ctx, rec.PatientID, rec.ID)
	require.NoError(t, err)
	v.snapshot(func() {
		assert.Equal(t, 2, v.ownKeyCalls)
		assert.Equal(t, 1, v.meCalls)
	})
}

func TestOpen_DoctorFetchesEscrowedKey(t *testing.T) {
	v := newFakeVault(t)
	ctx := context.Background()

	rec, err := newClient(t, v).UploadRecord(ctx, labResult(), "lab-result", true)
	require.NoError(t, err)

	v.snapshot(func() { v.callerID = uuid.New() })
	doctor := newClient(t, v)

	got, err := doctor.OpenRecord(ctx, rec.PatientID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "labresult.pdf", got.Name)
	assert.Equal(t, 1, doctor.CachedKeys())
	v.snapshot(func() {
		assert.Equal(t, 1, v.keyCalls)
		assert.Zero(t, v.ownKeyCalls)
	})
}

func TestOpen_KeyDenied(t *testing.T) {
	v := newFakeVault(t)
	c := newClient(t, v)
	ctx := context.Background()

	rec, err := c.UploadRecord(ctx, labResult(), "lab-result", true)
	require.NoError(t, err)
	c.Logout()
	v.snapshot(func() { v.denyKeys = true })

	_, err = c.OpenRecord(ctx, rec.PatientID, rec.ID)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusForbidden))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "forbidden", apiErr.Message)
}

func TestOpen_UnknownRecord(t *testing.T) {
	v := newFakeVault(t)
	c := newClient(t, v)

	_, err := c.OpenRecord(context.Background(), v.patientID, uuid.New())
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestFetchBundle(t *testing.T) {
	v := newFakeVault(t)
	c := newClient(t, v)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.UploadRecord(ctx, labResult(), "lab-result", true)
		require.NoError(t, err)
	}
	c.Logout()

	n, err := c.FetchBundle(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, c.CachedKeys())
}
