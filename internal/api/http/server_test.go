package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	casbin "github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/medvault_backend/config"
	"github.com/Alijeyrad/medvault_backend/internal/api/http/router"
	"github.com/Alijeyrad/medvault_backend/internal/events"
	"github.com/Alijeyrad/medvault_backend/internal/repo"
	"github.com/Alijeyrad/medvault_backend/internal/repo/repotest"
	"github.com/Alijeyrad/medvault_backend/internal/service/access"
	"github.com/Alijeyrad/medvault_backend/internal/service/escrow"
	"github.com/Alijeyrad/medvault_backend/internal/service/record"
	"github.com/Alijeyrad/medvault_backend/internal/service/user"
	"github.com/Alijeyrad/medvault_backend/pkg/authorize"
	"github.com/Alijeyrad/medvault_backend/pkg/crypto"
	"github.com/Alijeyrad/medvault_backend/pkg/envelope"
	pasetotoken "github.com/Alijeyrad/medvault_backend/pkg/paseto"
	"github.com/Alijeyrad/medvault_backend/pkg/util/codes"
)

type memBlobs struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func (m *memBlobs) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[key] = data
	return nil
}

func (m *memBlobs) PresignDownload(_ context.Context, key string) (string, error) {
	return "https://blobs.example.com/" + key, nil
}

type fixture struct {
	t       *testing.T
	app     *fiber.App
	mock    sqlmock.Sqlmock
	store   *repotest.Store
	events  *events.Recorder
	tokens  *pasetotoken.Manager
	patient *repo.User
	doctor  *repo.User
}

func newTestAuth(t *testing.T) authorize.IAuthorization {
	t.Helper()

	policyPath := filepath.Join(t.TempDir(), "policy.csv")
	require.NoError(t, os.WriteFile(policyPath, []byte(""), 0644))

	m, err := authorize.LoadModel("")
	require.NoError(t, err)
	e, err := casbin.NewDistributedEnforcer(m, fileadapter.NewAdapter(policyPath))
	require.NoError(t, err)
	e.EnableAutoSave(false)

	auth, err := authorize.NewAuthorization(e, authorize.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, authorize.SeedDefaultPolicies(context.Background(), auth))
	return auth
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	master, err := crypto.GenerateKey()
	require.NoError(t, err)

	store := repotest.New()
	rec := &events.Recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	auth := newTestAuth(t)
	esc := escrow.New(db, store, master, logger, nil)
	users := user.New(db, store, auth, codes.DefaultConfig(), "IR")

	tokens, err := pasetotoken.New(pasetotoken.Config{
		Mode:      pasetotoken.ModeLocal,
		Issuer:    "medvault",
		Audience:  "medvault-api",
		AccessTTL: time.Hour,
	}, pasetotoken.NewLocalKeys())
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Server.Environment = "test"

	r := router.NewRouter(router.Params{
		Cfg:       cfg,
		Auth:      auth,
		UserSvc:   users,
		RecordSvc: record.New(db, store, &memBlobs{objs: map[string][]byte{}}, esc, rec, nil, master, 1<<20),
		AccessSvc: access.New(db, store, esc, rec, nil, nil),
		EscrowSvc: esc,
		PasetoMgr: tokens,
	})

	patient, err := users.Create(ctx, user.CreateRequest{Role: repo.RolePatient, FullName: "Pat Doe", Email: "pat@example.com"})
	require.NoError(t, err)
	doctor, err := users.Create(ctx, user.CreateRequest{Role: repo.RoleDoctor, FullName: "Dr. House", Email: "house@example.com", Specialty: "diagnostics"})
	require.NoError(t, err)

	return &fixture{
		t:       t,
		app:     NewApp(cfg, nil, r, false),
		mock:    mock,
		store:   store,
		events:  rec,
		tokens:  tokens,
		patient: patient,
		doctor:  doctor,
	}
}

func (f *fixture) token(u *repo.User) string {
	tok, err := f.tokens.IssueAccess(u.ID, string(u.Role), nil)
	require.NoError(f.t, err)
	return tok
}

// do sends a request as u (nil for anonymous) and decodes the "data" field
// into out when given.
func (f *fixture) do(u *repo.User, req *nethttp.Request, out any) int {
	f.t.Helper()
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+f.token(u))
	}
	resp, err := f.app.Test(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		require.NoError(f.t, json.NewDecoder(resp.Body).Decode(&env))
		require.NoError(f.t, json.Unmarshal(env.Data, out))
	}
	return resp.StatusCode
}

func jsonReq(method, path string, body any) *nethttp.Request {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func uploadReq(t *testing.T, sealed envelope.Sealed, key []byte) *nethttp.Request {
	t.Helper()

	iv, err := json.Marshal(sealed.Metadata.IV)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", sealed.File.Name)
	require.NoError(t, err)
	_, err = fw.Write(sealed.File.Data)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("category", "lab-result"))
	require.NoError(t, w.WriteField("iv", string(iv)))
	require.NoError(t, w.WriteField("original_name", sealed.Metadata.OriginalName))
	require.NoError(t, w.WriteField("original_type", sealed.Metadata.OriginalType))
	if key != nil {
		require.NoError(t, w.WriteField("encryption_key", crypto.KeyToHex(key)))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/records", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, fiber.StatusUnauthorized, f.do(nil, jsonReq(fiber.MethodGet, "/api/v1/me", nil), nil))

	req := jsonReq(fiber.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer v4.local.garbage")
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = jsonReq(fiber.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Basic "+f.token(f.patient))
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestMe(t *testing.T) {
	f := newFixture(t)

	var me repo.User
	require.Equal(t, fiber.StatusOK, f.do(f.patient, jsonReq(fiber.MethodGet, "/api/v1/me", nil), &me))
	assert.Equal(t, f.patient.ID, me.ID)
	assert.Equal(t, "pat@example.com", me.Email)

	var code struct {
		ShareCode string `json:"share_code"`
	}
	require.Equal(t, fiber.StatusOK, f.do(f.patient, jsonReq(fiber.MethodGet, "/api/v1/me/share-code", nil), &code))
	assert.Equal(t, codes.FormatCode(*f.patient.ShareCode, codes.ShareCodeGroupSize), code.ShareCode)

	var rotated struct {
		ShareCode string `json:"share_code"`
	}
	require.Equal(t, fiber.StatusOK, f.do(f.patient, jsonReq(fiber.MethodPost, "/api/v1/me/share-code/rotate", nil), &rotated))
	assert.NotEqual(t, code.ShareCode, rotated.ShareCode)

	// Doctors have no share code permission at all.
	assert.Equal(t, fiber.StatusForbidden, f.do(f.doctor, jsonReq(fiber.MethodGet, "/api/v1/me/share-code", nil), nil))
}

func TestRecordUpload_Validation(t *testing.T) {
	f := newFixture(t)

	sealed, key, err := envelope.Seal(envelope.File{Name: "scan.png", MimeType: "image/png", Data: []byte("pixels")})
	require.NoError(t, err)

	// Doctors cannot upload.
	assert.Equal(t, fiber.StatusForbidden, f.do(f.doctor, uploadReq(t, sealed, key), nil))

	req := uploadReq(t, sealed, key[:16])
	assert.Equal(t, fiber.StatusBadRequest, f.do(f.patient, req, nil))

	var rec repo.MedicalRecord
	require.Equal(t, fiber.StatusCreated, f.do(f.patient, uploadReq(t, sealed, key), &rec))
	assert.Equal(t, envelope.OpaqueType, rec.FileType)
	assert.Equal(t, repo.CategoryLabResult, rec.Category)

	assert.Equal(t, fiber.StatusBadRequest, f.do(f.patient, jsonReq(fiber.MethodGet, "/api/v1/records/not-a-uuid", nil), nil))
	assert.Equal(t, fiber.StatusNotFound, f.do(f.patient, jsonReq(fiber.MethodGet, "/api/v1/records/"+uuid.NewString(), nil), nil))
}

func TestAccessFlow(t *testing.T) {
	f := newFixture(t)

	sealed, key, err := envelope.Seal(envelope.File{Name: "labresult.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4 hemoglobin 14.2")})
	require.NoError(t, err)

	var rec repo.MedicalRecord
	require.Equal(t, fiber.StatusCreated, f.do(f.patient, uploadReq(t, sealed, key), &rec))

	// Doctor asks with the share code as printed.
	display := codes.FormatCode(*f.patient.ShareCode, codes.ShareCodeGroupSize)
	var ar repo.AccessRequest
	require.Equal(t, fiber.StatusCreated,
		f.do(f.doctor, jsonReq(fiber.MethodPost, "/api/v1/access-requests", fiber.Map{"share_code": display}), &ar))
	assert.Equal(t, repo.StatusPending, ar.Status)

	assert.Equal(t, fiber.StatusConflict,
		f.do(f.doctor, jsonReq(fiber.MethodPost, "/api/v1/access-requests", fiber.Map{"share_code": display}), nil))
	assert.Equal(t, fiber.StatusForbidden,
		f.do(f.patient, jsonReq(fiber.MethodPost, "/api/v1/access-requests", fiber.Map{"share_code": display}), nil))

	keyPath := fmt.Sprintf("/api/v1/patients/%s/records/%s/key", f.patient.ID, rec.ID)
	assert.Equal(t, fiber.StatusForbidden, f.do(f.doctor, jsonReq(fiber.MethodGet, keyPath, nil), nil))

	// Only the patient decides.
	grantPath := fmt.Sprintf("/api/v1/access-requests/%s/grant", ar.ID)
	assert.Equal(t, fiber.StatusForbidden, f.do(f.doctor, jsonReq(fiber.MethodPost, grantPath, nil), nil))

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	var granted repo.AccessRequest
	require.Equal(t, fiber.StatusOK, f.do(f.patient, jsonReq(fiber.MethodPost, grantPath, nil), &granted))
	assert.Equal(t, repo.StatusGranted, granted.Status)

	var fetched escrow.EncryptionKey
	require.Equal(t, fiber.StatusOK, f.do(f.doctor, jsonReq(fiber.MethodGet, keyPath, nil), &fetched))
	assert.Equal(t, crypto.KeyToHex(key), fetched.Key)
	assert.Equal(t, sealed.Metadata.IV, fetched.IV)
	assert.Equal(t, "labresult.pdf", fetched.OriginalFileName)

	var bundle []escrow.EncryptionKey
	require.Equal(t, fiber.StatusOK,
		f.do(f.doctor, jsonReq(fiber.MethodGet, fmt.Sprintf("/api/v1/access-requests/%s/keys", ar.ID), nil), &bundle))
	assert.Len(t, bundle, 1)

	var shared []repo.MedicalRecord
	require.Equal(t, fiber.StatusOK,
		f.do(f.doctor, jsonReq(fiber.MethodGet, fmt.Sprintf("/api/v1/patients/%s/records", f.patient.ID), nil), &shared))
	assert.Len(t, shared, 1)

	var dl struct {
		URL string `json:"url"`
	}
	require.Equal(t, fiber.StatusOK,
		f.do(f.doctor, jsonReq(fiber.MethodGet, fmt.Sprintf("/api/v1/records/%s/download", rec.ID), nil), &dl))
	assert.Contains(t, dl.URL, "records/"+f.patient.ID.String())

	denyPath := fmt.Sprintf("/api/v1/access-requests/%s/deny", ar.ID)
	assert.Equal(t, fiber.StatusConflict, f.do(f.patient, jsonReq(fiber.MethodPost, denyPath, nil), nil))

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	revokePath := fmt.Sprintf("/api/v1/access-requests/%s/revoke", ar.ID)
	require.Equal(t, fiber.StatusOK, f.do(f.patient, jsonReq(fiber.MethodPost, revokePath, nil), nil))
	assert.Equal(t, 0, f.store.KeyCount(ar.ID))

	assert.Equal(t, fiber.StatusForbidden, f.do(f.doctor, jsonReq(fiber.MethodGet, keyPath, nil), nil))
	assert.Equal(t, fiber.StatusConflict, f.do(f.patient, jsonReq(fiber.MethodPost, revokePath, nil), nil))

	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAccessList_Role(t *testing.T) {
	f := newFixture(t)

	var list []repo.AccessRequest
	require.Equal(t, fiber.StatusOK, f.do(f.patient, jsonReq(fiber.MethodGet, "/api/v1/access-requests", nil), &list))
	assert.Empty(t, list)

	assert.Equal(t, fiber.StatusForbidden, f.do(f.patient, jsonReq(fiber.MethodGet, "/api/v1/access-requests?role=doctor", nil), nil))
	assert.Equal(t, fiber.StatusBadRequest, f.do(f.doctor, jsonReq(fiber.MethodGet, "/api/v1/access-requests?role=nurse", nil), nil))
	require.Equal(t, fiber.StatusOK, f.do(f.doctor, jsonReq(fiber.MethodGet, "/api/v1/access-requests?role=doctor", nil), &list))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, err := f.app.Test(httptest.NewRequest(fiber.MethodGet, "/livez", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestErrorShapeAndRequestID(t *testing.T) {
	f := newFixture(t)

	req := jsonReq(fiber.MethodGet, "/api/v1/me", nil)
	req.Header.Set("X-Request-Id", "trace-abc")
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "trace-abc", resp.Header.Get("X-Request-Id"))

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "unauthorized", body.Error)

	req = jsonReq(fiber.MethodGet, "/livez", nil)
	req.Header.Set("X-Request-Id", "has space")
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	_, err = uuid.Parse(resp.Header.Get("X-Request-Id"))
	assert.NoError(t, err, "unsafe id should be replaced")
}
