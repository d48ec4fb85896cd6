// Package vaultclient is the client side of MedVault. Files are sealed
// before they leave the process and opened only after the ciphertext is
// back, so the server never sees plaintext.
package vaultclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medvault_backend/pkg/crypto"
	"github.com/Alijeyrad/medvault_backend/pkg/envelope"
	"github.com/Alijeyrad/medvault_backend/pkg/keycache"
)

const apiPrefix = "/api/v1"

// Record is the server's view of a stored file.
type Record struct {
	ID           uuid.UUID `json:"id"`
	PatientID    uuid.UUID `json:"patient_id"`
	FileName     string    `json:"file_name"`
	FileType     string    `json:"file_type"`
	FileSize     int64     `json:"file_size"`
	Category     string    `json:"category"`
	IV           crypto.IV `json:"iv,omitempty"`
	OriginalName *string   `json:"original_name,omitempty"`
	OriginalType *string   `json:"original_type,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r *Record) metadata() (envelope.Metadata, bool) {
	if len(r.IV) == 0 || r.OriginalName == nil || r.OriginalType == nil {
		return envelope.Metadata{}, false
	}
	return envelope.Metadata{IV: r.IV, OriginalName: *r.OriginalName, OriginalType: *r.OriginalType}, true
}

// Key is one record key as handed out by the escrow endpoints.
type Key struct {
	RecordID         uuid.UUID `json:"record_id"`
	Key              string    `json:"key"`
	IV               crypto.IV `json:"iv"`
	OriginalFileName string    `json:"original_file_name"`
	OriginalFileType string    `json:"original_file_type"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	keys    *keycache.Cache

	mu   sync.Mutex
	self uuid.UUID
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, ErrNoBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("vaultclient: invalid base url: %w", err)
	}

	return &Client{
		baseURL: base,
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		keys:    keycache.New(cfg.KeyTTL, cfg.KeyCleanup),
	}, nil
}

// CachedKeys is the number of record keys held for this session.
func (c *Client) CachedKeys() int {
	return c.keys.Len()
}

// UploadRecord seals f locally and uploads the ciphertext with its metadata.
// With escrowKey the hex key is sent along so the server can escrow it to
// doctors the patient later grants. The key is cached for this session
// either way.
func (c *Client) UploadRecord(ctx context.Context, f envelope.File, category string, escrowKey bool) (*Record, error) {
	sealed, key, err := envelope.Seal(f)
	if err != nil {
		return nil, err
	}

	iv, err := json.Marshal(sealed.Metadata.IV)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", sealed.File.Name)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(sealed.File.Data); err != nil {
		return nil, err
	}
	fields := map[string]string{
		"category":      category,
		"iv":            string(iv),
		"original_name": sealed.Metadata.OriginalName,
		"original_type": sealed.Metadata.OriginalType,
	}
	if escrowKey {
		fields["encryption_key"] = crypto.KeyToHex(key)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var rec Record
	if err := c.do(ctx, http.MethodPost, "/records", w.FormDataContentType(), &body, &rec); err != nil {
		return nil, err
	}

	c.keys.Put(rec.ID.String(), key)
	return &rec, nil
}

// OpenRecord downloads and decrypts a record. The key comes from the session
// cache when present. Otherwise the owner asks for the key stored with the
// upload and a doctor asks the escrow endpoint.
func (c *Client) OpenRecord(ctx context.Context, patientID, recordID uuid.UUID) (envelope.File, error) {
	rec, err := c.Record(ctx, recordID)
	if err != nil {
		return envelope.File{}, err
	}
	md, ok := rec.metadata()
	if !ok {
		return envelope.File{}, ErrNoMetadata
	}

	key, ok := c.keys.Get(recordID.String())
	if !ok {
		k, err := c.recoverKey(ctx, patientID, recordID)
		if err != nil {
			return envelope.File{}, err
		}
		if key, err = crypto.KeyFromHex(k.Key); err != nil {
			return envelope.File{}, err
		}
		c.keys.Put(recordID.String(), key)
	}

	data, err := c.download(ctx, recordID)
	if err != nil {
		return envelope.File{}, err
	}

	return envelope.Open(envelope.File{Name: rec.FileName, MimeType: rec.FileType, Data: data}, key, md)
}

func (c *Client) Record(ctx context.Context, recordID uuid.UUID) (*Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodGet, "/records/"+recordID.String(), "", nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// FetchKey asks the server for one escrowed key. Only doctors holding a
// current grant get an answer.
func (c *Client) FetchKey(ctx context.Context, patientID, recordID uuid.UUID) (*Key, error) {
	var k Key
	path := fmt.Sprintf("/patients/%s/records/%s/key", patientID, recordID)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &k); err != nil {
		return nil, err
	}
	return &k, nil
}

// OwnKey asks for the key a patient stored with one of their own uploads.
func (c *Client) OwnKey(ctx context.Context, recordID uuid.UUID) (*Key, error) {
	var k Key
	if err := c.do(ctx, http.MethodGet, "/records/"+recordID.String()+"/key", "", nil, &k); err != nil {
		return nil, err
	}
	return &k, nil
}

// Me returns the id of the token holder. It is asked once per client.
func (c *Client) Me(ctx context.Context) (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.self != uuid.Nil {
		return c.self, nil
	}

	var me struct {
		ID uuid.UUID `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/me", "", nil, &me); err != nil {
		return uuid.Nil, err
	}
	c.self = me.ID
	return c.self, nil
}

func (c *Client) recoverKey(ctx context.Context, patientID, recordID uuid.UUID) (*Key, error) {
	me, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}
	if me == patientID {
		return c.OwnKey(ctx, recordID)
	}
	return c.FetchKey(ctx, patientID, recordID)
}

// FetchBundle loads every key escrowed under a granted request into the
// session cache and returns how many were cached.
func (c *Client) FetchBundle(ctx context.Context, requestID uuid.UUID) (int, error) {
	var bundle []Key
	if err := c.do(ctx, http.MethodGet, "/access-requests/"+requestID.String()+"/keys", "", nil, &bundle); err != nil {
		return 0, err
	}

	n := 0
	for _, k := range bundle {
		key, err := crypto.KeyFromHex(k.Key)
		if err != nil {
			return n, err
		}
		c.keys.Put(k.RecordID.String(), key)
		n++
	}
	return n, nil
}

// Logout drops every cached key.
func (c *Client) Logout() {
	c.keys.Clear()
}

func (c *Client) download(ctx context.Context, recordID uuid.UUID) ([]byte, error) {
	var dl struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/records/"+recordID.String()+"/download", "", nil, &dl); err != nil {
		return nil, err
	}

	// Presigned: no bearer token.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dl.URL, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &APIError{StatusCode: res.StatusCode}
	}
	return io.ReadAll(res.Body)
}

// do sends an API request and decodes the "data" member of the answer into
// out.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var env struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&env)
		return &APIError{StatusCode: res.StatusCode, Message: env.Error}
	}

	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return fmt.Errorf("vaultclient: decode response: %w", err)
	}
	return json.Unmarshal(env.Data, out)
}
