// Package repotest is an in-memory repo.Manager for service tests. It keeps
// the conditional-update and cascade semantics of the PostgreSQL schema but
// ignores transactions: every DBTX handed in shares one store.
package repotest

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medvault_backend/internal/repo"
)

type Store struct {
	mu       sync.Mutex
	seq      int64
	users    map[uuid.UUID]repo.User
	records  map[uuid.UUID]recordRow
	requests map[uuid.UUID]requestRow
	keys     map[uuid.UUID][]repo.EscrowedKey
}

type recordRow struct {
	rec repo.MedicalRecord
	seq int64
}

type requestRow struct {
	ar  repo.AccessRequest
	seq int64
}

func New() *Store {
	return &Store{
		users:    make(map[uuid.UUID]repo.User),
		records:  make(map[uuid.UUID]recordRow),
		requests: make(map[uuid.UUID]requestRow),
		keys:     make(map[uuid.UUID][]repo.EscrowedKey),
	}
}

func (s *Store) RunMigrations(context.Context, *sql.DB) error { return nil }

func (s *Store) Users(repo.DBTX) repo.UserRepository                   { return (*users)(s) }
func (s *Store) Records(repo.DBTX) repo.RecordRepository               { return (*records)(s) }
func (s *Store) AccessRequests(repo.DBTX) repo.AccessRequestRepository { return (*requests)(s) }
func (s *Store) Keys(repo.DBTX) repo.KeyRepository                     { return (*keys)(s) }

// KeyCount returns the number of bundle rows stored for a request.
func (s *Store) KeyCount(requestID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys[requestID])
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

// ---- users ----

type users Store

func (u *users) Create(_ context.Context, usr *repo.User) error {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.users {
		if other.Email == usr.Email {
			return repo.ErrConflict
		}
		if usr.ShareCode != nil && other.ShareCode != nil && *other.ShareCode == *usr.ShareCode {
			return repo.ErrConflict
		}
	}
	usr.CreatedAt = time.Now()
	s.users[usr.ID] = *usr
	return nil
}

func (u *users) Get(_ context.Context, id uuid.UUID) (*repo.User, error) {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()

	usr, ok := s.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &usr, nil
}

func (u *users) GetByShareCode(_ context.Context, code string) (*repo.User, error) {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, usr := range s.users {
		if usr.ShareCode != nil && *usr.ShareCode == code {
			return &usr, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (u *users) UpdateShareCode(_ context.Context, id uuid.UUID, code string) error {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()

	usr, ok := s.users[id]
	if !ok || usr.Role != repo.RolePatient {
		return repo.ErrNotFound
	}
	for otherID, other := range s.users {
		if otherID != id && other.ShareCode != nil && *other.ShareCode == code {
			return repo.ErrConflict
		}
	}
	usr.ShareCode = &code
	s.users[id] = usr
	return nil
}

// ---- records ----

type records Store

func (r *records) Create(_ context.Context, rec *repo.MedicalRecord) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	rec.CreatedAt, rec.UpdatedAt = now, now
	s.records[rec.ID] = recordRow{rec: *rec, seq: s.next()}
	return nil
}

func (r *records) Get(_ context.Context, id uuid.UUID) (*repo.MedicalRecord, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.records[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	rec := row.rec
	return &rec, nil
}

func (r *records) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*repo.MedicalRecord, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []recordRow
	for _, row := range s.records {
		if row.rec.PatientID == patientID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]*repo.MedicalRecord, 0, len(rows))
	for _, row := range rows {
		rec := row.rec
		out = append(out, &rec)
	}
	return out, nil
}

func (r *records) UpdateSummary(_ context.Context, id uuid.UUID, summary string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.records[id]
	if !ok {
		return repo.ErrNotFound
	}
	row.rec.AISummary = &summary
	row.rec.UpdatedAt = time.Now()
	s.records[id] = row
	return nil
}

func (r *records) Delete(_ context.Context, patientID, id uuid.UUID) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.records[id]
	if !ok || row.rec.PatientID != patientID {
		return repo.ErrNotFound
	}
	delete(s.records, id)

	// ON DELETE CASCADE
	for reqID, bundle := range s.keys {
		kept := bundle[:0]
		for _, k := range bundle {
			if k.RecordID != id {
				kept = append(kept, k)
			}
		}
		s.keys[reqID] = kept
	}
	return nil
}

// ---- access requests ----

type requests Store

func (q *requests) Create(_ context.Context, ar *repo.AccessRequest) error {
	s := (*Store)(q)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.requests {
		open := row.ar.Status == repo.StatusPending || row.ar.Status == repo.StatusGranted
		if open && row.ar.DoctorID == ar.DoctorID && row.ar.PatientID == ar.PatientID {
			return repo.ErrConflict
		}
	}
	s.requests[ar.ID] = requestRow{ar: *ar, seq: s.next()}
	return nil
}

func (q *requests) Get(_ context.Context, id uuid.UUID) (*repo.AccessRequest, error) {
	s := (*Store)(q)
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.requests[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	ar := row.ar
	return &ar, nil
}

func (q *requests) Latest(_ context.Context, doctorID, patientID uuid.UUID) (*repo.AccessRequest, error) {
	s := (*Store)(q)
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		best  *requestRow
		found bool
	)
	for _, row := range s.requests {
		if row.ar.DoctorID != doctorID || row.ar.PatientID != patientID {
			continue
		}
		if !found || newer(row, *best) {
			r := row
			best, found = &r, true
		}
	}
	if !found {
		return nil, repo.ErrNotFound
	}
	ar := best.ar
	return &ar, nil
}

func newer(a, b requestRow) bool {
	if !a.ar.RequestedAt.Equal(b.ar.RequestedAt) {
		return a.ar.RequestedAt.After(b.ar.RequestedAt)
	}
	return a.seq > b.seq
}

func (q *requests) list(match func(repo.AccessRequest) bool) []*repo.AccessRequest {
	s := (*Store)(q)
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []requestRow
	for _, row := range s.requests {
		if match(row.ar) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return newer(rows[i], rows[j]) })

	out := make([]*repo.AccessRequest, 0, len(rows))
	for _, row := range rows {
		ar := row.ar
		out = append(out, &ar)
	}
	return out
}

func (q *requests) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*repo.AccessRequest, error) {
	return q.list(func(ar repo.AccessRequest) bool { return ar.PatientID == patientID }), nil
}

func (q *requests) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*repo.AccessRequest, error) {
	return q.list(func(ar repo.AccessRequest) bool { return ar.DoctorID == doctorID }), nil
}

// transition is the in-memory counterpart of UPDATE ... WHERE status = from.
func (q *requests) transition(id uuid.UUID, from repo.Status, apply func(*repo.AccessRequest)) error {
	s := (*Store)(q)
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.requests[id]
	if !ok || row.ar.Status != from {
		return repo.ErrStaleState
	}
	apply(&row.ar)
	s.requests[id] = row
	return nil
}

func (q *requests) Resolve(_ context.Context, id uuid.UUID, to repo.Status, at time.Time) error {
	if to != repo.StatusGranted && to != repo.StatusDenied {
		return repo.ErrStaleState
	}
	return q.transition(id, repo.StatusPending, func(ar *repo.AccessRequest) {
		ar.Status = to
		ar.RespondedAt = &at
	})
}

func (q *requests) Revoke(_ context.Context, id uuid.UUID, at time.Time) error {
	return q.transition(id, repo.StatusGranted, func(ar *repo.AccessRequest) {
		ar.Status = repo.StatusRevoked
		ar.RevokedAt = &at
	})
}

func (q *requests) MarkSeen(_ context.Context, id, doctorID uuid.UUID) error {
	s := (*Store)(q)
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.requests[id]
	if !ok || row.ar.DoctorID != doctorID {
		return repo.ErrNotFound
	}
	row.ar.SeenByDoctor = true
	s.requests[id] = row
	return nil
}

// ---- keys ----

type keys Store

func (k *keys) InsertBundle(_ context.Context, bundle []repo.EscrowedKey) error {
	s := (*Store)(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range bundle {
		for _, existing := range s.keys[key.AccessRequestID] {
			if existing.RecordID == key.RecordID {
				return repo.ErrConflict
			}
		}
		s.keys[key.AccessRequestID] = append(s.keys[key.AccessRequestID], key)
	}
	return nil
}

func (k *keys) InsertIfGranted(_ context.Context, key repo.EscrowedKey) error {
	s := (*Store)(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.requests[key.AccessRequestID]
	if !ok || row.ar.Status != repo.StatusGranted {
		return nil
	}
	bundle := s.keys[key.AccessRequestID]
	for _, existing := range bundle {
		if existing.RecordID == key.RecordID {
			return nil
		}
	}
	key.Position = len(bundle)
	s.keys[key.AccessRequestID] = append(bundle, key)
	return nil
}

func (k *keys) Get(_ context.Context, requestID, recordID uuid.UUID) (*repo.EscrowedKey, error) {
	s := (*Store)(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.keys[requestID] {
		if key.RecordID == recordID {
			out := key
			return &out, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (k *keys) ListByRequest(_ context.Context, requestID uuid.UUID) ([]repo.EscrowedKey, error) {
	s := (*Store)(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]repo.EscrowedKey(nil), s.keys[requestID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (k *keys) DeleteByRequest(_ context.Context, requestID uuid.UUID) (int64, error) {
	s := (*Store)(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.keys[requestID]))
	delete(s.keys, requestID)
	return n, nil
}
