package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/storage"
	"github.com/your-org/attend/internal/verify"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	result verify.Result
	err    error
}

func (f *fakeVerifier) Verify(_ context.Context, _ []byte) (verify.Result, error) {
	return f.result, f.err
}

// fakeStore backs all handler storage interfaces with in-memory state.
type fakeStore struct {
	mu       sync.Mutex
	staff    map[string]models.Staff
	pending  map[int64]models.PendingRecord
	decided  []models.AttendanceRecord
	nextID   int64
	storeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		staff:   map[string]models.Staff{},
		pending: map[int64]models.PendingRecord{},
		nextID:  1,
	}
}

func (f *fakeStore) GetStaff(_ context.Context, userID string) (*models.Staff, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.staff[userID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeStore) ListStaff(_ context.Context) ([]models.Staff, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	out := make([]models.Staff, 0, len(f.staff))
	for _, s := range f.staff {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) InsertPending(_ context.Context, userID string, at time.Time, snapshotKey string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return 0, f.storeErr
	}
	id := f.nextID
	f.nextID++
	f.pending[id] = models.PendingRecord{
		ID:          id,
		UserID:      userID,
		Name:        f.staff[userID].Name,
		Date:        at.Format("2006-01-02"),
		Time:        at.Format("15:04:05"),
		SnapshotKey: snapshotKey,
	}
	return id, nil
}

func (f *fakeStore) ListPending(_ context.Context) ([]models.PendingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	out := make([]models.PendingRecord, 0, len(f.pending))
	for id := int64(1); id < f.nextID; id++ {
		if r, ok := f.pending[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) DecidePending(_ context.Context, id int64, status string) (*models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	r, ok := f.pending[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	delete(f.pending, id)
	rec := models.AttendanceRecord{
		UserID:        r.UserID,
		Name:          r.Name,
		Date:          r.Date,
		Time:          r.Time,
		Status:        status,
		ValidatedTime: time.Now().Format("15:04:05"),
		SnapshotKey:   r.SnapshotKey,
	}
	f.decided = append(f.decided, rec)
	return &rec, nil
}

func (f *fakeStore) GetPendingSnapshotKey(_ context.Context, id int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.pending[id]
	if !ok {
		return "", storage.ErrNotFound
	}
	return r.SnapshotKey, nil
}

func (f *fakeStore) ListAttendance(_ context.Context, userID, date string) ([]models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	out := make([]models.AttendanceRecord, 0, len(f.decided))
	for _, r := range f.decided {
		if userID != "" && r.UserID != userID {
			continue
		}
		if date != "" && r.Date != date {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type fakeSnapshots struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{objects: map[string][]byte{}}
}

func (f *fakeSnapshots) PutObject(_ context.Context, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeSnapshots) GetObject(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeNotifier) PendingChanged() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newRawRequest(t *testing.T, body string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/attendance", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req, httptest.NewRecorder()
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}
