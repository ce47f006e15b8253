package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/pkg/dto"
)

func validationRouter(db *fakeStore, snaps *fakeSnapshots, n Notifier) *gin.Engine {
	r := gin.New()
	h := NewValidationHandler(db, snaps, n)
	r.GET("/validation", h.List)
	r.POST("/validate_attendance", h.Decide)
	r.GET("/validation/:id/snapshot", h.Snapshot)
	return r
}

func seedPending(t *testing.T, db *fakeStore, userID, name string) int64 {
	t.Helper()
	db.staff[userID] = models.Staff{UserID: userID, Name: name}
	id, err := db.InsertPending(context.Background(), userID, time.Now(), "")
	if err != nil {
		t.Fatalf("seed pending: %v", err)
	}
	return id
}

func TestListPendingOrder(t *testing.T) {
	db := newFakeStore()
	seedPending(t, db, "emp1", "Ada")
	seedPending(t, db, "emp2", "Grace")
	r := validationRouter(db, newFakeSnapshots(), &fakeNotifier{})

	w := doJSON(t, r, http.MethodGet, "/validation", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}

	var rows []dto.ValidationRow
	decodeBody(t, w, &rows)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].UserID != "emp1" || rows[1].UserID != "emp2" {
		t.Errorf("order = %s, %s; want emp1, emp2", rows[0].UserID, rows[1].UserID)
	}
}

func TestListPendingEmpty(t *testing.T) {
	r := validationRouter(newFakeStore(), newFakeSnapshots(), &fakeNotifier{})
	w := doJSON(t, r, http.MethodGet, "/validation", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		wantCode   int
		wantStatus string
	}{
		{"approve", models.StatusApproved, http.StatusOK, "Attendance marked as Approved for emp1"},
		{"reject", models.StatusRejected, http.StatusOK, "Attendance marked as Rejected for emp1"},
		{"lowercase approved", "approved", http.StatusBadRequest, ""},
		{"unknown status", "Maybe", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newFakeStore()
			id := seedPending(t, db, "emp1", "Ada")
			notifier := &fakeNotifier{}
			r := validationRouter(db, newFakeSnapshots(), notifier)

			w := doJSON(t, r, http.MethodPost, "/validate_attendance", dto.ValidateRequest{ID: id, Status: tt.status})
			if w.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				if len(db.pending) != 1 {
					t.Errorf("pending = %d, want untouched", len(db.pending))
				}
				return
			}

			var resp dto.StatusResponse
			decodeBody(t, w, &resp)
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if len(db.pending) != 0 {
				t.Errorf("pending = %d, want 0 after decision", len(db.pending))
			}
			if len(db.decided) != 1 || db.decided[0].Status != tt.status {
				t.Errorf("decided = %+v, want one %s record", db.decided, tt.status)
			}
			if notifier.count() != 1 {
				t.Errorf("notifications = %d, want 1", notifier.count())
			}
		})
	}
}

func TestDecideUnknownID(t *testing.T) {
	r := validationRouter(newFakeStore(), newFakeSnapshots(), &fakeNotifier{})
	w := doJSON(t, r, http.MethodPost, "/validate_attendance", dto.ValidateRequest{ID: 999, Status: models.StatusApproved})
	if w.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", w.Code)
	}
	var resp dto.StatusResponse
	decodeBody(t, w, &resp)
	if resp.Status != "User not found" {
		t.Errorf("status = %q, want %q", resp.Status, "User not found")
	}
}

// Two reviewers race to decide the same record. Exactly one decision lands,
// the other observes the record as already gone.
func TestDecideConcurrentDuplicate(t *testing.T) {
	db := newFakeStore()
	id := seedPending(t, db, "emp1", "Ada")
	r := validationRouter(db, newFakeSnapshots(), &fakeNotifier{})

	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := doJSON(t, r, http.MethodPost, "/validate_attendance", dto.ValidateRequest{ID: id, Status: models.StatusApproved})
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	ok, notFound := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusNotFound:
			notFound++
		}
	}
	if ok != 1 || notFound != 1 {
		t.Fatalf("codes = %v, want one 200 and one 404", codes)
	}
	if len(db.decided) != 1 {
		t.Errorf("decided = %d, want exactly 1", len(db.decided))
	}
}

func TestSnapshot(t *testing.T) {
	db := newFakeStore()
	db.staff["emp1"] = models.Staff{UserID: "emp1", Name: "Ada"}
	id, err := db.InsertPending(context.Background(), "emp1", time.Now(), "snapshots/emp1/abc.jpg")
	if err != nil {
		t.Fatalf("seed pending: %v", err)
	}
	snaps := newFakeSnapshots()
	snaps.objects["snapshots/emp1/abc.jpg"] = []byte("jpeg bytes")
	r := validationRouter(db, snaps, &fakeNotifier{})

	w := doJSON(t, r, http.MethodGet, "/validation/1/snapshot", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200 (id %d)", w.Code, id)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q, want image/jpeg", ct)
	}
	if w.Body.String() != "jpeg bytes" {
		t.Errorf("body = %q, want stored object", w.Body.String())
	}
}

func TestSnapshotMissing(t *testing.T) {
	db := newFakeStore()
	withoutKey := seedPending(t, db, "emp1", "Ada")
	r := validationRouter(db, newFakeSnapshots(), &fakeNotifier{})

	tests := []struct {
		name string
		path string
	}{
		{"unknown record", "/validation/999/snapshot"},
		{"record without snapshot", "/validation/1/snapshot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodGet, tt.path, nil)
			if w.Code != http.StatusNotFound {
				t.Errorf("code = %d, want 404 (seeded id %d)", w.Code, withoutKey)
			}
		})
	}
}

func TestSnapshotBadID(t *testing.T) {
	r := validationRouter(newFakeStore(), newFakeSnapshots(), &fakeNotifier{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/validation/abc/snapshot", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", w.Code)
	}
}
