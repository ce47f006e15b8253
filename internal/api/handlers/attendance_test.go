package handlers

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/verify"
	"github.com/your-org/attend/pkg/dto"
)

const testFrame = "data:image/jpeg;base64,aGVsbG8gY2FtZXJh"

func attendanceRouter(v Verifier, db *fakeStore, snaps *fakeSnapshots, n Notifier) *gin.Engine {
	r := gin.New()
	h := NewAttendanceHandler(v, db, snaps, n)
	r.POST("/attendance", h.Submit)
	return r
}

func TestSubmitOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		result     verify.Result
		wantCode   int
		wantStatus string
		wantUserID string
	}{
		{
			name:       "no face",
			result:     verify.Result{Outcome: verify.OutcomeNoFace},
			wantCode:   http.StatusBadRequest,
			wantStatus: "No face detected",
		},
		{
			name:       "no match",
			result:     verify.Result{Outcome: verify.OutcomeNoMatch},
			wantCode:   http.StatusBadRequest,
			wantStatus: "fail",
		},
		{
			name:       "spoof carries identity",
			result:     verify.Result{Outcome: verify.OutcomeSpoofed, UserID: "emp42"},
			wantCode:   http.StatusBadRequest,
			wantStatus: "Spoof detected.. Try to blink",
			wantUserID: "emp42",
		},
		{
			name:       "accepted",
			result:     verify.Result{Outcome: verify.OutcomeAccepted, UserID: "emp42"},
			wantCode:   http.StatusOK,
			wantStatus: "Attendance Successful",
			wantUserID: "emp42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newFakeStore()
			db.staff["emp42"] = models.Staff{UserID: "emp42", Name: "Ada"}
			notifier := &fakeNotifier{}
			r := attendanceRouter(&fakeVerifier{result: tt.result}, db, newFakeSnapshots(), notifier)

			w := doJSON(t, r, http.MethodPost, "/attendance", dto.AttendanceRequest{Image: testFrame})
			if w.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}

			var resp dto.AttendanceResponse
			decodeBody(t, w, &resp)
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.UserID != tt.wantUserID {
				t.Errorf("user_id = %q, want %q", resp.UserID, tt.wantUserID)
			}

			if tt.result.Outcome == verify.OutcomeAccepted {
				if resp.Name != "Ada" {
					t.Errorf("name = %q, want Ada", resp.Name)
				}
				if len(db.pending) != 1 {
					t.Errorf("pending records = %d, want 1", len(db.pending))
				}
				if notifier.count() != 1 {
					t.Errorf("notifications = %d, want 1", notifier.count())
				}
			} else {
				if len(db.pending) != 0 {
					t.Errorf("pending records = %d, want 0", len(db.pending))
				}
				if notifier.count() != 0 {
					t.Errorf("notifications = %d, want 0", notifier.count())
				}
			}
		})
	}
}

func TestSubmitBadPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing image field", `{}`},
		{"not json", `not json at all`},
		{"invalid base64", `{"image":"data:image/jpeg;base64,%%%"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := attendanceRouter(&fakeVerifier{}, newFakeStore(), newFakeSnapshots(), &fakeNotifier{})
			req, w := newRawRequest(t, tt.body)
			r.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("code = %d, want 400", w.Code)
			}
			var resp dto.StatusResponse
			decodeBody(t, w, &resp)
			if resp.Status != "fail" {
				t.Errorf("status = %q, want fail", resp.Status)
			}
		})
	}
}

func TestSubmitVerifierError(t *testing.T) {
	r := attendanceRouter(&fakeVerifier{err: errors.New("inference failed")}, newFakeStore(), newFakeSnapshots(), &fakeNotifier{})
	w := doJSON(t, r, http.MethodPost, "/attendance", dto.AttendanceRequest{Image: testFrame})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", w.Code)
	}
}

func TestSubmitSnapshotFailureDoesNotBlock(t *testing.T) {
	db := newFakeStore()
	db.staff["emp42"] = models.Staff{UserID: "emp42", Name: "Ada"}
	snaps := newFakeSnapshots()
	snaps.putErr = errors.New("minio down")
	r := attendanceRouter(&fakeVerifier{result: verify.Result{Outcome: verify.OutcomeAccepted, UserID: "emp42"}}, db, snaps, &fakeNotifier{})

	w := doJSON(t, r, http.MethodPost, "/attendance", dto.AttendanceRequest{Image: testFrame})
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	for _, rec := range db.pending {
		if rec.SnapshotKey != "" {
			t.Errorf("snapshot key = %q, want empty after store failure", rec.SnapshotKey)
		}
	}
}

func TestSubmitStoresSnapshot(t *testing.T) {
	db := newFakeStore()
	db.staff["emp42"] = models.Staff{UserID: "emp42", Name: "Ada"}
	snaps := newFakeSnapshots()
	r := attendanceRouter(&fakeVerifier{result: verify.Result{Outcome: verify.OutcomeAccepted, UserID: "emp42"}}, db, snaps, &fakeNotifier{})

	w := doJSON(t, r, http.MethodPost, "/attendance", dto.AttendanceRequest{Image: testFrame})
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}
	if len(snaps.objects) != 1 {
		t.Fatalf("stored snapshots = %d, want 1", len(snaps.objects))
	}
	for key := range snaps.objects {
		if !strings.HasPrefix(key, "snapshots/emp42/") {
			t.Errorf("snapshot key = %q, want snapshots/emp42/ prefix", key)
		}
	}
	for _, rec := range db.pending {
		if rec.SnapshotKey == "" {
			t.Error("pending record has empty snapshot key")
		}
	}
}
