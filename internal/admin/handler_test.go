package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"edutest-system/internal/models"
)

func doCreateStaff(h *Handler, ctx context.Context, body string) (*httptest.ResponseRecorder, Envelope) {
	req := httptest.NewRequest("POST", "/api/admin/staff", strings.NewReader(body))
	req = req.WithContext(ctx)
	rr := httptest.NewRecorder()
	h.CreateStaff(rr, req)

	var envelope Envelope
	json.NewDecoder(rr.Body).Decode(&envelope)
	return rr, envelope
}

func TestEnvelopeUnauthenticated(t *testing.T) {
	h := NewHandler(NewService(newFakeStore()))

	rr, envelope := doCreateStaff(h, context.Background(), "{}")

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if envelope.Success {
		t.Error("envelope marked success")
	}
	if envelope.Error == nil || envelope.Error.Code != CodeUnauthenticated {
		t.Errorf("error = %+v, want code %s", envelope.Error, CodeUnauthenticated)
	}
}

func TestEnvelopePermissionDenied(t *testing.T) {
	h := NewHandler(NewService(newFakeStore()))

	ctx := context.WithValue(context.Background(), "user_id", uint(5))
	ctx = context.WithValue(ctx, "role", models.RoleStudent)
	rr, envelope := doCreateStaff(h, ctx, "{}")

	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
	if envelope.Error == nil || envelope.Error.Code != CodePermissionDenied {
		t.Errorf("error = %+v, want code %s", envelope.Error, CodePermissionDenied)
	}
}

func TestEnvelopeSuccess(t *testing.T) {
	h := NewHandler(NewService(newFakeStore()))

	ctx := context.WithValue(context.Background(), "user_id", uint(1))
	ctx = context.WithValue(ctx, "role", models.RoleAdmin)
	body := `{"username":"t1","email":"t1@example.com","password":"secret","role":"teacher"}`
	rr, envelope := doCreateStaff(h, ctx, body)

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusCreated)
	}
	if !envelope.Success || envelope.Error != nil {
		t.Errorf("envelope = %+v, want success", envelope)
	}
}
