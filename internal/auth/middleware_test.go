package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"edutest-system/internal/models"
)

func TestJWTMiddleware(t *testing.T) {
	const secret = "test-secret"
	service := NewService(nil, secret)

	token, err := service.GenerateToken(&models.User{
		ID:       42,
		Username: "student1",
		Role:     models.RoleStudent,
	})
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	var gotUserID uint
	var gotRole models.Role
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = r.Context().Value("user_id").(uint)
		gotRole, _ = r.Context().Value("role").(models.Role)
	})
	handler := JWTMiddleware(secret)(next)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", token, http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/boards", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}

	if gotUserID != 42 {
		t.Errorf("user_id in context = %d, want 42", gotUserID)
	}
	if gotRole != models.RoleStudent {
		t.Errorf("role in context = %s, want %s", gotRole, models.RoleStudent)
	}
}
