package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/infrastructure/auth"
)

func TestAuthMiddleware(t *testing.T) {
	manager := auth.NewJWTManager("secret", time.Hour)
	token, err := manager.Generate(&domain.Principal{ID: "alice", TenantID: "acme", Role: domain.RoleAccountant})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	foreign, err := auth.NewJWTManager("other", time.Hour).Generate(&domain.Principal{ID: "mallory", TenantID: "acme", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid token", header: "Bearer " + token, wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, wantStatus: http.StatusUnauthorized},
		{name: "foreign signature", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *domain.Principal
			handler := AuthMiddleware(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = domain.PrincipalFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantStatus == http.StatusOK && (got == nil || got.ID != "alice" || got.TenantID != "acme") {
				t.Fatalf("expected principal in context, got %+v", got)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		principal  *domain.Principal
		minRole    domain.Role
		wantStatus int
	}{
		{name: "no principal", minRole: domain.RoleViewer, wantStatus: http.StatusUnauthorized},
		{name: "viewer reads", principal: &domain.Principal{ID: "v", TenantID: "acme", Role: domain.RoleViewer}, minRole: domain.RoleViewer, wantStatus: http.StatusOK},
		{name: "viewer cannot post", principal: &domain.Principal{ID: "v", TenantID: "acme", Role: domain.RoleViewer}, minRole: domain.RoleAccountant, wantStatus: http.StatusForbidden},
		{name: "accountant posts", principal: &domain.Principal{ID: "a", TenantID: "acme", Role: domain.RoleAccountant}, minRole: domain.RoleAccountant, wantStatus: http.StatusOK},
		{name: "accountant cannot edit chart", principal: &domain.Principal{ID: "a", TenantID: "acme", Role: domain.RoleAccountant}, minRole: domain.RoleAdmin, wantStatus: http.StatusForbidden},
		{name: "admin edits chart", principal: &domain.Principal{ID: "root", TenantID: "acme", Role: domain.RoleAdmin}, minRole: domain.RoleAdmin, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", nil)
			if tt.principal != nil {
				req = req.WithContext(domain.WithPrincipal(req.Context(), tt.principal))
			}
			rr := httptest.NewRecorder()
			RequireRole(tt.minRole)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
		})
	}
}
