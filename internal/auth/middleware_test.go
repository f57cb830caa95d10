package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticAPIKeyValidatorParsesSpec(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("key1:analyst,key2:analyst|admin")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}

	identity, ok := validator.Validate(context.Background(), "key2")
	if !ok {
		t.Fatal("key2 should validate")
	}
	if !identity.HasRole("admin") {
		t.Fatalf("roles = %v", identity.Roles)
	}
	if _, ok := validator.Validate(context.Background(), "missing"); ok {
		t.Fatal("unknown key should not validate")
	}
}

func TestStaticAPIKeyValidatorRejectsMalformedSpec(t *testing.T) {
	if _, err := NewStaticAPIKeyValidator("key-without-role"); err == nil {
		t.Fatal("expected error for malformed entry")
	}
	if _, err := NewStaticAPIKeyValidator("key:"); err == nil {
		t.Fatal("expected error for empty role list")
	}
}

func TestMiddlewareRejectsMissingKey(t *testing.T) {
	validator, _ := NewStaticAPIKeyValidator("key1:analyst")
	handler := Middleware(nil, validator)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/analyze", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestMiddlewareAcceptsBearerToken(t *testing.T) {
	validator, _ := NewStaticAPIKeyValidator("key1:analyst")
	var identity Identity
	handler := Middleware(nil, validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ = IdentityFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", nil)
	req.Header.Set("Authorization", "Bearer key1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !identity.HasRole("analyst") {
		t.Fatalf("identity = %+v", identity)
	}
}
