package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func runGuard(t *testing.T, guard gin.HandlerFunc, authHeader string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/orders", nil)
	if authHeader != "" {
		c.Request.Header.Set("Authorization", authHeader)
	}
	guard(c)
	return w, c
}

func TestAuthGuardValidToken(t *testing.T) {
	userID := primitive.NewObjectID()
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":   userID.Hex(),
		"email": "driver@example.com",
		"role":  "driver",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	w, c := runGuard(t, AuthGuard(testSecret, "driver"), "Bearer "+token)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	claims, ok := ClaimsFrom(c)
	if !ok {
		t.Fatal("expected claims to be set on the context")
	}
	if claims.UserID != userID {
		t.Errorf("expected user id %s, got %s", userID.Hex(), claims.UserID.Hex())
	}
	if claims.Role != "driver" {
		t.Errorf("expected role driver, got %s", claims.Role)
	}
}

func TestAuthGuardMissingToken(t *testing.T) {
	w, _ := runGuard(t, AuthGuard(testSecret), "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestAuthGuardMalformedHeader(t *testing.T) {
	w, _ := runGuard(t, AuthGuard(testSecret), "Token abc.def.ghi")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestAuthGuardWrongSecret(t *testing.T) {
	token := signToken(t, "other-secret", jwt.MapClaims{
		"sub":  primitive.NewObjectID().Hex(),
		"role": "customer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	w, _ := runGuard(t, AuthGuard(testSecret), "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestAuthGuardExpiredToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  primitive.NewObjectID().Hex(),
		"role": "customer",
		"exp":  time.Now().Add(-time.Hour).Unix(),
	})
	w, _ := runGuard(t, AuthGuard(testSecret), "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestAuthGuardRoleMismatch(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  primitive.NewObjectID().Hex(),
		"role": "customer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	w, _ := runGuard(t, AuthGuard(testSecret, "driver"), "Bearer "+token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", w.Code)
	}
}

func TestAuthGuardBadSubject(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "not-an-object-id",
		"role": "customer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	w, _ := runGuard(t, AuthGuard(testSecret), "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}
