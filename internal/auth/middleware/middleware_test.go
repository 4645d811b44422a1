package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/studycontrol/studycontrol/internal/db"
	"github.com/studycontrol/studycontrol/internal/rbac"
)

func TestJWTRoundtrip(t *testing.T) {
	a := NewAuthService("secret-1")
	tok, err := a.IssueJWT("user-1", "staff")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	c, err := a.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Sub != "user-1" || c.Role != "staff" {
		t.Fatalf("claims = %+v", c)
	}

	if _, err := NewAuthService("other-secret").Parse(tok); err == nil {
		t.Fatal("token must not verify under another secret")
	}
}

func TestLoginHandler(t *testing.T) {
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	dbh, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	dbh.SetMaxOpenConns(1)
	if err := db.EnsureSchema(context.Background(), dbh, db.DriverSQLite); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })

	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if _, err := dbh.Exec(`INSERT INTO users (id, username, password_hash, role, created_at)
		VALUES ($1,'alice',$2,'staff',$3)`, uuid.NewString(), string(hash), time.Now().Unix()); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	a := NewAuthService("secret-1")
	h := LoginHandler(a, dbh)

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest("POST", "/auth/login",
		strings.NewReader(`{"username":"alice","password":"hunter2"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var out map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if out["role"] != "staff" || out["access_token"] == "" {
		t.Fatalf("login response = %v", out)
	}
	if c, err := a.Parse(out["access_token"]); err != nil || c.Role != "staff" {
		t.Fatalf("issued token invalid: %v", err)
	}

	rr = httptest.NewRecorder()
	h(rr, httptest.NewRequest("POST", "/auth/login",
		strings.NewReader(`{"username":"alice","password":"wrong"}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h(rr, httptest.NewRequest("POST", "/auth/login",
		strings.NewReader(`{"username":"nobody","password":"x"}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user status = %d", rr.Code)
	}
}

func TestJWTMiddlewareSetsContext(t *testing.T) {
	a := NewAuthService("secret-1")
	tok, _ := a.IssueJWT("user-7", "student")

	var gotSub, gotRole string
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotSub = rbac.SubjectFromContext(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
	})

	req := httptest.NewRequest("GET", "/attempts", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	JWTMiddleware(a)(next).ServeHTTP(httptest.NewRecorder(), req)
	if gotSub != "user-7" || gotRole != "student" {
		t.Fatalf("context = %q/%q", gotSub, gotRole)
	}

	rr := httptest.NewRecorder()
	JWTMiddleware(a)(next).ServeHTTP(rr, httptest.NewRequest("GET", "/attempts", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing bearer status = %d", rr.Code)
	}
}
