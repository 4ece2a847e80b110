package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"intake/internal/domain"
	"intake/internal/service/impl"
	"intake/internal/store"
	"intake/internal/transport/ws"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testCookieName = "intake_session"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(
		&domain.User{}, &domain.OTPRecord{}, &domain.Session{},
		&domain.Ticket{}, &domain.Task{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	st := store.New(gdb)

	otp := impl.NewOTPServiceImpl(st)
	passwords := impl.NewPasswordServiceArgon2id()
	migration := impl.NewMigrationServiceImpl(st)
	sessions, err := impl.NewSessionServiceHS256(impl.SessionConfig{
		Issuer:     "intake-test",
		TTL:        time.Hour,
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
	}, st)
	if err != nil {
		t.Fatalf("session service: %v", err)
	}
	auth := impl.NewAuthServiceImpl(st, otp, passwords, migration)
	auth.EchoOTP = true

	gateway := ws.NewGateway(sessions, st.Tickets(), testCookieName)

	srv := httptest.NewServer(NewRouter(Deps{
		Auth:       auth,
		Sessions:   sessions,
		Migration:  migration,
		Gateway:    gateway,
		CookieName: testCookieName,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any, cookie *stdhttp.Cookie) *stdhttp.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := stdhttp.NewRequest(stdhttp.MethodPost, srv.URL+path, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *stdhttp.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func sessionCookie(t *testing.T, resp *stdhttp.Response) *stdhttp.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == testCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func TestOTPLoginFlow(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/api/auth/request-otp", map[string]string{"username": "signe"}, nil)
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("request-otp status = %d", resp.StatusCode)
	}
	issued := decodeBody(t, resp)
	code, _ := issued["code"].(string)
	userID, _ := issued["userId"].(string)
	if code == "" || userID == "" {
		t.Fatalf("dev echo response incomplete: %v", issued)
	}

	resp = postJSON(t, srv, "/api/auth/verify-otp", map[string]string{"userId": userID, "otp": code}, nil)
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("verify-otp status = %d", resp.StatusCode)
	}
	cookie := sessionCookie(t, resp)
	user := decodeBody(t, resp)
	if user["username"] != "signe" {
		t.Fatalf("verify-otp body = %v", user)
	}

	// The cookie opens the session-gated surface.
	req, _ := stdhttp.NewRequest(stdhttp.MethodGet, srv.URL+"/api/auth/password/migration-status", nil)
	req.AddCookie(cookie)
	statusResp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("migration-status: %v", err)
	}
	if statusResp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("migration-status status = %d", statusResp.StatusCode)
	}
	status := decodeBody(t, statusResp)
	if status["active"] != false {
		t.Fatalf("otp-only user has no migration clock: %v", status)
	}

	// Logout revokes the session; the same cookie stops working.
	resp = postJSON(t, srv, "/api/auth/logout", nil, cookie)
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusNoContent {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	req, _ = stdhttp.NewRequest(stdhttp.MethodGet, srv.URL+"/api/auth/password/migration-status", nil)
	req.AddCookie(cookie)
	statusResp, err = srv.Client().Do(req)
	if err != nil {
		t.Fatalf("migration-status: %v", err)
	}
	statusResp.Body.Close()
	if statusResp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("revoked cookie status = %d, want 401", statusResp.StatusCode)
	}
}

func TestVerifyOTPWrongCodeIs401(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/api/auth/request-otp", map[string]string{"username": "tove"}, nil)
	issued := decodeBody(t, resp)
	userID, _ := issued["userId"].(string)
	code, _ := issued["code"].(string)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	resp = postJSON(t, srv, "/api/auth/verify-otp", map[string]string{"userId": userID, "otp": wrong}, nil)
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("wrong code status = %d, want 401", resp.StatusCode)
	}
}

func TestRequestOTPRateLimited(t *testing.T) {
	srv := newTestServer(t)

	var last int
	for i := 0; i < 4; i++ {
		resp := postJSON(t, srv, "/api/auth/request-otp", map[string]string{"username": "ulrik"}, nil)
		resp.Body.Close()
		last = resp.StatusCode
	}
	if last != stdhttp.StatusTooManyRequests {
		t.Fatalf("fourth request status = %d, want 429", last)
	}
}

func TestSessionGatedEndpointsReject(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/api/auth/password/setup-password", map[string]string{
		"password": "long enough", "confirmPassword": "long enough",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("no cookie status = %d, want 401", resp.StatusCode)
	}

	resp = postJSON(t, srv, "/api/auth/password/setup-password", nil,
		&stdhttp.Cookie{Name: testCookieName, Value: "forged"})
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("forged cookie status = %d, want 401", resp.StatusCode)
	}
}

func TestSetupPasswordValidationIs400(t *testing.T) {
	srv := newTestServer(t)

	// Login first to obtain a cookie.
	resp := postJSON(t, srv, "/api/auth/request-otp", map[string]string{"username": "viggo"}, nil)
	issued := decodeBody(t, resp)
	resp = postJSON(t, srv, "/api/auth/verify-otp", map[string]string{
		"userId": issued["userId"].(string), "otp": issued["code"].(string),
	}, nil)
	cookie := sessionCookie(t, resp)
	resp.Body.Close()

	resp = postJSON(t, srv, "/api/auth/password/setup-password", map[string]string{
		"password": "short", "confirmPassword": "short",
	}, cookie)
	defer resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("short password status = %d, want 400", resp.StatusCode)
	}
}

func TestPasswordLoginDeprecationHeaders(t *testing.T) {
	srv := newTestServer(t)

	// Bootstrap: otp login, then configure a password.
	resp := postJSON(t, srv, "/api/auth/request-otp", map[string]string{"username": "wilma"}, nil)
	issued := decodeBody(t, resp)
	resp = postJSON(t, srv, "/api/auth/verify-otp", map[string]string{
		"userId": issued["userId"].(string), "otp": issued["code"].(string),
	}, nil)
	cookie := sessionCookie(t, resp)
	resp.Body.Close()
	resp = postJSON(t, srv, "/api/auth/password/setup-password", map[string]string{
		"password": "long enough", "confirmPassword": "long enough",
	}, cookie)
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("setup-password status = %d", resp.StatusCode)
	}

	resp = postJSON(t, srv, "/api/auth/password/login", map[string]string{
		"username": "wilma", "password": "long enough",
	}, nil)
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("password login status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Auth-Deprecated") != "true" {
		t.Fatalf("missing X-Auth-Deprecated header")
	}
	if resp.Header.Get("Warning") == "" {
		t.Fatalf("missing Warning header")
	}
	sessionCookie(t, resp)
	body := decodeBody(t, resp)
	if body["deprecated"] != true || body["warning"] == "" {
		t.Fatalf("login body lacks deprecation notice: %v", body)
	}
}
