package qstash

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestPublishSendsDelayedMessage(t *testing.T) {
	t.Parallel()

	var (
		gotPath  string
		gotAuth  string
		gotDelay string
		gotDedup string
		gotBody  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotDelay = r.Header.Get("Upstash-Delay")
		gotDedup = r.Header.Get("Upstash-Deduplication-Id")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messageId":"msg_123"}`))
	}))
	defer srv.Close()

	client := MustNew(Config{URL: srv.URL + "/", Token: "tok"})
	id, err := client.Publish(context.Background(), PublishRequest{
		Destination:     "https://crm.example.com/follow-up",
		Body:            []byte(`{"lead":"l1"}`),
		Delay:           24 * time.Hour,
		DeduplicationID: "l1",
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if id != "msg_123" {
		t.Fatalf("Publish() id = %q", id)
	}
	if gotPath != "/v2/publish/https://crm.example.com/follow-up" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer tok" || gotDelay != "86400s" || gotDedup != "l1" || gotBody != `{"lead":"l1"}` {
		t.Fatalf("unexpected request: auth=%q delay=%q dedup=%q body=%q", gotAuth, gotDelay, gotDedup, gotBody)
	}
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := MustNew(Config{URL: srv.URL, Token: "bad"})
	if _, err := client.Publish(context.Background(), PublishRequest{Destination: "https://x.test"}); !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("Publish() error = %v, want ErrPublishFailed", err)
	}

	noToken := MustNew(Config{URL: srv.URL})
	if _, err := noToken.Publish(context.Background(), PublishRequest{Destination: "https://x.test"}); !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("Publish() without token error = %v", err)
	}
	if _, err := client.Publish(context.Background(), PublishRequest{}); !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("Publish() without destination error = %v", err)
	}
}

func TestNewClientValidatesURL(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{URL: " "}); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := NewClient(Config{URL: "not a url"}); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func sign(t *testing.T, key, destination string, body []byte, exp time.Time) string {
	t.Helper()

	sum := sha256.Sum256(body)
	claims := signatureClaims{
		Body: base64.URLEncoding.EncodeToString(sum[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "Upstash",
			Subject:   destination,
			ExpiresAt: jwt.NewNumericDate(exp),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func TestVerify(t *testing.T) {
	t.Parallel()

	client := MustNew(Config{URL: "https://qstash.upstash.io", CurrentSigningKey: "current", NextSigningKey: "next"})
	dest := "https://crm.example.com/follow-up"
	body := []byte(`{"lead":"l1"}`)
	exp := time.Now().Add(5 * time.Minute)

	tests := []struct {
		name    string
		sig     string
		body    []byte
		dest    string
		wantErr bool
	}{
		{name: "current key", sig: sign(t, "current", dest, body, exp), body: body, dest: dest},
		{name: "next key", sig: sign(t, "next", dest, body, exp), body: body, dest: dest},
		{name: "subject check skipped", sig: sign(t, "current", dest, body, exp), body: body, dest: ""},
		{name: "unknown key", sig: sign(t, "other", dest, body, exp), body: body, dest: dest, wantErr: true},
		{name: "tampered body", sig: sign(t, "current", dest, body, exp), body: []byte(`{"lead":"l2"}`), dest: dest, wantErr: true},
		{name: "wrong destination", sig: sign(t, "current", dest, body, exp), body: body, dest: "https://evil.test", wantErr: true},
		{name: "expired", sig: sign(t, "current", dest, body, time.Now().Add(-time.Hour)), body: body, dest: dest, wantErr: true},
		{name: "empty", sig: "", body: body, dest: dest, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := client.Verify(tc.sig, tc.body, tc.dest)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidSignature) {
					t.Fatalf("Verify() error = %v, want ErrInvalidSignature", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
		})
	}
}
