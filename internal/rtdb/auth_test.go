package rtdb

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/pucks-replay/internal/match"
)

func testKeyJSON(t *testing.T, tokenURL string) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshaling key: %v", err)
	}
	raw, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     "pucks-test",
		"private_key_id": "key-1",
		"private_key":    string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
		"client_email":   "recorder@pucks-test.iam.gserviceaccount.com",
		"token_uri":      tokenURL,
	})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestServiceAccountTokenSource_AuthorizesWrites(t *testing.T) {
	var grants atomic.Int32
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing token request: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
			t.Errorf("unexpected grant type %q", got)
		}
		if r.PostForm.Get("assertion") == "" {
			t.Error("expected a signed assertion")
		}
		grants.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"minted-token","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	dbServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer minted-token" {
			t.Errorf("unexpected Authorization header %q", got)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer dbServer.Close()

	ts, err := ServiceAccountTokenSource(context.Background(), testKeyJSON(t, tokenServer.URL))
	if err != nil {
		t.Fatalf("ServiceAccountTokenSource failed: %v", err)
	}
	client := NewClient(dbServer.URL, "", 0, 5*time.Second, time.Millisecond, 0, zap.NewNop()).WithTokenSource(ts)
	s := NewSink(client)

	for i := 0; i < 3; i++ {
		if err := s.PublishLiveSnapshot(context.Background(), match.PositionSample{OffsetMs: int64(i)}); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}
	if got := grants.Load(); got != 1 {
		t.Errorf("expected the token to be reused, got %d grants", got)
	}
}

func TestServiceAccountTokenSource_InvalidKeys(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{`},
		{"wrong type", `{"type":"authorized_user","client_email":"a@b","private_key":"k"}`},
		{"missing key", `{"type":"service_account","client_email":"a@b"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ServiceAccountTokenSource(context.Background(), []byte(tt.raw))
			if !errors.Is(err, ErrInvalidServiceAccount) {
				t.Errorf("expected ErrInvalidServiceAccount, got %v", err)
			}
		})
	}
}
