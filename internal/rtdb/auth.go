package rtdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"
)

// DefaultTokenURL is Google's OAuth 2.0 token endpoint, used when the key
// does not name one.
const DefaultTokenURL = "https://oauth2.googleapis.com/token"

// Scopes required for Realtime Database REST access with a service account.
var Scopes = []string{
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/userinfo.email",
}

var ErrInvalidServiceAccount = errors.New("invalid service account key")

type serviceAccountKey struct {
	Type         string `json:"type"`
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	TokenURI     string `json:"token_uri"`
}

// ServiceAccountTokenSource mints access tokens from a service account key
// using the JWT bearer grant. Tokens are cached until shortly before expiry.
// ctx is kept for every later token request.
func ServiceAccountTokenSource(ctx context.Context, keyJSON []byte) (oauth2.TokenSource, error) {
	var key serviceAccountKey
	if err := json.Unmarshal(keyJSON, &key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServiceAccount, err)
	}
	if key.Type != "" && key.Type != "service_account" {
		return nil, fmt.Errorf("%w: type %q", ErrInvalidServiceAccount, key.Type)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("%w: client_email and private_key are required", ErrInvalidServiceAccount)
	}

	tokenURL := key.TokenURI
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	cfg := &jwt.Config{
		Email:        key.ClientEmail,
		PrivateKey:   []byte(key.PrivateKey),
		PrivateKeyID: key.PrivateKeyID,
		Scopes:       Scopes,
		TokenURL:     tokenURL,
	}
	return cfg.TokenSource(ctx), nil
}
