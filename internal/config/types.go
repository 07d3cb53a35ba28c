package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ServiceAccount holds the fields of a Firebase service account key that the
// recorder reads. The remaining fields are ignored.
type ServiceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// CanSign reports whether the key can mint OAuth access tokens.
func (sa *ServiceAccount) CanSign() bool {
	return strings.TrimSpace(sa.ClientEmail) != "" && strings.TrimSpace(sa.PrivateKey) != ""
}

// ParseServiceAccount decodes the FIREBASE_CONFIG JSON document.
func ParseServiceAccount(raw string) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal([]byte(raw), &sa); err != nil {
		return nil, fmt.Errorf("FIREBASE_CONFIG is not valid JSON: %w", err)
	}
	return &sa, nil
}

// DatabaseURL is the default Realtime Database instance for the project.
func (sa *ServiceAccount) DatabaseURL() string {
	if strings.TrimSpace(sa.ProjectID) == "" {
		return ""
	}
	return fmt.Sprintf("https://%s-default-rtdb.firebaseio.com", sa.ProjectID)
}
