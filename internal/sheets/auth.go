package sheets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2/google"
)

// Scopes requested for the service account: read/write the sheet and upload
// assets to Drive.
var Scopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive",
}

// ServiceAccountClient returns an HTTP client that signs requests with the
// given service-account key. The token source refreshes itself.
func ServiceAccountClient(ctx context.Context, credentialsJSON []byte, timeout time.Duration) (*http.Client, error) {
	conf, err := google.JWTConfigFromJSON(credentialsJSON, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	client := conf.Client(ctx)
	client.Timeout = timeout
	return client, nil
}
