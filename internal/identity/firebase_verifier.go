package identity

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// FirebaseVerifier はFirebase Admin SDKでIDトークンの署名と有効期限を検証する。
type FirebaseVerifier struct {
	client *auth.Client
}

// NewFirebaseVerifier はサービスアカウントの認証情報ファイルからFirebaseVerifierを生成する。
func NewFirebaseVerifier(ctx context.Context, credPath string) (*FirebaseVerifier, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// Verify はトークンを検証する。
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) error {
	if _, err := v.client.VerifyIDToken(ctx, token); err != nil {
		return fmt.Errorf("firebase token verification failed: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Verifier = (*FirebaseVerifier)(nil)
