package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	"go.uber.org/zap"

	"github.com/spec-kit/catalog-service/internal/config"
)

const generatedPasswordLength = 24

// BootstrapAdmin creates the configured initial admin when it does not exist
// yet. When no password is configured one is generated and logged once.
func BootstrapAdmin(ctx context.Context, authService *AuthService, cfg config.AuthConfig, logger *zap.Logger) error {
	username := cfg.BootstrapAdminUsername
	if username == "" {
		return nil
	}

	exists, err := authService.Exists(ctx, username)
	if err != nil {
		return err
	}
	if exists {
		logger.Debug("bootstrap admin already present", zap.String("username", username))
		return nil
	}

	password := cfg.BootstrapAdminPassword
	generated := password == ""
	if generated {
		if password, err = generatePassword(generatedPasswordLength); err != nil {
			return err
		}
	}

	if _, err := authService.CreateAdmin(ctx, username, password); err != nil {
		return err
	}
	if generated {
		logger.Warn("initial admin created with generated password",
			zap.String("username", username),
			zap.String("password", password))
	} else {
		logger.Info("initial admin created", zap.String("username", username))
	}
	return nil
}

func generatePassword(length int) (string, error) {
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}
