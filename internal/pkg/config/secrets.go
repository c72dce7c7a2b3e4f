// internal/pkg/config/secrets.go
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsProvider resolves named secrets
type SecretsProvider interface {
	GetSecret(ctx context.Context, key string) (string, error)
}

// SecretValueAPI is the subset of the Secrets Manager client used here
type SecretValueAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

var (
	_ SecretsProvider = (*AWSSecretsManager)(nil)
	_ SecretsProvider = (*EnvSecretsManager)(nil)
)

// AWSSecretsManager implements AWS Secrets Manager integration
type AWSSecretsManager struct {
	client     SecretValueAPI
	secretName string
	cache      map[string]string
	cacheMu    sync.RWMutex
	lastFetch  time.Time
	ttl        time.Duration
	logger     *slog.Logger
}

// NewAWSSecretsManager creates a new AWS Secrets Manager client
func NewAWSSecretsManager(ctx context.Context, region, secretName string, logger *slog.Logger) (*AWSSecretsManager, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewAWSSecretsManagerWithClient(secretsmanager.NewFromConfig(cfg), secretName, logger), nil
}

// NewAWSSecretsManagerWithClient wraps an existing client
func NewAWSSecretsManagerWithClient(client SecretValueAPI, secretName string, logger *slog.Logger) *AWSSecretsManager {
	return &AWSSecretsManager{
		client:     client,
		secretName: secretName,
		cache:      make(map[string]string),
		ttl:        5 * time.Minute,
		logger:     logger,
	}
}

// GetSecret retrieves a single secret. The whole secret is cached for the
// TTL; a plain string secret is returned for any key.
func (sm *AWSSecretsManager) GetSecret(ctx context.Context, key string) (string, error) {
	sm.cacheMu.RLock()
	if time.Since(sm.lastFetch) < sm.ttl {
		if val, ok := sm.cache[key]; ok {
			sm.cacheMu.RUnlock()
			sm.logger.Debug("returning cached secret", slog.String("key", key))
			return val, nil
		}
	}
	sm.cacheMu.RUnlock()

	sm.logger.Info("fetching secrets from AWS Secrets Manager",
		slog.String("secret_name", sm.secretName))

	result, err := sm.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(sm.secretName),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret value: %w", err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", sm.secretName)
	}

	secretData := make(map[string]string)
	if err := json.Unmarshal([]byte(*result.SecretString), &secretData); err != nil {
		secretData = map[string]string{key: *result.SecretString}
	}

	sm.cacheMu.Lock()
	sm.cache = secretData
	sm.lastFetch = time.Now()
	sm.cacheMu.Unlock()

	val, ok := secretData[key]
	if !ok {
		sm.logger.Warn("secret key not found in AWS Secrets Manager",
			slog.String("key", key))
		return "", fmt.Errorf("secret key %s not found", key)
	}
	return val, nil
}

// EnvSecretsManager implements secrets management using environment variables
type EnvSecretsManager struct{}

// NewEnvSecretsManager creates a new environment-based secrets manager
func NewEnvSecretsManager() *EnvSecretsManager {
	return &EnvSecretsManager{}
}

// GetSecret retrieves a secret from environment variables
func (em *EnvSecretsManager) GetSecret(ctx context.Context, key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("environment variable %s not set", key)
	}
	return val, nil
}

// ResolveSecret fetches key and rejects empty values
func ResolveSecret(ctx context.Context, provider SecretsProvider, key string) (string, error) {
	val, err := provider.GetSecret(ctx, key)
	if err != nil {
		return "", err
	}
	if val == "" {
		return "", fmt.Errorf("%w: secret %s is empty", ErrMissingRequiredConfig, key)
	}
	return val, nil
}
