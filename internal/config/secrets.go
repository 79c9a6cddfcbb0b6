package config

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

const secretScheme = "sm://"

// ResolveSecrets replaces config values of the form "sm://<secret-name>" with
// the latest version of the named secret in Google Secret Manager. Plain
// values pass through untouched, so local development never needs GCP access.
func (c *Config) ResolveSecrets(ctx context.Context) error {
	fields := []*string{
		&c.JWTSecret,
		&c.OpenAIAPIKey,
		&c.GroqAPIKey,
		&c.AdminToken,
		&c.XenditSecretKey,
		&c.XenditWebhookToken,
		&c.S3AccessKey,
		&c.S3SecretKey,
	}

	needsClient := false
	for _, f := range fields {
		if strings.HasPrefix(*f, secretScheme) {
			needsClient = true
			break
		}
	}
	if !needsClient {
		return nil
	}
	if c.GCPProjectID == "" {
		return fmt.Errorf("GCP_PROJECT_ID must be set to resolve sm:// config values")
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create secret manager client: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()

	for _, f := range fields {
		if !strings.HasPrefix(*f, secretScheme) {
			continue
		}
		name := strings.TrimPrefix(*f, secretScheme)
		resolved, err := c.accessSecret(ctx, client, name)
		if err != nil {
			return err
		}
		*f = resolved
	}
	return nil
}

func (c *Config) accessSecret(ctx context.Context, client *secretmanager.Client, name string) (string, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", c.GCPProjectID, name)
	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resourceName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", name, err)
	}
	return string(result.Payload.Data), nil
}
