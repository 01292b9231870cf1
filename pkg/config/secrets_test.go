package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	secrets := map[string]string{
		SecretTrackerToken: "pat-abc123",
		"OTHER_TOKEN":      "value",
	}

	require.NoError(t, EncryptSecretsFile(dir, "correct horse", secrets))
	assert.True(t, SecretsFileExists(dir))

	decrypted, err := DecryptSecretsFile(dir, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, secrets, decrypted)
}

func TestDecryptWrongPassword(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EncryptSecretsFile(dir, "right", map[string]string{"A": "1"}))

	_, err := DecryptSecretsFile(dir, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestDecryptCorruptedFile(t *testing.T) {
	dir := t.TempDir()
	secretsDir := filepath.Join(dir, secretsDirName)
	require.NoError(t, os.MkdirAll(secretsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(secretsDir, secretsFileName), []byte("short"), 0600))

	_, err := DecryptSecretsFile(dir, "any")
	require.Error(t, err)
}

func TestDecryptFixesLoosePermissions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EncryptSecretsFile(dir, "pw", map[string]string{"A": "1"}))

	path := filepath.Join(dir, secretsDirName, secretsFileName)
	require.NoError(t, os.Chmod(path, 0644))

	_, err := DecryptSecretsFile(dir, "pw")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestGetSecretPrecedence(t *testing.T) {
	SetDecryptedSecrets(map[string]string{SecretTrackerToken: "from-file"})
	defer SetDecryptedSecrets(nil)

	t.Setenv(SecretTrackerToken, "from-env")

	// In-memory secrets win over the environment.
	value, err := GetSecret(SecretTrackerToken)
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)

	// Environment serves as fallback.
	SetDecryptedSecrets(nil)
	value, err = GetSecret(SecretTrackerToken)
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)
}

func TestGetSecretMissing(t *testing.T) {
	SetDecryptedSecrets(nil)
	_, err := GetSecret("NO_SUCH_SECRET_NAME")
	require.Error(t, err)
}

func TestSetAndDeleteSecret(t *testing.T) {
	SetDecryptedSecrets(nil)
	defer SetDecryptedSecrets(nil)

	SetSecret("A", "1")
	SetSecret("B", "2")
	assert.ElementsMatch(t, []string{"A", "B"}, GetDecryptedSecretNames())

	DeleteSecret("A")
	assert.ElementsMatch(t, []string{"B"}, GetDecryptedSecretNames())
}
