package db

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/dbprobe/internal/config"
)

// withTerminal swaps the terminal and prompt seams for the duration of a test.
func withTerminal(t *testing.T, isTTY bool, prompt func(string) (string, error)) {
	t.Helper()
	origTTY, origPrompt := stdinIsTerminal, promptPassword
	stdinIsTerminal = func() bool { return isTTY }
	if prompt != nil {
		promptPassword = prompt
	}
	t.Cleanup(func() {
		stdinIsTerminal, promptPassword = origTTY, origPrompt
	})
}

func unsetEnv(t *testing.T, name string) {
	t.Helper()
	t.Setenv(name, "")
	os.Unsetenv(name)
}

func TestResolvePassword_CommandWins(t *testing.T) {
	withTerminal(t, false, nil)
	t.Setenv("PGPASSWORD", "from-env")

	password, err := ResolvePassword(config.ConnectionConfig{
		Driver:          config.DriverPostgres,
		Password:        "from-config",
		PasswordCommand: "echo from-command",
	})
	require.NoError(t, err)
	assert.Equal(t, "from-command", password)
}

func TestResolvePassword_CommandFailures(t *testing.T) {
	withTerminal(t, false, nil)

	tests := []struct {
		name    string
		command string
		wantErr string
	}{
		{"non-zero exit", "false", "command failed"},
		{"empty output", "true", "empty password"},
		{"missing binary", "definitely-not-a-real-binary-dbprobe", "command failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolvePassword(config.ConnectionConfig{Driver: config.DriverMySQL, PasswordCommand: tt.command})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var pe *ProbeError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, KindCredentials, pe.Kind)
			assert.False(t, pe.Operational())
		})
	}
}

func TestResolvePassword_ConfiguredBeatsEnv(t *testing.T) {
	withTerminal(t, false, nil)
	t.Setenv("MYSQL_PWD", "from-env")

	password, err := ResolvePassword(config.ConnectionConfig{Driver: config.DriverMySQL, Password: "root"})
	require.NoError(t, err)
	assert.Equal(t, "root", password)
}

func TestResolvePassword_DriverEnv(t *testing.T) {
	withTerminal(t, false, nil)

	t.Run("postgres", func(t *testing.T) {
		t.Setenv("PGPASSWORD", "pg-secret")
		password, err := ResolvePassword(config.ConnectionConfig{Driver: "postgresql"})
		require.NoError(t, err)
		assert.Equal(t, "pg-secret", password)
	})

	t.Run("mariadb", func(t *testing.T) {
		t.Setenv("MYSQL_PWD", "maria-secret")
		password, err := ResolvePassword(config.ConnectionConfig{Driver: "mariadb"})
		require.NoError(t, err)
		assert.Equal(t, "maria-secret", password)
	})

	t.Run("empty variable still counts", func(t *testing.T) {
		withTerminal(t, true, func(string) (string, error) {
			t.Fatal("prompt must not run when PGPASSWORD is set")
			return "", nil
		})
		t.Setenv("PGPASSWORD", "")
		password, err := ResolvePassword(config.ConnectionConfig{Driver: config.DriverPostgres})
		require.NoError(t, err)
		assert.Empty(t, password)
	})
}

func TestResolvePassword_Prompt(t *testing.T) {
	unsetEnv(t, "PGPASSWORD")

	var gotPrompt string
	withTerminal(t, true, func(prompt string) (string, error) {
		gotPrompt = prompt
		return "typed", nil
	})

	password, err := ResolvePassword(config.ConnectionConfig{Driver: config.DriverPostgres, User: "app", Host: "db"})
	require.NoError(t, err)
	assert.Equal(t, "typed", password)
	assert.Equal(t, "Password for app@db: ", gotPrompt)
}

func TestResolvePassword_PromptError(t *testing.T) {
	unsetEnv(t, "MYSQL_PWD")
	withTerminal(t, true, func(string) (string, error) {
		return "", errors.New("inappropriate ioctl for device")
	})

	_, err := ResolvePassword(config.ConnectionConfig{Driver: config.DriverMySQL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interactive password prompt failed")
}

func TestResolvePassword_NoTerminalMeansEmpty(t *testing.T) {
	unsetEnv(t, "PGPASSWORD")
	withTerminal(t, false, nil)

	password, err := ResolvePassword(config.ConnectionConfig{Driver: config.DriverPostgres})
	require.NoError(t, err)
	assert.Empty(t, password)
}

func TestResolvePassword_SQLiteNeverPrompts(t *testing.T) {
	withTerminal(t, true, func(string) (string, error) {
		t.Fatal("sqlite must not prompt")
		return "", nil
	})

	password, err := ResolvePassword(config.ConnectionConfig{Driver: config.DriverSQLite})
	require.NoError(t, err)
	assert.Empty(t, password)
}
