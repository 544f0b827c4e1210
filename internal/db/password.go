package db

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/willibrandon/dbprobe/internal/config"
)

// passwordCommandTimeout bounds how long a password_command may run.
const passwordCommandTimeout = 5 * time.Second

// Seams for tests.
var (
	stdinIsTerminal = func() bool { return term.IsTerminal(int(syscall.Stdin)) }
	promptPassword  = promptForPassword
)

// passwordEnvVars lists the driver-native environment variables consulted
// when no password is configured.
var passwordEnvVars = map[string]string{
	config.DriverPostgres: "PGPASSWORD",
	config.DriverMySQL:    "MYSQL_PWD",
}

// ResolvePassword retrieves the database password using the following precedence:
// 1. Execute password_command if configured
// 2. Use the configured password (file, DBPROBE_CONNECTION_PASSWORD)
// 3. Use the driver's own environment variable (PGPASSWORD, MYSQL_PWD) if set
// 4. Prompt interactively when stdin is a terminal
// Otherwise the password is empty.
func ResolvePassword(c config.ConnectionConfig) (string, error) {
	if c.PasswordCommand != "" {
		password, err := executePasswordCommand(c.PasswordCommand)
		if err != nil {
			return "", &ProbeError{Kind: KindCredentials, Stage: StageCredentials, Err: fmt.Errorf("password command failed: %w", err)}
		}
		return password, nil
	}

	if c.Password != "" {
		return c.Password, nil
	}

	driver, _ := config.NormalizeDriver(c.Driver)
	if driver == config.DriverSQLite {
		return "", nil
	}

	// Driver variable counts even if empty
	if name, ok := passwordEnvVars[driver]; ok {
		if value, exists := os.LookupEnv(name); exists {
			return value, nil
		}
	}

	if !stdinIsTerminal() {
		return "", nil
	}

	password, err := promptPassword(fmt.Sprintf("Password for %s@%s: ", c.User, c.Host))
	if err != nil {
		return "", &ProbeError{Kind: KindCredentials, Stage: StageCredentials, Err: fmt.Errorf("interactive password prompt failed: %w", err)}
	}
	return password, nil
}

// executePasswordCommand executes the configured password command with a 5-second timeout
func executePasswordCommand(command string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), passwordCommandTimeout)
	defer cancel()

	// Split on spaces; quoting is not interpreted
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", fmt.Errorf("empty password command")
	}

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("command timed out after %v", passwordCommandTimeout)
		}
		return "", fmt.Errorf("command failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	password := strings.TrimSpace(stdout.String())
	if password == "" {
		return "", fmt.Errorf("command returned empty password")
	}

	return password, nil
}

// promptForPassword prompts on stderr and reads the password with echo disabled.
func promptForPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprintln(os.Stderr) // Print newline after password input

	return string(passwordBytes), nil
}
