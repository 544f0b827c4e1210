package db

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/willibrandon/dbprobe/internal/config"
)

// ApplicationName is reported to servers that accept a client name.
const ApplicationName = "dbprobe"

// redactedPassword replaces the password wherever a target is rendered.
const redactedPassword = "xxxxx"

// Target identifies where a probe connects: credentials plus a network
// address, or a file path for SQLite.
type Target struct {
	Driver         string
	User           string
	Password       string
	Host           string
	Port           string
	Database       string
	SSLMode        string
	ConnectTimeout time.Duration
}

// TargetFromConfig builds a Target from connection settings and an already
// resolved password.
func TargetFromConfig(c config.ConnectionConfig, password string) Target {
	driver, _ := config.NormalizeDriver(c.Driver)
	port := c.Port
	if port == "" {
		port = config.DefaultPort(driver)
	}
	return Target{
		Driver:         driver,
		User:           c.User,
		Password:       password,
		Host:           c.Host,
		Port:           port,
		Database:       c.Database,
		SSLMode:        c.SSLMode,
		ConnectTimeout: c.ConnectTimeout,
	}
}

// Validate checks that every field needed for a well-formed connection
// attempt is present.
func (t Target) Validate() error {
	driver, ok := config.NormalizeDriver(t.Driver)
	if !ok {
		return fmt.Errorf("unsupported driver %q", t.Driver)
	}
	if t.Database == "" {
		return fmt.Errorf("database cannot be empty")
	}
	if driver == config.DriverSQLite {
		return nil
	}
	if t.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if t.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	port, err := strconv.Atoi(t.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %q", t.Port)
	}
	return nil
}

// Address returns host:port.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, t.Port)
}

// Redacted renders the target as a URL with the password masked.
func (t Target) Redacted() string {
	if driver, ok := config.NormalizeDriver(t.Driver); ok {
		t.Driver = driver
	}
	if t.Driver == config.DriverSQLite {
		return "sqlite:" + t.Database
	}
	return t.url(redactedPassword).String()
}

func (t Target) String() string {
	return t.Redacted()
}

// url builds a URL for the target using pass as the password. An empty
// target password is left out entirely.
func (t Target) url(pass string) *url.URL {
	u := &url.URL{
		Scheme: t.Driver,
		Host:   t.Address(),
		Path:   "/" + t.Database,
	}
	switch {
	case t.Password != "":
		u.User = url.UserPassword(t.User, pass)
	case t.User != "":
		u.User = url.User(t.User)
	}
	return u
}

// postgresConnString returns a pgx connection URL including the real password.
func (t Target) postgresConnString() string {
	u := t.url(t.Password)
	u.Scheme = "postgres"
	q := url.Values{}
	if t.SSLMode != "" {
		q.Set("sslmode", t.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
