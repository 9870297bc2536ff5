package postgres

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/semmidev/pgvault/internal/adapter/pipeline"
	"github.com/semmidev/pgvault/internal/config"
	"github.com/semmidev/pgvault/internal/domain"
)

// systemTemplate is excluded from every run whether or not the operator
// lists it: it cannot be connected to and never needs a backup.
const systemTemplate = "template0"

// Client builds the external commands that talk to one PostgreSQL server:
// discovery via psql, dumps via pg_dump and pg_dumpall.
type Client struct {
	conn       config.ConnectionConfig
	exclude    map[string]struct{}
	withCreate bool
	timeout    time.Duration
}

func New(conn config.ConnectionConfig, exclude []string, withCreate bool, timeout time.Duration) *Client {
	ex := make(map[string]struct{}, len(exclude)+1)
	ex[systemTemplate] = struct{}{}
	for _, name := range exclude {
		ex[domain.DecodeName(name)] = struct{}{}
	}
	return &Client{
		conn:       conn,
		exclude:    ex,
		withCreate: withCreate,
		timeout:    timeout,
	}
}

// connArgs returns the host/port/username flags, or nothing when the
// default local connection is targeted.
func (c *Client) connArgs() []string {
	if c.conn.Local() {
		return nil
	}
	return []string{
		fmt.Sprintf("--host=%s", c.conn.Host),
		fmt.Sprintf("--port=%d", c.conn.Port),
		fmt.Sprintf("--username=%s", c.conn.Username),
	}
}

// Env returns the extra environment the tools need, currently PGPASSWORD.
func (c *Client) Env() []string {
	if c.conn.Password == "" {
		return nil
	}
	return []string{"PGPASSWORD=" + c.conn.Password}
}

// Ping checks that the server answers a trivial query.
func (c *Client) Ping(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := append(c.connArgs(), "--dbname=postgres", "-c", "SELECT 1")
	cmd := exec.CommandContext(ctx, "psql", args...)
	cmd.Env = append(os.Environ(), c.Env()...)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("postgresql ping failed: %w", err)
	}
	return nil
}

// ListDatabases enumerates the server's databases, drops the excluded
// names and template0, sorts the remainder, and appends the globals
// pseudo-entry last. The pseudo-entry is added after the set difference,
// so an exclude list can never remove it.
func (c *Client) ListDatabases(ctx context.Context) ([]string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := append(c.connArgs(), "--list", "--no-align", "--tuples-only", "--field-separator=|")
	cmd := exec.CommandContext(ctx, "psql", args...)
	cmd.Env = append(os.Environ(), c.Env()...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, &domain.DiscoveryError{Err: fmt.Errorf("psql --list: %w: %s", err, msg)}
		}
		return nil, &domain.DiscoveryError{Err: fmt.Errorf("psql --list: %w", err)}
	}

	names := parseList(out)
	if len(names) == 0 {
		return nil, &domain.DiscoveryError{Err: fmt.Errorf("no databases parsed from psql output")}
	}

	return c.filter(names), nil
}

// parseList extracts database names from "psql --list --no-align
// --tuples-only" output: one row per database, fields separated by |,
// name first.
func parseList(out []byte) []string {
	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, _, ok := strings.Cut(line, "|")
		if !ok || name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}

func (c *Client) filter(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	kept := make([]string, 0, len(names)+1)
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, skip := c.exclude[name]; skip {
			continue
		}
		kept = append(kept, name)
	}
	sort.Strings(kept)
	return append(kept, domain.GlobalsName)
}

// DumpCommand returns the dump executable and arguments for one database.
// The globals pseudo-entry switches to a whole-server globals dump.
func (c *Client) DumpCommand(database string) (string, []string) {
	if database == domain.GlobalsName {
		return "pg_dumpall", append(c.connArgs(), "--globals-only")
	}
	args := c.connArgs()
	if c.withCreate {
		args = append(args, "--create")
	}
	return "pg_dump", append(args, database)
}

// DumpStage wraps DumpCommand as the first stage of a backup pipeline.
func (c *Client) DumpStage(database string) pipeline.Stage {
	tool, args := c.DumpCommand(database)
	return pipeline.Exec(tool, tool, args, c.Env())
}
