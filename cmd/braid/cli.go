package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/urfave/cli/v2"

	"github.com/jlindqvist/braid/internal/config"
	"github.com/jlindqvist/braid/internal/contextmgr"
	"github.com/jlindqvist/braid/internal/convo"
	"github.com/jlindqvist/braid/internal/db"
	"github.com/jlindqvist/braid/internal/errors"
	"github.com/jlindqvist/braid/internal/turn"
	"github.com/jlindqvist/braid/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(manager *contextmgr.Manager, database *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "braid",
		Usage:   "Bounded conversation context manager",
		Version: Version,
		Commands: []*cli.Command{
			sessionCmd(database),
			projectCmd(database),
			appendCmd(manager),
			showCmd(manager),
			usageCmd(manager),
			resetCmd(manager),
			listCmd(manager),
			webCmd(manager, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// ownerFlags are shared by every command that addresses a context.
func ownerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Session owner id"},
		&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Usage: "Project owner id"},
	}
}

// resolveOwner builds the owner ref from the --session/--project flags.
func resolveOwner(c *cli.Context) (convo.OwnerRef, error) {
	return convo.NewOwnerRef(c.String("session"), c.String("project"))
}

// sessionCmd creates the session command group.
func sessionCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Manage chat session owners",
		Subcommands: []*cli.Command{
			{
				Name:  "new",
				Usage: "Create a session owner record",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Session id (generated when omitted)"},
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true, Usage: "Session title"},
				},
				Action: func(c *cli.Context) error {
					id := c.String("id")
					if id == "" {
						var err error
						id, err = newOwnerID()
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
					}
					now := time.Now().Unix()
					s := &convo.Session{ID: id, Title: c.String("title"), CreatedAt: now, UpdatedAt: now}
					if err := db.InsertSession(database, s); err != nil {
						if err == db.ErrUniqueConstraint {
							return outputError(errors.NewConflict("session id already exists: " + id))
						}
						return outputError(err)
					}
					return outputJSON(map[string]any{"id": id, "kind": "session", "created_at": now})
				},
			},
		},
	}
}

// projectCmd creates the project command group.
func projectCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "project",
		Usage: "Manage project owners",
		Subcommands: []*cli.Command{
			{
				Name:  "new",
				Usage: "Create a project owner record",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Project id (generated when omitted)"},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Project name"},
					&cli.StringFlag{Name: "path", Usage: "Project root path"},
				},
				Action: func(c *cli.Context) error {
					id := c.String("id")
					if id == "" {
						var err error
						id, err = newOwnerID()
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
					}
					now := time.Now().Unix()
					p := &convo.Project{ID: id, Name: c.String("name"), Path: c.String("path"), CreatedAt: now, UpdatedAt: now}
					if err := db.InsertProject(database, p); err != nil {
						if err == db.ErrUniqueConstraint {
							return outputError(errors.NewConflict("project id already exists: " + id))
						}
						return outputError(err)
					}
					return outputJSON(map[string]any{"id": id, "kind": "project", "created_at": now})
				},
			},
		},
	}
}

// appendCmd creates the append command.
func appendCmd(manager *contextmgr.Manager) *cli.Command {
	return &cli.Command{
		Name:      "append",
		Usage:     "Append a turn to the owner's context (content from argument or stdin)",
		ArgsUsage: "[content]",
		Flags: append(ownerFlags(),
			&cli.StringFlag{Name: "role", Aliases: []string{"r"}, Value: "user", Usage: "Turn role: user|assistant|system"},
		),
		Action: func(c *cli.Context) error {
			owner, err := resolveOwner(c)
			if err != nil {
				return outputError(err)
			}

			content := strings.Join(c.Args().Slice(), " ")
			if content == "" && stdinHasData() {
				content, err = readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
			}
			if content == "" {
				return outputError(errors.NewInvalidRequest("content is required: pass it as an argument or pipe it via stdin"))
			}

			ctx, err := manager.GetOrCreate(owner)
			if err != nil {
				return outputError(err)
			}

			result, err := manager.AppendTurn(context.Background(), ctx.ID, turn.Role(c.String("role")), content)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

// showCmd creates the show command.
func showCmd(manager *contextmgr.Manager) *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Show the owner's full context: turns, summary, and usage",
		Flags: ownerFlags(),
		Action: func(c *cli.Context) error {
			owner, err := resolveOwner(c)
			if err != nil {
				return outputError(err)
			}

			ctx, err := manager.GetOrCreate(owner)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{
				"context_id":   ctx.ID,
				"owner":        ctx.Owner.String(),
				"turns":        ctx.Turns,
				"summary_text": ctx.SummaryText,
				"total_tokens": ctx.TotalTokens,
				"max_tokens":   ctx.MaxTokens,
			})
		},
	}
}

// usageCmd creates the usage command.
func usageCmd(manager *contextmgr.Manager) *cli.Command {
	return &cli.Command{
		Name:  "usage",
		Usage: "Report the owner's token usage and compaction state",
		Flags: ownerFlags(),
		Action: func(c *cli.Context) error {
			owner, err := resolveOwner(c)
			if err != nil {
				return outputError(err)
			}

			ctx, err := manager.GetOrCreate(owner)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(manager.UsageStats(ctx))
		},
	}
}

// resetCmd creates the reset command.
func resetCmd(manager *contextmgr.Manager) *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Clear the owner's context: all turns and the summary are discarded",
		Flags: ownerFlags(),
		Action: func(c *cli.Context) error {
			owner, err := resolveOwner(c)
			if err != nil {
				return outputError(err)
			}

			ctx, err := manager.GetOrCreate(owner)
			if err != nil {
				return outputError(err)
			}

			stats, err := manager.Reset(ctx.ID)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(stats)
		},
	}
}

// listCmd creates the list command.
func listCmd(manager *contextmgr.Manager) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all contexts, most recently updated first",
		Action: func(c *cli.Context) error {
			contexts, err := manager.List()
			if err != nil {
				return outputError(err)
			}

			rows := make([]map[string]any, 0, len(contexts))
			for _, ctx := range contexts {
				stats := manager.UsageStats(ctx)
				rows = append(rows, map[string]any{
					"context_id":       ctx.ID,
					"owner":            ctx.Owner.String(),
					"turn_count":       stats.TurnCount,
					"total_tokens":     stats.TotalTokens,
					"max_tokens":       stats.MaxTokens,
					"percentage_used":  stats.PercentUsed,
					"needs_compaction": stats.NeedsCompaction,
					"updated_at":       ctx.UpdatedAt,
				})
			}
			return outputJSON(map[string]any{"contexts": rows, "count": len(rows)})
		},
	}
}

// webCmd creates the web command.
func webCmd(manager *contextmgr.Manager, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Serve the web dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Value: 7643, Usage: "Listen port"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(manager, cfg, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if bErr, ok := err.(*errors.BraidError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", bErr.Code, bErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// newOwnerID generates a ULID for owners created without an explicit id.
func newOwnerID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
