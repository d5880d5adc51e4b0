package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestIngestCommandValidation(t *testing.T) {
	t.Run("input file is required", func(t *testing.T) {
		app := &cli.App{
			Name: "cortex",
			Commands: []*cli.Command{
				{
					Name:   "ingest",
					Action: ingestCommand,
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "db", Required: true},
					},
				},
			},
		}

		err := app.Run([]string{"cortex", "ingest", "--db", t.TempDir()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "input file")
	})

	t.Run("db flag is required", func(t *testing.T) {
		app := &cli.App{
			Name: "cortex",
			Commands: []*cli.Command{
				{
					Name:   "ingest",
					Action: ingestCommand,
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "db", Required: true},
					},
				},
			},
		}

		err := app.Run([]string{"cortex", "ingest"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db")
	})

	t.Run("malformed input file fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

		app := &cli.App{
			Name: "cortex",
			Commands: []*cli.Command{
				{
					Name:   "ingest",
					Action: ingestCommand,
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "db", Required: true},
					},
				},
			},
		}

		err := app.Run([]string{"cortex", "ingest", "--db", t.TempDir(), path})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse")
	})
}

func TestSearchCommandValidation(t *testing.T) {
	app := &cli.App{
		Name: "cortex",
		Commands: []*cli.Command{
			{
				Name:   "search",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Required: true},
				},
			},
		},
	}

	err := app.Run([]string{"cortex", "search", "--db", t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query")
}

func TestDeleteCommandValidation(t *testing.T) {
	app := &cli.App{
		Name: "cortex",
		Commands: []*cli.Command{
			{
				Name:   "delete",
				Action: deleteCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Required: true},
				},
			},
		},
	}

	err := app.Run([]string{"cortex", "delete", "--db", t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id")
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		testCases := []struct {
			input    string
			expected slog.Level
		}{
			{"debug", slog.LevelDebug},
			{"info", slog.LevelInfo},
			{"warn", slog.LevelWarn},
			{"error", slog.LevelError},
		}

		for _, tc := range testCases {
			t.Run(tc.input, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: tc.input,
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc.input})
				require.NoError(t, err)
			})
		}
	})

	t.Run("case insensitive log levels", func(t *testing.T) {
		for _, tc := range []string{"DEBUG", "Info", "WaRn", "ERROR"} {
			t.Run(tc, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: "info",
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "log-level",
					Value: "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				return nil
			},
		}

		err := app.Run([]string{"test", "--log-level", "invalid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("default log level is info", func(t *testing.T) {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "log-level",
					Value: "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				assert.Equal(t, "info", c.String("log-level"))
				return nil
			},
		}

		err := app.Run([]string{"test"})
		require.NoError(t, err)
	})
}

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}
