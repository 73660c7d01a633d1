package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/nosh/internal/errors"
	"github.com/hpungsan/nosh/internal/nutrition"
	"github.com/hpungsan/nosh/internal/ops"
	"github.com/hpungsan/nosh/internal/pipeline"
	"github.com/hpungsan/nosh/internal/reply"
	"github.com/hpungsan/nosh/internal/web"
)

// maxMessageBytes caps a message body read from stdin.
const maxMessageBytes = 64 << 10

// newCLIApp creates the CLI application with all commands.
// d may be nil when only help or version output is needed.
func newCLIApp(d *deps) *cli.App {
	app := &cli.App{
		Name:    "nosh",
		Usage:   "Nutrition logging over chat",
		Version: Version,
		Commands: []*cli.Command{
			messageCmd(d),
			summaryCmd(d),
			periodCmd(d),
			entriesCmd(d),
			targetsCmd(d),
			deleteCmd(d),
			serveCmd(d),
			mcpCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func phoneFlag() cli.Flag {
	return &cli.StringFlag{Name: "phone", Aliases: []string{"p"}, Required: true, Usage: "Sender phone number"}
}

// messageCmd creates the message command.
func messageCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "message",
		Usage:     "Process a chat message (body from args or stdin)",
		ArgsUsage: "[body...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Aliases: []string{"f"}, Required: true, Usage: "Sender phone number"},
		},
		Action: func(c *cli.Context) error {
			body := strings.Join(c.Args().Slice(), " ")
			if body == "" && stdinHasData() {
				var err error
				body, err = readStdin(maxMessageBytes)
				if err != nil {
					return outputError(errors.NewInvalidInput(err.Error()))
				}
			}

			result, err := d.pipeline.Process(c.Context, pipeline.Inbound{
				From: c.String("from"),
				Body: body,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

// summaryCmd creates the summary command.
func summaryCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Show one day's totals and progress",
		Flags: []cli.Flag{
			phoneFlag(),
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Day as YYYY-MM-DD (default: today)"},
			&cli.BoolFlag{Name: "markdown", Aliases: []string{"m"}, Usage: "Print a Markdown report instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			out, err := ops.SummarizeDay(c.Context, d.db, ops.DaySummaryInput{
				Phone: c.String("phone"),
				Date:  c.String("date"),
			})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("markdown") {
				fmt.Print(reply.DayMarkdown(out.Date, out.Summary, out.Entries, out.User.Location()))
				return nil
			}
			return outputJSON(out)
		},
	}
}

// periodCmd creates the period command.
func periodCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "period",
		Usage: "Show totals for an inclusive range of days",
		Flags: []cli.Flag{
			phoneFlag(),
			&cli.StringFlag{Name: "start", Required: true, Usage: "First day as YYYY-MM-DD"},
			&cli.StringFlag{Name: "end", Required: true, Usage: "Last day as YYYY-MM-DD"},
		},
		Action: func(c *cli.Context) error {
			out, err := ops.SummarizePeriod(c.Context, d.db, ops.PeriodSummaryInput{
				Phone: c.String("phone"),
				Start: c.String("start"),
				End:   c.String("end"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// entriesCmd creates the entries command.
func entriesCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "entries",
		Usage: "List logged food entries, most recent first",
		Flags: []cli.Flag{
			phoneFlag(),
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Skip first N results"},
		},
		Action: func(c *cli.Context) error {
			out, err := ops.ListEntries(c.Context, d.db, ops.ListEntriesInput{
				Phone:  c.String("phone"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// targetsCmd creates the targets command.
func targetsCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "targets",
		Usage: "Set daily targets and time zone",
		Flags: []cli.Flag{
			phoneFlag(),
			&cli.Float64Flag{Name: "calories", Usage: "Daily calorie target (kcal)"},
			&cli.Float64Flag{Name: "protein", Usage: "Daily protein target (g)"},
			&cli.Float64Flag{Name: "carbs", Usage: "Daily carbohydrate target (g)"},
			&cli.Float64Flag{Name: "fat", Usage: "Daily fat target (g)"},
			&cli.StringFlag{Name: "clear", Usage: "Comma-separated targets to remove"},
			&cli.StringFlag{Name: "timezone", Aliases: []string{"tz"}, Usage: "IANA time zone, e.g. America/New_York"},
		},
		Action: func(c *cli.Context) error {
			input := ops.SetTargetsInput{
				Phone:    c.String("phone"),
				Calories: floatFlag(c, "calories"),
				Protein:  floatFlag(c, "protein"),
				Carbs:    floatFlag(c, "carbs"),
				Fat:      floatFlag(c, "fat"),
			}
			if c.IsSet("timezone") {
				tz := c.String("timezone")
				input.Timezone = &tz
			}
			toClear, err := parseNutrients(c.String("clear"))
			if err != nil {
				return outputError(err)
			}
			input.Clear = toClear

			out, err := ops.SetTargets(c.Context, d.db, d.cfg, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "Delete a logged food entry",
		Flags: []cli.Flag{
			phoneFlag(),
			&cli.StringFlag{Name: "id", Required: true, Usage: "Entry ID"},
		},
		Action: func(c *cli.Context) error {
			out, err := ops.DeleteEntry(c.Context, d.db, ops.DeleteEntryInput{
				Phone: c.String("phone"),
				ID:    c.String("id"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the webhook and report HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Address to bind (default from config)"},
			&cli.IntFlag{Name: "port", Usage: "Port to listen on (default from config)"},
		},
		Action: func(c *cli.Context) error {
			cfg := *d.cfg
			if c.IsSet("bind") {
				cfg.Server.Bind = c.String("bind")
			}
			if c.IsSet("port") {
				cfg.Server.Port = c.Int("port")
			}
			return web.Run(web.NewServer(d.db, &cfg, d.pipeline, Version))
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the MCP tools over stdio",
		Action: func(c *cli.Context) error {
			return runMCP(d)
		},
	}
}

// outputJSON writes v as indented JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if ne, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", ne.Code, ne.Message), 1)
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

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("input exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}

// floatFlag returns a pointer to the flag value, or nil when it was not given.
func floatFlag(c *cli.Context, name string) *float64 {
	if !c.IsSet(name) {
		return nil
	}
	v := c.Float64(name)
	return &v
}

// parseNutrients splits a comma-separated list of nutrient names.
func parseNutrients(s string) ([]nutrition.Nutrient, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]nutrition.Nutrient, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, ok := nutrition.ParseNutrient(p)
		if !ok {
			return nil, errors.NewInvalidInput(fmt.Sprintf("unknown nutrient %q", p))
		}
		out = append(out, n)
	}
	return out, nil
}
