package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"calstore/internal/ics"
	"calstore/internal/models"
	"calstore/internal/store"

	"github.com/urfave/cli/v2"
)

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "List and edit events.",
		Subcommands: []*cli.Command{
			listCommand(),
			createCommand(),
			updateCommand(),
			deleteCommand(),
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print the current events.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print events as JSON."},
			&cli.IntFlag{Name: "watch", Usage: "Refresh and print every N seconds."},
		},
		Action: func(c *cli.Context) error {
			return withStore(c, func(ctx context.Context, st *store.Store, logger *slog.Logger) error {
				if !c.IsSet("watch") {
					return printEvents(c.App.Writer, st, c.Bool("json"))
				}

				interval := time.Duration(c.Int("watch")) * time.Second
				if interval <= 0 {
					return fmt.Errorf("--watch must be positive")
				}
				logger.Info("Starting watcher.", "interval", interval)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					if err := printEvents(c.App.Writer, st, c.Bool("json")); err != nil {
						return err
					}
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
					}
					if err := st.Refresh(ctx); err != nil {
						return err
					}
				}
			})
		},
	}
}

func eventFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Usage: "Event title."},
		&cli.StringFlag{Name: "description", Usage: "Event description."},
		&cli.TimestampFlag{Name: "start", Layout: time.RFC3339, Usage: "Start time (RFC 3339)."},
		&cli.TimestampFlag{Name: "end", Layout: time.RFC3339, Usage: "End time (RFC 3339)."},
		&cli.StringFlag{Name: "location", Usage: "Event location."},
		&cli.StringFlag{Name: "link", Usage: "External meeting link."},
		&cli.StringSliceFlag{Name: "attendee", Usage: "Attendee as email[:display name]. Repeatable."},
		&cli.StringSliceFlag{Name: "optional", Usage: "Optional attendee as email[:display name]. Repeatable."},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create an event.",
		Flags: append(eventFlags(),
			&cli.BoolFlag{Name: "meet", Usage: "Ask the remote service to generate a meeting link."},
		),
		Action: func(c *cli.Context) error {
			in := models.EventInput{
				Title:              c.String("title"),
				Description:        c.String("description"),
				Location:           c.String("location"),
				ExternalLink:       c.String("link"),
				Attendees:          attendeesFromFlags(c),
				CreateExternalLink: c.Bool("meet"),
			}
			if t := c.Timestamp("start"); t != nil {
				in.Start = *t
			}
			if t := c.Timestamp("end"); t != nil {
				in.End = *t
			}

			return withStore(c, func(ctx context.Context, st *store.Store, logger *slog.Logger) error {
				e, err := st.Create(ctx, in)
				if err != nil {
					return err
				}
				logger.Info("Created event.", "id", e.ID, "mode", st.Mode())
				fmt.Fprintln(c.App.Writer, e.ID)
				return nil
			})
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update fields of an event. Only the given flags change.",
		ArgsUsage: "<id>",
		Flags:     eventFlags(),
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" {
				return fmt.Errorf("event id is required")
			}
			patch := patchFromFlags(c)
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to update")
			}

			return withStore(c, func(ctx context.Context, st *store.Store, logger *slog.Logger) error {
				e, err := st.Update(ctx, id, patch)
				if err != nil {
					return err
				}
				logger.Info("Updated event.", "id", e.ID, "mode", st.Mode())
				return nil
			})
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete an event.",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" {
				return fmt.Errorf("event id is required")
			}
			return withStore(c, func(ctx context.Context, st *store.Store, logger *slog.Logger) error {
				if err := st.Delete(ctx, id); err != nil {
					return err
				}
				logger.Info("Deleted event.", "id", id, "mode", st.Mode())
				return nil
			})
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the current events as an iCalendar file.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Usage: "Output file. Defaults to stdout."},
		},
		Action: func(c *cli.Context) error {
			return withStore(c, func(_ context.Context, st *store.Store, logger *slog.Logger) error {
				events := st.Events()
				if len(events) == 0 {
					logger.Info("No events to export.", "mode", st.Mode())
					return nil
				}

				if path := c.String("out"); path != "" {
					if err := exportFile(path, events); err != nil {
						return err
					}
				} else if err := ics.Encode(c.App.Writer, events); err != nil {
					return err
				}
				logger.Info("Exported events.", "count", len(events), "mode", st.Mode())
				return nil
			})
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Create an event for every VEVENT in an iCalendar file.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Required: true, Usage: "Input .ics file."},
		},
		Action: func(c *cli.Context) error {
			f, err := os.Open(c.String("in"))
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", c.String("in"), err)
			}
			defer f.Close()

			inputs, err := ics.Decode(f)
			if err != nil {
				return err
			}

			return withStore(c, func(ctx context.Context, st *store.Store, logger *slog.Logger) error {
				var errs []error
				created := 0
				for _, in := range inputs {
					if _, err := st.Create(ctx, in); err != nil {
						errs = append(errs, fmt.Errorf("%q: %w", in.Title, err))
						continue
					}
					created++
				}
				logger.Info("Imported events.", "created", created, "failed", len(errs), "mode", st.Mode())
				return errors.Join(errs...)
			})
		},
	}
}

// exportFile writes events to path as iCalendar. The file is only reported
// written once Close succeeds.
func exportFile(path string, events []models.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := ics.Encode(f, events); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func printEvents(w io.Writer, st *store.Store, asJSON bool) error {
	events := st.Events()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Mode   store.Mode     `json:"mode"`
			Events []models.Event `json:"events"`
		}{st.Mode(), events})
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "# %s mode, %d events\n", st.Mode(), len(events))
	fmt.Fprintln(tw, "ID\tSTART\tEND\tTITLE\tLOCATION")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.Title, e.Location)
	}
	return tw.Flush()
}

func attendeesFromFlags(c *cli.Context) []models.Attendee {
	var out []models.Attendee
	for _, v := range c.StringSlice("attendee") {
		out = append(out, parseAttendee(v, false))
	}
	for _, v := range c.StringSlice("optional") {
		out = append(out, parseAttendee(v, true))
	}
	return out
}

// parseAttendee reads "email" or "email:Display Name".
func parseAttendee(v string, optional bool) models.Attendee {
	email, name, _ := strings.Cut(v, ":")
	return models.Attendee{
		Email:       strings.TrimSpace(email),
		DisplayName: strings.TrimSpace(name),
		Optional:    optional,
	}
}

func patchFromFlags(c *cli.Context) models.EventPatch {
	var p models.EventPatch
	if c.IsSet("title") {
		v := c.String("title")
		p.Title = &v
	}
	if c.IsSet("description") {
		v := c.String("description")
		p.Description = &v
	}
	if c.IsSet("location") {
		v := c.String("location")
		p.Location = &v
	}
	if c.IsSet("link") {
		v := c.String("link")
		p.ExternalLink = &v
	}
	if t := c.Timestamp("start"); c.IsSet("start") && t != nil {
		v := *t
		p.Start = &v
	}
	if t := c.Timestamp("end"); c.IsSet("end") && t != nil {
		v := *t
		p.End = &v
	}
	if c.IsSet("attendee") || c.IsSet("optional") {
		v := attendeesFromFlags(c)
		if v == nil {
			v = []models.Attendee{}
		}
		p.Attendees = &v
	}
	return p
}
