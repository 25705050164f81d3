package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/vogiaan1904/voyage-sync/config"
	"github.com/vogiaan1904/voyage-sync/internal/calendar"
	"github.com/vogiaan1904/voyage-sync/internal/cruisetime"
	grpcSvc "github.com/vogiaan1904/voyage-sync/internal/delivery/grpc"
	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/notification"
	"github.com/vogiaan1904/voyage-sync/internal/service"
	pkgGrpc "github.com/vogiaan1904/voyage-sync/pkg/grpc"
	pkgLog "github.com/vogiaan1904/voyage-sync/pkg/logger"
	"github.com/vogiaan1904/voyage-sync/pkg/util"
)

func main() {
	app := &cli.App{
		Name:  "schedctl",
		Usage: "Inspect the voyage-sync schedule and notification routing.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "localhost:50057", EnvVars: []string{"SCHEDCTL_GRPC_ADDR"}, Usage: "voyage-sync gRPC address"},
			&cli.DurationFlag{Name: "timeout", Value: 15 * time.Second, Usage: "per-request timeout"},
			&cli.StringFlag{Name: "log-level", Value: "warn"},
		},
		Commands: []*cli.Command{
			daysCommand(),
			scheduleCommand(),
			exportCommand(),
			routeCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "schedctl: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) pkgLog.Logger {
	return pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    c.String("log-level"),
		Mode:     "development",
		Encoding: "console",
		Name:     "schedctl",
	})
}

func scheduleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "day", Usage: "1-based cruise day; 0 keeps the server's selection"},
		&cli.BoolFlag{Name: "favorite", Usage: "only favorited events"},
		&cli.BoolFlag{Name: "personal", Usage: "only personal events"},
		&cli.BoolFlag{Name: "lfg", Usage: "only LFGs"},
		&cli.StringFlag{Name: "event-type", Usage: "only events of this type"},
		&cli.BoolFlag{Name: "hide-past", Usage: "drop entries that have already ended"},
	}
}

func daysCommand() *cli.Command {
	return &cli.Command{
		Name:  "days",
		Usage: "List the cruise days of the configured voyage.",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			voyage, err := cruisetime.NewVoyage(cfg.Cruise.StartDate, cfg.Cruise.Length, cfg.Cruise.PortTimeZoneID)
			if err != nil {
				return err
			}
			days, err := voyage.Days()
			if err != nil {
				return err
			}

			today, _ := voyage.CruiseDayForInstant(time.Now())
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DAY\tDATE\t")
			for _, d := range days {
				marker := ""
				if d.Ordinal == today.Ordinal {
					marker = "today"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", d.Ordinal, d.Date.Format("Mon Jan 2"), marker)
			}
			return tw.Flush()
		},
	}
}

func scheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "Print the merged schedule for a cruise day.",
		Flags: scheduleFlags(),
		Action: func(c *cli.Context) error {
			out, err := fetchSchedule(c)
			if err != nil {
				return err
			}
			return printSchedule(c.App.Writer, out)
		},
	}
}

func exportCommand() *cli.Command {
	flags := append(scheduleFlags(), &cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file; stdout when empty"})
	return &cli.Command{
		Name:  "export",
		Usage: "Export the merged schedule as iCalendar.",
		Flags: flags,
		Action: func(c *cli.Context) error {
			l := newLogger(c)
			out, err := fetchSchedule(c)
			if err != nil {
				return err
			}

			w := c.App.Writer
			if path := c.String("out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			n, err := calendar.Export(w, out.Entries, calendar.ExportOptions{
				Name:  fmt.Sprintf("Cruise day %d", out.CruiseDay),
				Stamp: out.BuiltAt,
			})
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			l.Infof(c.Context, "exported %d of %d entries", n, len(out.Entries))
			return nil
		},
	}
}

func routeCommand() *cli.Command {
	return &cli.Command{
		Name:      "route",
		Usage:     "Show which cache keys a notification would invalidate.",
		ArgsUsage: "[frame-json]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Usage: "notification kind, e.g. fezUnreadMsg"},
			&cli.StringFlag{Name: "subject", Usage: "content ID the notification refers to"},
			&cli.StringFlag{Name: "conversation", Usage: "route a conversation socket frame for this fez instead"},
		},
		Action: func(c *cli.Context) error {
			var set models.InvalidationSet
			switch {
			case c.String("conversation") != "":
				set = notification.RouteConversationMessage(c.String("conversation"), []byte(c.Args().First()))
			case c.Args().Present():
				event, err := notification.DecodeSocketPayload([]byte(c.Args().First()))
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "kind: %s\n", event.Kind)
				set = notification.Route(event)
			case c.String("kind") != "":
				set = notification.Route(models.NotificationEvent{
					Kind:      models.ParseNotificationKind(c.String("kind")),
					SubjectID: c.String("subject"),
				})
			default:
				return cli.ShowSubcommandHelp(c)
			}

			for _, k := range set.Strings() {
				fmt.Fprintln(c.App.Writer, k)
			}
			return nil
		},
	}
}

func fetchSchedule(c *cli.Context) (*service.ScheduleOutput, error) {
	client, cleanup, err := pkgGrpc.NewScheduleClient(c.String("addr"))
	if err != nil {
		return nil, err
	}
	defer cleanup()

	req, err := pkgGrpc.EncodeStruct(grpcSvc.ScheduleRequest{
		Day: c.Int("day"),
		ScheduleFilterSettings: models.ScheduleFilterSettings{
			FavoriteOnly: c.Bool("favorite"),
			PersonalOnly: c.Bool("personal"),
			LFGOnly:      c.Bool("lfg"),
			EventType:    models.EventType(c.String("event-type")),
			HidePast:     c.Bool("hide-past"),
		},
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	st, err := client.GetSchedule(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	var out service.ScheduleOutput
	if err := pkgGrpc.DecodeStruct(st, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func printSchedule(w io.Writer, out *service.ScheduleOutput) error {
	fmt.Fprintf(w, "Cruise day %d (built %s)\n", out.CruiseDay, util.TimeToISO8601Str(out.BuiltAt))
	for _, warn := range out.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	if out.Empty {
		fmt.Fprintln(w, out.Message)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tWHEN\tKIND\tTITLE\tLOCATION")
	for i, e := range out.Entries {
		marker := ""
		if i == out.NowIndex {
			marker = ">"
		}
		when := cruisetime.DurationLabel(e.StartTime, e.EndTime, e.TimeZoneID, false)
		title := e.Title
		if e.Cancelled {
			title += " (cancelled)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", marker, when, e.Kind, strings.TrimSpace(title), e.Location)
	}
	return tw.Flush()
}
