package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"daygrid/internal/agenda"
	"daygrid/internal/config"
	"daygrid/internal/ics"
	"daygrid/internal/layout"
	appLog "daygrid/internal/log"
	"daygrid/internal/model"
	"daygrid/internal/web"
)

const dateLayout = "2006-01-02"

func main() {
	// .env is optional.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "daygrid",
		Usage: "Merge calendar sources and lay out a day grid.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "./daygrid.yaml",
				Usage:   "Path to config file",
				EnvVars: []string{"DAYGRID_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"DAYGRID_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			level, ok := appLog.ParseLevel(c.String("log-level"))
			if !ok {
				appLog.Warn("unknown log level; using INFO", "value", c.String("log-level"))
			}
			appLog.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			layoutCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		appLog.Error("daygrid failed", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	conf, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return conf, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the events and layout API, refreshing on a schedule.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config if set)"},
		},
		Action: func(c *cli.Context) error {
			conf, err := loadConfig(c)
			if err != nil {
				return err
			}
			if v := c.String("listen"); v != "" {
				conf.Listen = v
			}

			appLog.Info("effective config",
				"listen", conf.Listen,
				"timezone", conf.Timezone,
				"refresh", conf.RefreshCron,
				"ics_count", len(conf.ICS),
				"px_per_hour", conf.Layout.PxPerHour,
			)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			loader := agenda.NewLoader(conf)
			srv := web.NewServer(conf, loader)

			sched := cron.New(cron.WithLocation(loader.Location()))
			_, err = sched.AddFunc(conf.RefreshCron, func() {
				refreshCtx, cancel := context.WithTimeout(ctx, time.Minute)
				defer cancel()
				if _, err := srv.Refresh(refreshCtx, srv.Today()); err != nil {
					appLog.Error("scheduled refresh failed", err)
				}
			})
			if err != nil {
				return fmt.Errorf("invalid refresh schedule %q: %w", conf.RefreshCron, err)
			}
			sched.Start()
			defer func() { <-sched.Stop().Done() }()

			// Warm today's cache before accepting requests.
			if _, err := srv.Refresh(ctx, srv.Today()); err != nil {
				appLog.Warn("initial refresh failed", "error", err.Error())
			}

			if err := srv.ListenAndServe(ctx); err != nil {
				return err
			}
			appLog.Info("daygrid exiting")
			return nil
		},
	}
}

func layoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "layout",
		Usage: "Compute one day's layout and print it as JSON.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "Day to lay out (YYYY-MM-DD, default today)"},
			&cli.Float64Flag{Name: "px-per-hour", Usage: "Vertical scale (default from config)"},
			&cli.StringSliceFlag{Name: "ics", Usage: "Read these ICS files instead of the configured sources"},
			&cli.StringFlag{Name: "input", Usage: "Read pre-expanded events from a JSON file (- for stdin)"},
		},
		Action: func(c *cli.Context) error {
			conf, err := loadConfig(c)
			if err != nil {
				return err
			}
			loader := agenda.NewLoader(conf)
			loc := loader.Location()

			day, err := parseDay(c.String("date"), loc)
			if err != nil {
				return err
			}

			var events []model.CalendarEvent
			switch {
			case c.String("input") != "":
				events, err = readEvents(c.String("input"))
				if err == nil {
					events = ics.ForDay(events, day, loc)
				}
			case len(c.StringSlice("ics")) > 0:
				events, err = loader.FromFiles(c.Context, c.StringSlice("ics"), day)
			default:
				events, err = loader.Day(c.Context, day)
			}
			if err != nil {
				return err
			}

			opts := conf.LayoutOptions()
			if c.IsSet("px-per-hour") {
				px := c.Float64("px-per-hour")
				if px <= 0 {
					return fmt.Errorf("--px-per-hour must be positive, got %v", px)
				}
				opts.PxPerHour = px
			}
			opts.Day = day

			return writeLayout(os.Stdout, day, opts, layout.Compute(events, opts))
		},
	}
}

func parseDay(v string, loc *time.Location) (time.Time, error) {
	if v == "" {
		now := time.Now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
	}
	day, err := time.ParseInLocation(dateLayout, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}
	return day, nil
}

func readEvents(path string) ([]model.CalendarEvent, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var events []model.CalendarEvent
	if err := json.NewDecoder(r).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode events from %s: %w", path, err)
	}
	return events, nil
}

type layoutOutput struct {
	Date       string                  `json:"date"`
	TimeZone   string                  `json:"timezone"`
	PxPerHour  float64                 `json:"px_per_hour"`
	Clusters   int                     `json:"clusters"`
	Merged     []model.MergedEvent     `json:"merged"`
	Positioned []model.PositionedEvent `json:"positioned"`
}

func writeLayout(w io.Writer, day time.Time, opts layout.Options, res layout.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(layoutOutput{
		Date:       day.Format(dateLayout),
		TimeZone:   day.Location().String(),
		PxPerHour:  opts.PxPerHour,
		Clusters:   res.Clusters,
		Merged:     res.Merged,
		Positioned: res.Positioned,
	})
}
