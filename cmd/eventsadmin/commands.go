package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-events/pkg/simpleevents"
	"github.com/tendant/simple-events/pkg/simpleevents/config"
	repopg "github.com/tendant/simple-events/pkg/simpleevents/repo/postgres"
)

// NewMigrateCommand creates the migrate command
func NewMigrateCommand() *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the datastore schema up to date",
		Long: `Apply PostgreSQL migrations or create MongoDB indexes.

With --down N, roll back N PostgreSQL migrations instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			kind, err := cfg.DatabaseKind()
			if err != nil {
				return err
			}

			if down > 0 {
				if kind != config.DatabasePostgres {
					return fmt.Errorf("--down is only supported for postgres, got %s", kind)
				}
				if err := repopg.MigrateDown(cfg.DatabaseURL, down); err != nil {
					return fmt.Errorf("migrate down failed: %w", err)
				}
				return printMigrationVersion(cfg.DatabaseURL)
			}

			ctx := cmd.Context()
			rt, err := cfg.BuildRepository(ctx)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			if err := rt.Prepare(ctx); err != nil {
				return fmt.Errorf("migrate failed: %w", err)
			}

			if kind == config.DatabasePostgres {
				return printMigrationVersion(cfg.DatabaseURL)
			}
			fmt.Printf("Datastore %s is ready\n", kind)
			return nil
		},
	}

	cmd.Flags().IntVar(&down, "down", 0, "number of postgres migrations to roll back")

	return cmd
}

func printMigrationVersion(databaseURL string) error {
	version, dirty, err := repopg.MigrationVersion(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	fmt.Printf("Schema version: %d", version)
	if dirty {
		fmt.Print(" (dirty)")
	}
	fmt.Println()
	return nil
}

// NewStatsCommand creates the stats command
func NewStatsCommand() *cobra.Command {
	var useJSON bool

	cmd := &cobra.Command{
		Use:   "stats <event-id>",
		Short: "Show the attendee roster and check-in counts of an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			details, err := rt.Service.GetEventDetails(ctx, args[0])
			if err != nil {
				return err
			}

			if useJSON {
				return printJSON(details)
			}

			fmt.Printf("=== %s ===\n", details.Title)
			fmt.Printf("Starts:     %s\n", details.StartDate.Format(time.RFC3339))
			fmt.Printf("Ends:       %s\n", details.EndDate.Format(time.RFC3339))
			fmt.Printf("Location:   %s\n", details.Location)
			if details.Capacity > 0 {
				fmt.Printf("Capacity:   %d\n", details.Capacity)
			}
			fmt.Printf("Registered: %d\n", details.Stats.Total)
			fmt.Printf("Checked in: %d\n\n", details.Stats.CheckedIn)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID\tNAME\tEMAIL\tCHECKED IN\tREGISTERED\n")
			for _, a := range details.Attendees {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
					a.ID,
					truncate(a.Name, 24),
					truncate(a.Email, 32),
					a.CheckedIn,
					a.RegisteredAt.Format("2006-01-02 15:04:05"),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&useJSON, "json", false, "output as JSON")

	return cmd
}

// NewBannerURLCommand creates the banner-url command
func NewBannerURLCommand() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "banner-url <event-id>",
		Short: "Print a time-limited link to an event banner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			link, err := rt.Service.GetBannerURL(ctx, args[0], ttl)
			if errors.Is(err, simpleevents.ErrNoBanner) {
				return fmt.Errorf("event %s has no banner", args[0])
			}
			if err != nil {
				return err
			}

			fmt.Println(link)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", simpleevents.DefaultSignedURLTTL, "link lifetime")

	return cmd
}

// NewDeleteEventCommand creates the delete-event command
func NewDeleteEventCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete-event <event-id>",
		Short: "Delete an event with its attendees and banner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			eventID := args[0]
			if !force {
				stats, err := rt.Service.GetEventAttendees(ctx, eventID)
				if err != nil {
					return err
				}
				if stats.Stats.Total > 0 {
					return fmt.Errorf("event %s has %d attendees; use --force to delete it anyway", eventID, stats.Stats.Total)
				}
			}

			deleted, err := rt.Service.DeleteEvent(ctx, eventID)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("event %s not found", eventID)
			}

			fmt.Printf("Event %s deleted\n", eventID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "delete even when attendees are registered")

	return cmd
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
