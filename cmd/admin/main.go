// Package main provides account administration for Inkwell.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"inkwell/internal/bootstrap"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type runtime struct {
	cfg   *config.Config
	db    *gorm.DB
	rdb   *redis.Client
	users *service.UserService
}

func (r *runtime) close() {
	_ = database.Close(r.db)
	if r.rdb != nil {
		_ = r.rdb.Close()
	}
}

func connect(ctx context.Context) (*runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	return &runtime{
		cfg:   cfg,
		db:    db,
		rdb:   rdb,
		users: service.NewUserService(repository.NewUserRepository(db)),
	}, nil
}

// withRuntime wraps a command body with connection setup and teardown.
func withRuntime(fn func(ctx context.Context, rt *runtime, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := connect(ctx)
		if err != nil {
			return err
		}
		defer rt.close()
		return fn(ctx, rt, args)
	}
}

var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "Manage Inkwell accounts",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func roleCmd(use, short string, role models.Role) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(ctx context.Context, rt *runtime, args []string) error {
			user, err := rt.users.SetRole(ctx, args[0], role)
			if err != nil {
				return err
			}
			fmt.Printf("✅ %s <%s> is now %s\n", user.Name, user.Email, user.Role)
			return nil
		}),
	}
}

func statusCmd(use, short string, status models.UserStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(ctx context.Context, rt *runtime, args []string) error {
			user, err := rt.users.SetStatus(ctx, args[0], status)
			if err != nil {
				return err
			}
			fmt.Printf("✅ %s <%s> is now %s\n", user.Name, user.Email, user.Status)
			return nil
		}),
	}
}

var listAdminsCmd = &cobra.Command{
	Use:   "list-admins",
	Short: "List administrator accounts",
	Args:  cobra.NoArgs,
	RunE: withRuntime(func(ctx context.Context, rt *runtime, _ []string) error {
		admins, err := rt.users.ListAdmins(ctx)
		if err != nil {
			return err
		}
		if len(admins) == 0 {
			fmt.Println("No admins found in the system")
			return nil
		}
		fmt.Println("\n📋 Current Admins:")
		fmt.Println("─────────────────────────────────────")
		for _, a := range admins {
			fmt.Printf("ID: %s | Name: %s | Email: %s | Status: %s\n", a.ID, a.Name, a.Email, a.Status)
		}
		fmt.Println("─────────────────────────────────────")
		return nil
	}),
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create or promote the ADMIN_EMAIL account",
	Args:  cobra.NoArgs,
	RunE: withRuntime(func(ctx context.Context, rt *runtime, _ []string) error {
		if rt.cfg.AdminEmail == "" {
			return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
		}
		return bootstrap.EnsureAdmin(ctx, rt.cfg, rt.db)
	}),
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print post and comment events as they are published",
	Args:  cobra.NoArgs,
	RunE: withRuntime(func(ctx context.Context, rt *runtime, _ []string) error {
		if rt.rdb == nil {
			return fmt.Errorf("redis is not reachable at %s", rt.cfg.RedisURL)
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		err := notifications.NewNotifier(rt.rdb).Subscribe(ctx, func(channel string, ev notifications.Event) {
			fmt.Printf("%s  %-20s %-18s id=%s post=%s actor=%s %s\n",
				ev.At.Format("15:04:05"), channel, ev.Type, ev.ID, ev.PostID, ev.ActorID, ev.Status)
		})
		if err != nil {
			return err
		}
		fmt.Println("Listening for events, Ctrl+C to stop")
		<-ctx.Done()
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(
		roleCmd("promote", "Grant the ADMIN role", models.RoleAdmin),
		roleCmd("demote", "Revert to the USER role", models.RoleUser),
		statusCmd("block", "Block an account from signing in", models.UserBlocked),
		statusCmd("unblock", "Re-activate a blocked account", models.UserActive),
		listAdminsCmd,
		seedAdminCmd,
		eventsCmd,
	)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
