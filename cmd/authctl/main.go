// Command authctl runs operator tasks against the auth database:
// schema migrations, staff account creation and user deactivation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prperemyshlev/clavis-auth/internal/config"
	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"github.com/prperemyshlev/clavis-auth/internal/identity"
	"github.com/prperemyshlev/clavis-auth/internal/repository"
	"github.com/prperemyshlev/clavis-auth/internal/service"
	"github.com/prperemyshlev/clavis-auth/internal/utils"
	"github.com/prperemyshlev/clavis-auth/migrations"
	"github.com/prperemyshlev/clavis-auth/pkg/database"
	"github.com/prperemyshlev/clavis-auth/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const usage = `usage: authctl <command> [flags]

commands:
  migrate up|down|version       apply, roll back or report schema migrations
  create-admin -email -password [-name]
                                create a local staff account
  deactivate-user -id           deactivate a user and revoke all of its sessions
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := observability.InitLogger(os.Getenv("ENV"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadTool(ctx)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	switch os.Args[1] {
	case "migrate":
		err = runMigrate(cfg, logger, os.Args[2:])
	case "create-admin":
		err = runCreateAdmin(ctx, cfg, logger, os.Args[2:])
	case "deactivate-user":
		err = runDeactivateUser(ctx, cfg, logger, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Fatal("Command failed", zap.String("command", os.Args[1]), zap.Error(err))
	}
}

func runMigrate(cfg *config.ToolConfig, logger *zap.Logger, args []string) error {
	if len(args) != 1 {
		return errors.New("migrate expects one of: up, down, version")
	}

	migrator, err := database.NewMigrator(migrations.FS, cfg.Postgres.URL())
	if err != nil {
		return err
	}
	defer migrator.Close()

	switch args[0] {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down()
	case "version":
	default:
		return fmt.Errorf("unknown migrate direction %q", args[0])
	}
	if err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	logger.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func openRepositories(ctx context.Context, cfg *config.ToolConfig) (*repository.Repositories, func(), error) {
	postgres, err := database.NewPostgres(ctx, cfg.Postgres.DSN())
	if err != nil {
		return nil, nil, err
	}
	return repository.NewRepositories(postgres), func() { _ = postgres.Close() }, nil
}

func runCreateAdmin(ctx context.Context, cfg *config.ToolConfig, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	email := fs.String("email", "", "staff email address")
	password := fs.String("password", "", "password: 10+ characters with upper, lower and digit")
	name := fs.String("name", "", "display name (defaults to the email)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !utils.ValidateEmail(*email) {
		return fmt.Errorf("invalid email %q", *email)
	}
	if !utils.ValidatePassword(*password) {
		return errors.New("password must be at least 10 characters and contain upper case, lower case and a digit")
	}
	if *name == "" {
		*name = *email
	}

	hasher, err := utils.NewPasswordHasher(cfg.Security.BCryptCost)
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(*password)
	if err != nil {
		return err
	}

	repos, closeDB, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	user := &domain.User{
		Email:        *email,
		Username:     *name,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      true,
	}
	if err := repos.User.CreateLocal(ctx, user); err != nil {
		return err
	}

	logger.Info("Staff account created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return nil
}

func runDeactivateUser(ctx context.Context, cfg *config.ToolConfig, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("deactivate-user", flag.ContinueOnError)
	id := fs.String("id", "", "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("-id is required")
	}

	repos, closeDB, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	authService, err := service.NewAuthService(service.AuthServiceDeps{
		Identities: identity.NewRegistry(),
		Users:      repos.User,
		Tokens:     repos.Token,
		Meter:      otel.Meter("authctl"),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	revoked, err := authService.DeactivateUser(ctx, *id)
	if err != nil {
		return err
	}

	logger.Info("User deactivated", zap.String("user_id", *id), zap.Int64("revoked_sessions", revoked))
	return nil
}
