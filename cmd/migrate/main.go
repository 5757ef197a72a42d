//go:build migrate

package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/Guiziweb/VideoAiStudio/internal/config"
	"github.com/Guiziweb/VideoAiStudio/internal/logger"
)

const usage = "Usage: migrate <up|down [n]|goto <version>|version|force <version>> [-path dir]"

type command struct {
	name string
	n    int
	path string
}

func parseCommand(args []string) (command, error) {
	cmd := command{path: "migrations"}

	var rest []string
	for i := 0; i < len(args); i++ {
		if args[i] == "-path" {
			if i+1 >= len(args) {
				return cmd, errors.New("-path needs a directory")
			}
			cmd.path = args[i+1]
			i++
			continue
		}
		rest = append(rest, args[i])
	}

	if len(rest) == 0 {
		return cmd, errors.New(usage)
	}
	cmd.name = rest[0]

	switch cmd.name {
	case "up", "version":
		if len(rest) > 1 {
			return cmd, fmt.Errorf("%s takes no argument", cmd.name)
		}
	case "down":
		cmd.n = 1
		if len(rest) > 1 {
			n, err := strconv.Atoi(rest[1])
			if err != nil || n <= 0 {
				return cmd, fmt.Errorf("invalid step count %q", rest[1])
			}
			cmd.n = n
		}
	case "goto", "force":
		if len(rest) < 2 {
			return cmd, fmt.Errorf("%s needs a version", cmd.name)
		}
		n, err := strconv.Atoi(rest[1])
		if err != nil || n < 0 {
			return cmd, fmt.Errorf("invalid version %q", rest[1])
		}
		cmd.n = n
	default:
		return cmd, fmt.Errorf("unknown command %q", cmd.name)
	}

	return cmd, nil
}

func run(m *migrate.Migrate, cmd command) error {
	var err error
	switch cmd.name {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-cmd.n)
	case "goto":
		err = m.Migrate(uint(cmd.n))
	case "force":
		err = m.Force(cmd.n)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func main() {
	cmd, err := parseCommand(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	dsn := os.Getenv("DATABASE_URL")
	environment := "development"
	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		dsn = cfg.Database.DSN()
		environment = cfg.Server.Environment
	}

	zl, err := logger.New(environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	m, err := migrate.New("file://"+cmd.path, dsn)
	if err != nil {
		zl.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	defer m.Close()

	if err := run(m, cmd); err != nil {
		zl.Fatal("Migration failed", zap.String("command", cmd.name), zap.Error(err))
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		zl.Fatal("Failed to read schema version", zap.Error(err))
	}
	zl.Info("Schema version",
		zap.String("command", cmd.name),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
}
