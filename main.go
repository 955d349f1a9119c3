// Command treecommit is the action entrypoint: it reads INPUT_* variables,
// builds one commit and reports it as the "commit" output.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"treecommit/internal/app"
	"treecommit/internal/config"
	"treecommit/internal/errors"
	"treecommit/internal/inputs"
	"treecommit/internal/logging"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 1
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		return 1
	}
	defer logger.Sync()

	in := inputs.FromEnv()
	action, err := in.Action()
	if err != nil {
		logger.Error("invalid inputs", zap.Error(err))
		return errors.ExitCode(err)
	}

	root, err := in.Workspace()
	if err != nil {
		logger.Error("failed to resolve workspace", zap.Error(err))
		return 1
	}

	a, err := app.New(cfg, logger, app.Params{
		Workspace:  root,
		Repository: action.Repository,
		Ref:        action.Reference,
	})
	if err != nil {
		logger.Error("failed to initialize", zap.Error(err))
		return errors.ExitCode(err)
	}
	defer a.Close()
	if action.Slug != "" {
		logger.Info("running for repository", zap.String("slug", action.Slug))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := a.Engine().Execute(ctx, action.Options)
	if err != nil {
		return errors.ExitCode(err)
	}

	outputs := []struct{ name, value string }{
		{"commit", result.CommitID.String()},
		{"committed", strconv.FormatBool(result.Committed)},
		{"changed", strconv.Itoa(len(result.Changes))},
	}
	for _, o := range outputs {
		if err := in.SetOutput(o.name, o.value); err != nil {
			logger.Error("failed to set output", zap.String("name", o.name), zap.Error(err))
			return 1
		}
	}
	return 0
}
