package controller

import (
	"context"
	"os/exec"
	"time"

	"github.com/wakefire/wakefire/internal/errors"
	"github.com/wakefire/wakefire/internal/logger"
)

const shutdownCommandTimeout = 30 * time.Second

// CommandRunner runs the host shutdown command.
type CommandRunner func(ctx context.Context, command string) error

// ShellRunner runs command with /bin/sh -c.
func ShellRunner(ctx context.Context, command string) error {
	out, err := exec.CommandContext(ctx, "/bin/sh", "-c", command).CombinedOutput()
	if err != nil {
		return errors.New(err).
			Component("controller").
			Category(errors.CategorySystem).
			Context("command", command).
			Context("output", string(out)).
			Build()
	}
	return nil
}

// runShutdownCommand runs the configured command once the coordinator has
// stopped because the shutdown button was pressed.
func (c *Coordinator) runShutdownCommand() {
	if c.cfg.ShutdownCommand == "" || !c.buttonShutdown.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownCommandTimeout)
	defer cancel()

	c.log.Info("running shutdown command")
	if err := c.cfg.RunCommand(ctx, c.cfg.ShutdownCommand); err != nil {
		c.log.Error("shutdown command failed", logger.Error(err))
	}
}
