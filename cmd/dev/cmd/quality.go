package cmd

import (
	"fmt"
	"log/slog"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

// step is one quality gate of the repo.
type step struct {
	name string
	run  func() error
}

var (
	unitStep  = step{name: "unit tests", run: func() error { return test.Test() }}
	lintStep  = step{name: "linters", run: func() error { return test.Lint() }}
	integStep = step{name: "integration tests", run: func() error { return test.Integ() }}
)

// runSteps stops at the first failing step.
func runSteps(steps ...step) error {
	for _, s := range steps {
		slog.Info("running "+s.name)
		if err := s.run(); err != nil {
			return fmt.Errorf("%s failed: %w", s.name, err)
		}
	}
	return nil
}

func stepCmd(use, short string, steps ...step) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSteps(steps...)
		},
	}
}

// TestCmd runs the unit tests. The driver, transports and cli are all
// covered with the in-memory simulator and bus fakes, no hardware needed.
func TestCmd() *cobra.Command {
	return stepCmd("test", "Run unit tests", unitStep)
}

func LintCmd() *cobra.Command {
	return stepCmd("lint", "Run linters", lintStep)
}

// IntegrationTestCmd runs the integration suite against a sensor on a real
// bus selected with ALS_I2C_BUS.
func IntegrationTestCmd() *cobra.Command {
	return stepCmd("integration-test", "Run integration tests against attached hardware", integStep)
}

// CheckCmd runs the gates that need no hardware, as CI does.
func CheckCmd() *cobra.Command {
	return stepCmd("check", "Run unit tests and linters", unitStep, lintStep)
}
