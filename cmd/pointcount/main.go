// Package main provides the CLI entrypoint for pointcount.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/pointcount/internal/config"
	"github.com/verte-zerg/pointcount/internal/logging"
	"github.com/verte-zerg/pointcount/internal/model"
	"github.com/verte-zerg/pointcount/internal/report"
	"github.com/verte-zerg/pointcount/internal/session"
	"github.com/verte-zerg/pointcount/internal/stage"
	"github.com/verte-zerg/pointcount/internal/tui"
)

const (
	defaultManufacturer    = "Velmex"
	defaultStepDistance    = 0.1
	defaultMaxStepDistance = stage.DefaultMaxStepDistance
)

var (
	stageManufacturer    string
	stageStepDistance    float64
	stageMaxStepDistance float64
	stageDisabled        bool
	exportDir            string
	logLevel             string

	moveBack   bool
	moveDryRun bool
)

// deps are the hardware seams; tests replace them.
var (
	enumerator stage.Enumerator = stage.SerialEnumerator{}
	opener     stage.Opener     = stage.SerialOpener
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pointcount",
		Short:         "Petrographic point counter with motorized stage control",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runCountCmd,
	}

	addStageFlags(rootCmd)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&stageDisabled, "no-stage", false, "count without connecting to the stage")
	rootCmd.Flags().StringVar(&exportDir, "export-dir", "", "directory offered for CSV exports (default: current directory)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newPortsCmd())
	rootCmd.AddCommand(newMoveCmd())

	return rootCmd
}

func addStageFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&stageManufacturer, "usb-manufacturer", defaultManufacturer, "substring of the stage controller's USB manufacturer")
	cmd.Flags().Float64Var(&stageStepDistance, "step-distance", defaultStepDistance, "stage move per observation (inches)")
	cmd.Flags().Float64Var(&stageMaxStepDistance, "max-step-distance", defaultMaxStepDistance, "largest allowed step distance (inches)")
}

// loadSettings merges the config file into flags that were not set explicitly.
func loadSettings(cmd *cobra.Command) (model.Config, error) {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return model.Config{}, err
	}
	logging.Level.Set(level)

	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "usb-manufacturer", &stageManufacturer, fileCfg.Stage.USBManufacturer)
	applyFloatConfig(cmd, "step-distance", &stageStepDistance, fileCfg.Stage.StepDistance)
	applyFloatConfig(cmd, "max-step-distance", &stageMaxStepDistance, fileCfg.Stage.MaxStepDistance)
	applyStringConfig(cmd, "export-dir", &exportDir, fileCfg.Export.Dir)

	categories, err := fileCfg.CategorySet()
	if err != nil {
		return model.Config{}, err
	}
	cfg := model.Config{
		Categories: categories,
		Stage: model.StageConfig{
			USBManufacturer: stageManufacturer,
			StepDistance:    stageStepDistance,
			MaxStepDistance: stageMaxStepDistance,
		},
		ExportDir: exportDir,
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = config.DefaultExportDir()
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func runCountCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if !report.IsTerminal(os.Stdin) {
		return fmt.Errorf("counting requires an interactive terminal")
	}

	// The UI owns the terminal, so logs go to the file only.
	logger, closeLog, err := logging.New(logging.Options{FilePath: config.DefaultLogPath()})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeLog(); cerr != nil {
			logErrf("failed to close log: %v\n", cerr)
		}
	}()

	driver := stage.NewDriver(cfg.Stage, logger)
	defer func() {
		if cerr := driver.Close(); cerr != nil {
			logger.Error("failed to close stage", "error", cerr)
		}
	}()
	if stageDisabled {
		logger.Info("stage disabled by flag")
	} else if err := driver.Start(enumerator, opener); err != nil {
		logErrf("stage not connected (%v); counting without stage motion\n", err)
	}

	s := session.New(cfg.Categories, driver, logger)
	program := tea.NewProgram(tui.NewModel(s, cfg.ExportDir), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	logger.Info("session finished", "total", s.Total())
	return report.RenderTally(cmd.OutOrStdout(), s.Tally())
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newPortsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial devices and show which one would be used",
		Args:  cobra.NoArgs,
		RunE:  runPortsCmd,
	}
	cmd.Flags().StringVar(&stageManufacturer, "usb-manufacturer", defaultManufacturer, "substring of the stage controller's USB manufacturer")
	return cmd
}

func runPortsCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadSettings(cmd); err != nil {
		return err
	}
	devices, err := enumerator.Devices()
	if err != nil {
		return fmt.Errorf("failed to list serial devices: %w", err)
	}
	selected := stage.Match(devices, stageManufacturer)
	width := 0
	if out, ok := cmd.OutOrStdout().(*os.File); ok && report.IsTerminal(out) {
		width = report.TerminalWidth()
	}
	if err := report.RenderDevices(cmd.OutOrStdout(), devices, selected, width); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if selected < 0 && len(devices) > 0 {
		logErrf("No device manufacturer contains %q\n", stageManufacturer)
	}
	return nil
}

func newMoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <inches>",
		Short: "Send a single stage move",
		Args:  cobra.ExactArgs(1),
		RunE:  runMoveCmd,
	}
	addStageFlags(cmd)
	cmd.Flags().BoolVar(&moveBack, "back", false, "move backward")
	cmd.Flags().BoolVar(&moveDryRun, "dry-run", false, "print the command without sending it")
	return cmd
}

func runMoveCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	inches, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid distance %q: %w", args[0], err)
	}

	logger, closeLog, err := logging.New(logging.Options{
		FilePath: config.DefaultLogPath(),
		Terminal: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeLog(); cerr != nil {
			logErrf("failed to close log: %v\n", cerr)
		}
	}()

	driver := stage.NewDriver(cfg.Stage, logger)
	defer func() {
		if cerr := driver.Close(); cerr != nil {
			logger.Error("failed to close stage", "error", cerr)
		}
	}()
	inches = driver.SetStepDistance(inches)

	if !moveDryRun {
		if err := driver.Start(enumerator, opener); err != nil && !errors.Is(err, stage.ErrDeviceNotFound) {
			return err
		}
	}
	command, err := driver.Move(inches, !moveBack)
	if err != nil {
		return err
	}
	return printMove(cmd.OutOrStdout(), command, driver.State())
}

func printMove(w io.Writer, command string, state stage.State) error {
	suffix := "sent"
	if state != stage.Connected {
		suffix = "not sent"
	}
	_, err := fmt.Fprintf(w, "%s (%s)\n", command, suffix)
	return err
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Lookup(name) == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Lookup(name) == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# pointcount configuration
# Uncomment a value to enable it. CLI flags override config values.

[stage]
# usb-manufacturer = %q     # Substring of the controller's USB manufacturer
# step-distance = %.1f          # Stage move per observation (inches)
# max-step-distance = %.1f      # Step distance ceiling (inches)

[export]
# dir = "."                     # Directory offered for CSV exports

# Category bindings, in display and export order. List all six or none.
# [[categories]]
# id = "paste"
# key = "a"
# label = "Paste"
#
# Other ids: coarse-aggregate, fine-aggregate, entrained-air, entrapped-air, other
`,
		defaultManufacturer,
		defaultStepDistance,
		defaultMaxStepDistance,
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.Stage.MaxStepDistance <= 0 {
		return fmt.Errorf("--max-step-distance must be > 0")
	}
	if len(cfg.Categories.Bindings()) != model.NumCategories {
		return fmt.Errorf("expected %d categories", model.NumCategories)
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
