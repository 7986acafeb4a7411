package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"appscanner/internal/infrastructure/logging"
)

// Runner executes a command and returns its stdout
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return output, fmt.Errorf("%s %s failed: %w (output: %s)",
			filepath.Base(name), strings.Join(args, " "), err, strings.TrimSpace(stderr.String()+string(output)))
	}
	return output, nil
}

// AdbConfig configures an AdbHost
type AdbConfig struct {
	AdbPath      string        // adb binary, "adb" resolves through PATH
	Serial       string        // device serial, empty for the only attached device
	AaptPath     string        // optional aapt binary used to read labels
	Timeout      time.Duration // per-command timeout, 0 for none
	IconsEnabled bool          // pull artifacts to load icons
	WorkDir      string        // scratch directory for pulled artifacts, empty for os.TempDir
}

// AdbHost implements PackageHost against an Android device over adb
type AdbHost struct {
	config AdbConfig
	runner Runner
	logger logging.Logger
}

var _ PackageHost = (*AdbHost)(nil)

// NewAdbHost creates a host; runner and logger fall back to defaults when nil
func NewAdbHost(config AdbConfig, runner Runner, logger logging.Logger) *AdbHost {
	if config.AdbPath == "" {
		config.AdbPath = "adb"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &AdbHost{config: config, runner: runner, logger: logger}
}

func (h *AdbHost) adb(ctx context.Context, args ...string) ([]byte, error) {
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}
	if h.config.Serial != "" {
		args = append([]string{"-s", h.config.Serial}, args...)
	}
	return h.runner.Run(ctx, h.config.AdbPath, args...)
}

func (h *AdbHost) shell(ctx context.Context, command ...string) (string, error) {
	output, err := h.adb(ctx, append([]string{"shell"}, command...)...)
	return string(output), err
}

// InstalledPackages runs `pm list packages -f`, which includes disabled packages
func (h *AdbHost) InstalledPackages(ctx context.Context) ([]PackageRef, error) {
	output, err := h.shell(ctx, "pm", "list", "packages", "-f")
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	return parsePackageList(output), nil
}

// Package combines `dumpsys package` with `pm path` for the exact artifact path
func (h *AdbHost) Package(ctx context.Context, name string) (*PackageInfo, error) {
	if err := ValidatePackageName(name); err != nil {
		return nil, err
	}

	output, err := h.shell(ctx, "dumpsys", "package", name)
	if err != nil {
		return nil, fmt.Errorf("dumpsys package %s: %w", name, err)
	}
	if strings.Contains(output, "Unable to find package") {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, name)
	}

	info, err := parseDumpsysPackage(output, name)
	if err != nil {
		return nil, err
	}

	pathOutput, err := h.shell(ctx, "pm", "path", name)
	if err != nil {
		return nil, fmt.Errorf("pm path %s: %w", name, err)
	}
	sourceDir, err := parsePmPath(pathOutput)
	if err != nil {
		return nil, err
	}
	info.SourceDir = sourceDir

	return info, nil
}

// Presentation pulls the artifact when a label tool or icons need it.
// Without aapt the label is derived from the package name.
func (h *AdbHost) Presentation(ctx context.Context, ref PackageRef) (*Presentation, error) {
	if err := ValidatePackageName(ref.Name); err != nil {
		return nil, err
	}

	p := &Presentation{Label: labelFromPackageName(ref.Name)}
	if h.config.AaptPath == "" && !h.config.IconsEnabled {
		p.IconErr = errors.New("icons disabled")
		return p, nil
	}

	local, cleanup, err := h.pull(ctx, ref)
	if err != nil {
		if h.config.AaptPath != "" {
			return nil, err
		}
		p.IconErr = err
		return p, nil
	}
	defer cleanup()

	var iconHint string
	if h.config.AaptPath != "" {
		output, err := h.runner.Run(ctx, h.config.AaptPath, "dump", "badging", local)
		if err != nil {
			return nil, fmt.Errorf("read label of %s: %w", ref.Name, err)
		}
		label, hint := parseBadging(string(output))
		if label != "" {
			p.Label = label
		}
		iconHint = hint
	}

	if !h.config.IconsEnabled {
		p.IconErr = errors.New("icons disabled")
		return p, nil
	}
	p.Icon, p.IconErr = loadAPKIcon(local, iconHint)
	return p, nil
}

// pull copies the package artifact into a private scratch directory
func (h *AdbHost) pull(ctx context.Context, ref PackageRef) (string, func(), error) {
	if ref.SourceDir == "" {
		return "", nil, fmt.Errorf("no artifact path for %s", ref.Name)
	}

	dir, err := os.MkdirTemp(h.config.WorkDir, "appscanner-")
	if err != nil {
		return "", nil, fmt.Errorf("create scratch dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			h.logger.Warn("Failed to remove scratch dir", "dir", dir, "error", err)
		}
	}

	local := filepath.Join(dir, ref.Name+".apk")
	if _, err := h.adb(ctx, "pull", ref.SourceDir, local); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("pull %s: %w", ref.Name, err)
	}
	return local, cleanup, nil
}

// ArtifactSize stats the artifact on the device
func (h *AdbHost) ArtifactSize(ctx context.Context, path string) (int64, error) {
	output, err := h.shell(ctx, "stat", "-c", "%s", shellQuote(path))
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	size, err := strconv.ParseInt(strings.TrimSpace(output), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected stat output for %s: %q", path, strings.TrimSpace(output))
	}
	return size, nil
}

// StartUninstall fires android.intent.action.DELETE for the package with
// FLAG_ACTIVITY_NEW_TASK; the device shows its own confirmation dialog.
func (h *AdbHost) StartUninstall(ctx context.Context, name string) error {
	if err := ValidatePackageName(name); err != nil {
		return err
	}

	output, err := h.shell(ctx, "am", "start",
		"-a", "android.intent.action.DELETE",
		"-d", "package:"+name,
		"-f", "0x10000000")
	if err != nil {
		return fmt.Errorf("start uninstall of %s: %w", name, err)
	}
	if strings.Contains(output, "Error:") || strings.Contains(output, "Exception") {
		return fmt.Errorf("start uninstall of %s: %s", name, strings.TrimSpace(output))
	}
	return nil
}
