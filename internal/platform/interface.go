package platform

import (
	"context"
	"errors"
	"image"
	"time"
)

// ErrPackageNotFound is returned when the host has no package with the given name
var ErrPackageNotFound = errors.New("package not found")

// ErrInvalidPackageName is returned for names that are not reverse-domain identifiers
var ErrInvalidPackageName = errors.New("invalid package name")

// PackageHost abstracts the host OS package manager, icon loader and intent dispatcher
type PackageHost interface {
	// InstalledPackages lists every installed package, disabled ones included
	InstalledPackages(ctx context.Context) ([]PackageRef, error)
	// Package resolves metadata for one package or returns ErrPackageNotFound
	Package(ctx context.Context, name string) (*PackageInfo, error)
	// Presentation resolves the user-visible label and icon of a package.
	// A returned error means the label could not be resolved; a failed icon
	// load is reported through Presentation.IconErr instead.
	Presentation(ctx context.Context, ref PackageRef) (*Presentation, error)
	// ArtifactSize returns the on-disk size in bytes of an installed artifact
	ArtifactSize(ctx context.Context, path string) (int64, error)
	// StartUninstall asks the host to show its uninstall confirmation for name.
	// It returns once the request is dispatched, not when removal completes.
	StartUninstall(ctx context.Context, name string) error
}

// PackageRef identifies an installed package and its primary artifact
type PackageRef struct {
	Name      string `json:"name"`
	SourceDir string `json:"sourceDir"`
}

// ApplicationFlags mirrors the host's application flag set
type ApplicationFlags struct {
	System        bool
	UpdatedSystem bool
}

// PackageInfo is the host's metadata record for a package
type PackageInfo struct {
	PackageRef

	VersionName      string
	VersionCode      int64
	FirstInstallTime time.Time
	Flags            ApplicationFlags
	Enabled          bool
	TargetSdk        int
	MinSdk           int // 0 when the host does not report it
}

// Presentation is the label and icon of a package
type Presentation struct {
	Label   string
	Icon    image.Image
	IconErr error
}
