// Package platformtest provides an in-memory platform.PackageHost for tests.
package platformtest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"appscanner/internal/platform"
)

// FakePackage is one installed package of a FakeHost
type FakePackage struct {
	Info     platform.PackageInfo
	Label    string
	Icon     image.Image
	Size     int64
	LabelErr error
	IconErr  error
	InfoErr  error
	SizeErr  error
}

// FakeHost is a goroutine-safe PackageHost backed by a slice of packages
type FakeHost struct {
	mu sync.Mutex

	Packages     []FakePackage
	ListErr      error
	Duplicates   bool // report every package twice from InstalledPackages
	UninstallErr error

	Uninstalled []string
	Calls       map[string]int
}

var _ platform.PackageHost = (*FakeHost)(nil)

// SolidIcon returns a size x size opaque image
func SolidIcon(size int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// UserApp builds a plain enabled third-party package
func UserApp(name, label string) FakePackage {
	return FakePackage{
		Info: platform.PackageInfo{
			PackageRef:  platform.PackageRef{Name: name, SourceDir: "/data/app/" + name + "/base.apk"},
			VersionName: "1.0.0",
			VersionCode: 1,
			Enabled:     true,
			TargetSdk:   34,
			MinSdk:      24,
		},
		Label: label,
		Icon:  SolidIcon(48, color.NRGBA{R: 0x33, G: 0x99, B: 0xff, A: 0xff}),
		Size:  1 << 20,
	}
}

func (f *FakeHost) count(method string) {
	if f.Calls == nil {
		f.Calls = make(map[string]int)
	}
	f.Calls[method]++
}

// CallCount reports how often method was invoked
func (f *FakeHost) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[method]
}

// UninstallRequests returns the names passed to StartUninstall
func (f *FakeHost) UninstallRequests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Uninstalled...)
}

func (f *FakeHost) find(name string) (*FakePackage, bool) {
	for i := range f.Packages {
		if f.Packages[i].Info.Name == name {
			return &f.Packages[i], true
		}
	}
	return nil, false
}

func (f *FakeHost) InstalledPackages(ctx context.Context) ([]platform.PackageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("InstalledPackages")

	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var refs []platform.PackageRef
	for _, p := range f.Packages {
		refs = append(refs, p.Info.PackageRef)
		if f.Duplicates {
			refs = append(refs, p.Info.PackageRef)
		}
	}
	return refs, nil
}

func (f *FakeHost) Package(ctx context.Context, name string) (*platform.PackageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Package")

	p, ok := f.find(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", platform.ErrPackageNotFound, name)
	}
	if p.InfoErr != nil {
		return nil, p.InfoErr
	}
	info := p.Info
	return &info, nil
}

func (f *FakeHost) Presentation(ctx context.Context, ref platform.PackageRef) (*platform.Presentation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Presentation")

	p, ok := f.find(ref.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", platform.ErrPackageNotFound, ref.Name)
	}
	if p.LabelErr != nil {
		return nil, p.LabelErr
	}
	pres := &platform.Presentation{Label: p.Label, Icon: p.Icon, IconErr: p.IconErr}
	if pres.Icon == nil && pres.IconErr == nil {
		pres.IconErr = errors.New("no icon")
	}
	return pres, nil
}

func (f *FakeHost) ArtifactSize(ctx context.Context, path string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ArtifactSize")

	for _, p := range f.Packages {
		if p.Info.SourceDir == path {
			return p.Size, p.SizeErr
		}
	}
	return 0, fmt.Errorf("stat %s: no such file", path)
}

func (f *FakeHost) StartUninstall(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("StartUninstall")

	if f.UninstallErr != nil {
		return f.UninstallErr
	}
	f.Uninstalled = append(f.Uninstalled, name)
	return nil
}
