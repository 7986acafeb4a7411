package platform

import (
	"archive/zip"
	"errors"
	"fmt"
	"image"
	"io"
	"path"
	"strings"

	"appscanner/internal/icon"
)

// ErrNoIcon is returned when an APK carries no decodable launcher bitmap
var ErrNoIcon = errors.New("no launcher icon in artifact")

// densityRank orders resource qualifiers from best to worst
var densityRank = []string{"xxxhdpi", "xxhdpi", "xhdpi", "hdpi", "mdpi", "ldpi", "anydpi"}

var iconExtensions = []string{".png", ".webp", ".jpg", ".jpeg"}

// loadAPKIcon opens the APK at apkPath and decodes its launcher icon.
// hint is the icon resource path reported by aapt, if any.
func loadAPKIcon(apkPath, hint string) (image.Image, error) {
	r, err := zip.OpenReader(apkPath)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer r.Close()

	for _, f := range iconCandidates(r.File, hint) {
		data, err := readZipFile(f)
		if err != nil {
			continue
		}
		img, err := icon.Decode(data)
		if err != nil {
			// adaptive icons are binary XML; try the next candidate
			continue
		}
		return img, nil
	}
	return nil, ErrNoIcon
}

// iconCandidates returns bitmap entries in preference order: the exact hint first,
// then ic_launcher variants sorted by density.
func iconCandidates(files []*zip.File, hint string) []*zip.File {
	var exact []*zip.File
	ranked := make([][]*zip.File, len(densityRank)+1)

	hintBase := strings.TrimSuffix(path.Base(hint), path.Ext(hint))

	for _, f := range files {
		if !isBitmap(f.Name) {
			continue
		}
		if hint != "" && f.Name == hint {
			exact = append(exact, f)
			continue
		}

		base := strings.TrimSuffix(path.Base(f.Name), path.Ext(f.Name))
		dir := path.Dir(f.Name)
		if !strings.HasPrefix(dir, "res/mipmap") && !strings.HasPrefix(dir, "res/drawable") {
			continue
		}
		if base != "ic_launcher" && base != "ic_launcher_round" && (hintBase == "" || base != hintBase) {
			continue
		}
		ranked[densityIndex(dir)] = append(ranked[densityIndex(dir)], f)
	}

	out := exact
	for _, group := range ranked {
		out = append(out, group...)
	}
	return out
}

func densityIndex(dir string) int {
	for i, d := range densityRank {
		if strings.Contains(dir, "-"+d) {
			return i
		}
	}
	return len(densityRank)
}

func isBitmap(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range iconExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
