package platform

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dumpsysTimeLayout is how `dumpsys package` prints firstInstallTime
const dumpsysTimeLayout = "2006-01-02 15:04:05"

// parsePackageList parses `pm list packages -f` output:
//
//	package:/data/app/~~x==/com.example-y==/base.apk=com.example
func parsePackageList(output string) []PackageRef {
	var refs []PackageRef

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "package:") {
			continue
		}
		line = strings.TrimPrefix(line, "package:")

		// the path may itself contain '=', the name never does
		idx := strings.LastIndex(line, "=")
		if idx <= 0 || idx == len(line)-1 {
			continue
		}
		refs = append(refs, PackageRef{
			Name:      line[idx+1:],
			SourceDir: line[:idx],
		})
	}
	return refs
}

// parsePmPath returns the first artifact from `pm path` output
func parsePmPath(output string) (string, error) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "package:") {
			return strings.TrimPrefix(line, "package:"), nil
		}
	}
	return "", fmt.Errorf("unexpected output from pm path: %q", strings.TrimSpace(output))
}

// parseDumpsysPackage extracts the first `Package [name]` block of `dumpsys package name`.
// Later blocks (e.g. "Hidden system packages") describe the factory image and are ignored.
// A block without a parsable firstInstallTime is an error.
func parseDumpsysPackage(output, name string) (*PackageInfo, error) {
	lines := strings.Split(output, "\n")
	header := "Package [" + name + "]"

	start, indent := -1, 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, header) {
			start = i
			indent = len(line) - len(strings.TrimLeft(line, " \t"))
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, name)
	}

	info := &PackageInfo{PackageRef: PackageRef{Name: name}, Enabled: true}
	var flags []string

	for _, line := range lines[start+1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(line)-len(strings.TrimLeft(line, " \t")) <= indent {
			break
		}
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "versionCode="):
			for _, field := range strings.Fields(trimmed) {
				key, value, ok := strings.Cut(field, "=")
				if !ok {
					continue
				}
				switch key {
				case "versionCode":
					info.VersionCode, _ = strconv.ParseInt(value, 10, 64)
				case "minSdk":
					info.MinSdk, _ = strconv.Atoi(value)
				case "targetSdk":
					info.TargetSdk, _ = strconv.Atoi(value)
				}
			}
		case strings.HasPrefix(trimmed, "versionName="):
			info.VersionName = strings.TrimPrefix(trimmed, "versionName=")
		case strings.HasPrefix(trimmed, "codePath="):
			info.SourceDir = strings.TrimPrefix(trimmed, "codePath=")
		case strings.HasPrefix(trimmed, "firstInstallTime="):
			value := strings.TrimPrefix(trimmed, "firstInstallTime=")
			ts, err := time.ParseInLocation(dumpsysTimeLayout, value, time.Local)
			if err != nil {
				return nil, fmt.Errorf("parse install time of %s: %w", name, err)
			}
			info.FirstInstallTime = ts
		case strings.HasPrefix(trimmed, "flags=["), strings.HasPrefix(trimmed, "pkgFlags=["):
			_, list, _ := strings.Cut(trimmed, "[")
			list = strings.TrimSuffix(strings.TrimSpace(list), "]")
			flags = append(flags, strings.Fields(list)...)
		case strings.HasPrefix(trimmed, "User 0:"):
			info.Enabled = parseUserEnabled(trimmed)
		}
	}

	if info.FirstInstallTime.IsZero() {
		return nil, fmt.Errorf("no install time for %s", name)
	}

	for _, f := range flags {
		switch f {
		case "SYSTEM":
			info.Flags.System = true
		case "UPDATED_SYSTEM_APP":
			info.Flags.UpdatedSystem = true
		}
	}

	return info, nil
}

// parseUserEnabled reads the enabled=N state of a `User 0:` line.
// 0 (default) and 1 (enabled) count as enabled; 2, 3 and 4 are the disabled states.
func parseUserEnabled(line string) bool {
	for _, field := range strings.Fields(line) {
		if value, ok := strings.CutPrefix(field, "enabled="); ok {
			state, err := strconv.Atoi(value)
			if err != nil {
				return true
			}
			return state == 0 || state == 1
		}
	}
	return true
}

// parseBadging extracts the label and icon path from `aapt dump badging` output
func parseBadging(output string) (label, iconPath string) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case label == "" && strings.HasPrefix(line, "application-label:"):
			label = strings.Trim(strings.TrimPrefix(line, "application-label:"), "'\"")
		case strings.HasPrefix(line, "application:"):
			if label == "" {
				label = quotedAttr(line, "label")
			}
			if iconPath == "" {
				iconPath = quotedAttr(line, "icon")
			}
		}
	}
	return strings.TrimSpace(label), iconPath
}

func quotedAttr(line, attr string) string {
	marker := attr + "='"
	idx := strings.Index(line, marker)
	if idx < 0 {
		return ""
	}
	rest := line[idx+len(marker):]
	end := strings.Index(rest, "'")
	if end < 0 {
		return ""
	}
	return rest[:end]
}
