package types

import "time"

// InstallDateLayout is the fixed textual layout of ApplicationDetail.InstallDate
const InstallDateLayout = "2006-01-02 15:04:05"

// InstalledApplication is one entry of an enumeration result
type InstalledApplication struct {
	PackageName string `json:"packageName"`
	AppName     string `json:"appName"`
	Icon        []byte `json:"icon"` // PNG, nil when the icon could not be rendered
	ApkPath     string `json:"apkPath"`
}

// ApplicationDetail is computed per request and never persisted
type ApplicationDetail struct {
	InstalledApplication

	VersionName        string `json:"versionName"`
	VersionCode        int64  `json:"versionCode"`
	InstallDate        string `json:"installDate"`
	ApkSize            int64  `json:"apkSize"`
	IsSystemApp        bool   `json:"isSystemApp"`
	IsUpdatedSystemApp bool   `json:"isUpdatedSystemApp"`
	IsEnabled          bool   `json:"isEnabled"`
	TargetSdkVersion   int    `json:"targetSdkVersion"`
	MinSdkVersion      *int   `json:"minSdkVersion,omitempty"`
}

// ToMap renders the detail with the channel's key names
func (d *ApplicationDetail) ToMap() map[string]any {
	if d == nil {
		return map[string]any{}
	}
	m := map[string]any{
		"packageName":        d.PackageName,
		"appName":            d.AppName,
		"apkPath":            d.ApkPath,
		"icon":               d.Icon,
		"versionName":        d.VersionName,
		"versionCode":        d.VersionCode,
		"installDate":        d.InstallDate,
		"apkSize":            d.ApkSize,
		"isSystemApp":        d.IsSystemApp,
		"isUpdatedSystemApp": d.IsUpdatedSystemApp,
		"isEnabled":          d.IsEnabled,
		"targetSdkVersion":   d.TargetSdkVersion,
	}
	if d.MinSdkVersion != nil {
		m["minSdkVersion"] = *d.MinSdkVersion
	}
	return m
}

// ToMap renders the summary with the channel's key names
func (a InstalledApplication) ToMap() map[string]any {
	return map[string]any{
		"packageName": a.PackageName,
		"appName":     a.AppName,
		"icon":        a.Icon,
		"apkPath":     a.ApkPath,
	}
}

// Outcome of one handled channel call
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeEmpty          Outcome = "empty"
	OutcomeError          Outcome = "error"
	OutcomeNotImplemented Outcome = "not_implemented"
)

// ActivityEntry is one row of the diagnostic activity journal
type ActivityEntry struct {
	ID          int64     `json:"id"`
	Method      string    `json:"method"`
	PackageName string    `json:"packageName,omitempty"`
	Outcome     Outcome   `json:"outcome"`
	Message     string    `json:"message,omitempty"`
	DurationMs  int64     `json:"durationMs"`
	CreatedAt   time.Time `json:"createdAt"`
}
