package visitor

import (
	"strings"

	"github.com/mssola/useragent"
)

type Device struct {
	Browser    string `json:"browser,omitempty"`
	OS         string `json:"os,omitempty"`
	DeviceType string `json:"deviceType,omitempty"`
}

// Describe labels the browser behind a User-Agent header.
func Describe(ua string) Device {
	if strings.TrimSpace(ua) == "" {
		return Device{DeviceType: "unknown"}
	}
	parsed := useragent.New(ua)
	browser, version := parsed.Browser()
	if version != "" {
		browser = browser + " " + version
	}

	info := parsed.OSInfo()
	os := info.Name
	if info.Version != "" {
		os = os + " " + info.Version
	}

	deviceType := "desktop"
	switch {
	case parsed.Bot():
		deviceType = "bot"
	case isTablet(ua):
		deviceType = "tablet"
	case parsed.Mobile():
		deviceType = "mobile"
	}

	return Device{Browser: browser, OS: os, DeviceType: deviceType}
}

func isTablet(ua string) bool {
	lower := strings.ToLower(ua)
	if strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet") {
		return true
	}
	// Android tablets omit "mobile".
	return strings.Contains(lower, "android") && !strings.Contains(lower, "mobile")
}
