// Package device extracts client device details from a User-Agent header.
package device

import (
	"strings"

	"github.com/mssola/user_agent"
)

// Type is a coarse device category.
type Type string

const (
	Desktop Type = "desktop"
	Mobile  Type = "mobile"
	Tablet  Type = "tablet"
	Bot     Type = "bot"
	Unknown Type = "unknown"
)

// Info is the structured device blob stored on each session.
type Info struct {
	Browser        string `json:"browser"`
	BrowserVersion string `json:"browser_version"`
	OS             string `json:"os"`
	Platform       string `json:"platform"`
	DeviceType     Type   `json:"device_type"`
	IsMobile       bool   `json:"is_mobile"`
	IsBot          bool   `json:"is_bot"`
}

// Parse derives device Info from a raw User-Agent string.
func Parse(userAgent string) Info {
	if strings.TrimSpace(userAgent) == "" {
		return Info{DeviceType: Unknown}
	}

	ua := user_agent.New(userAgent)
	browser, version := ua.Browser()

	info := Info{
		Browser:        browser,
		BrowserVersion: version,
		OS:             ua.OS(),
		Platform:       ua.Platform(),
		IsMobile:       ua.Mobile(),
		IsBot:          ua.Bot(),
		DeviceType:     Desktop,
	}

	lower := strings.ToLower(userAgent)
	switch {
	case info.IsBot:
		info.DeviceType = Bot
	case strings.Contains(lower, "tablet") || strings.Contains(lower, "ipad"):
		info.DeviceType = Tablet
	case info.IsMobile:
		info.DeviceType = Mobile
	}
	return info
}

// Map returns Info as a plain map for JSON columns.
func (i Info) Map() map[string]any {
	return map[string]any{
		"browser":         i.Browser,
		"browser_version": i.BrowserVersion,
		"os":              i.OS,
		"platform":        i.Platform,
		"device_type":     string(i.DeviceType),
		"is_mobile":       i.IsMobile,
		"is_bot":          i.IsBot,
	}
}
