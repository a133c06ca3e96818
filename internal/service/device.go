package service

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown device"

// DeviceName renders a stored user agent as a short device label
func DeviceName(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknownDevice
	}

	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "Bot"
	}

	browser, _ := ua.Browser()
	osName := ua.OS()

	switch {
	case browser != "" && osName != "":
		return browser + " on " + osName
	case osName != "":
		return osName
	case browser != "":
		return browser
	default:
		return userAgent
	}
}
