package game

import (
	"regexp"
	"strings"
)

// Platform is the device class used to pick fall speeds
type Platform uint8

const (
	PlatformDesktop Platform = iota
	PlatformMobile
)

// MobileViewportMaxWidth is the widest viewport still treated as a small screen
const MobileViewportMaxWidth = 600

var mobileUserAgent = regexp.MustCompile(`(?i)android|iphone|ipad|ipod|mobile|blackberry|iemobile|opera mini|touch`)

// ClassifyPlatform derives the platform class from the viewport width and the
// user agent. A non-positive width means the width is unknown.
func ClassifyPlatform(viewportWidth int, userAgent string) Platform {
	if viewportWidth > 0 && viewportWidth <= MobileViewportMaxWidth {
		return PlatformMobile
	}
	if userAgent != "" && mobileUserAgent.MatchString(userAgent) {
		return PlatformMobile
	}
	return PlatformDesktop
}

// IsMobile reports whether p is the small/touch screen class
func (p Platform) IsMobile() bool {
	return p == PlatformMobile
}

func (p Platform) String() string {
	if p == PlatformMobile {
		return "mobile"
	}
	return "desktop"
}

// ParsePlatform accepts "mobile" or "desktop"; anything else is desktop
func ParsePlatform(s string) Platform {
	if strings.EqualFold(strings.TrimSpace(s), "mobile") {
		return PlatformMobile
	}
	return PlatformDesktop
}

// MarshalText encodes the platform by name
func (p Platform) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a platform name
func (p *Platform) UnmarshalText(text []byte) error {
	*p = ParsePlatform(string(text))
	return nil
}
