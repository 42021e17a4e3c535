// Package classify provides device and IP classification for pageviews:
// in-process user-agent parsing and a cache-aside IP reputation lookup with
// a durable cache table behind an external provider.
package classify

import (
	"github.com/mileusna/useragent"

	"github.com/ignite/attribution/internal/domain"
)

// DeviceClassifier derives device attributes from a user agent string.
// Parsing is cheap, so results are computed per call and never cached
// durably. Bot detection wins over the device-name mapping.
type DeviceClassifier struct{}

// NewDeviceClassifier creates a DeviceClassifier.
func NewDeviceClassifier() *DeviceClassifier { return &DeviceClassifier{} }

// Classify parses the user agent into the fixed device taxonomy.
func (c *DeviceClassifier) Classify(ua string) domain.DeviceClassification {
	parsed := useragent.Parse(ua)

	out := domain.DeviceClassification{
		Browser: parsed.Name,
		OS:      parsed.OS,
		Device:  parsed.Device,
	}
	switch {
	case parsed.Bot:
		out.Category = domain.DeviceBot
	case parsed.Tablet:
		out.Category = domain.DeviceTablet
	case parsed.Mobile:
		out.Category = domain.DeviceMobile
	case parsed.Desktop:
		out.Category = domain.DeviceDesktop
	default:
		out.Category = domain.DeviceOther
	}
	return out
}
