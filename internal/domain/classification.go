package domain

import "time"

// IPCategory is the fixed IP reputation taxonomy. When several raw signals
// apply, the highest-priority one wins: tor > vpn > proxy > datacenter >
// bot > real. Unknown is the degraded outcome when the reputation provider
// fails; it is never persisted so the lookup retries later.
type IPCategory string

const (
	IPTor        IPCategory = "tor"
	IPVPN        IPCategory = "vpn"
	IPProxy      IPCategory = "proxy"
	IPDatacenter IPCategory = "datacenter"
	IPBot        IPCategory = "bot"
	IPReal       IPCategory = "real"
	IPUnknown    IPCategory = "unknown"
)

// IPClassification is a durable cache row for one IP lookup.
type IPClassification struct {
	IP        string     `json:"ip" db:"ip"`
	Category  IPCategory `json:"category" db:"category"`
	Country   string     `json:"country" db:"country"`
	Region    string     `json:"region" db:"region"`
	City      string     `json:"city" db:"city"`
	ISP       string     `json:"isp" db:"isp"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// DeviceCategory is the fixed device taxonomy derived from the user agent.
type DeviceCategory string

const (
	DeviceDesktop DeviceCategory = "desktop"
	DeviceMobile  DeviceCategory = "mobile"
	DeviceTablet  DeviceCategory = "tablet"
	DeviceBot     DeviceCategory = "bot"
	DeviceOther   DeviceCategory = "other"
)

// DeviceClassification is derived in-process per call and never cached
// durably; parsing a user agent is cheap.
type DeviceClassification struct {
	Category DeviceCategory `json:"category"`
	Browser  string         `json:"browser"`
	OS       string         `json:"os"`
	Device   string         `json:"device"`
}
