package cltracking

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// DeviceInfo informations extraites du user agent, stockées en JSON avec le scan
type DeviceInfo struct {
	UserAgent string `json:"user_agent"`
	Platform  string `json:"platform"`
	Browser   string `json:"browser"`
	IsMobile  bool   `json:"is_mobile"`
}

var platforms = []struct{ token, name string }{
	{"windows", "Windows"},
	{"mac", "macOS"},
	{"linux", "Linux"},
	{"iphone", "iOS"},
	{"ipad", "iOS"},
	{"android", "Android"},
}

// premier navigateur trouvé dans cet ordre
var browsers = []string{"Chrome", "Firefox", "Safari", "Edge", "Opera"}

// DetectPlatform première plateforme reconnue dans le user agent
func DetectPlatform(ua string) string {
	lower := strings.ToLower(ua)
	for _, p := range platforms {
		if strings.Contains(lower, p.token) {
			return p.name
		}
	}
	return "Unknown"
}

func DetectBrowser(ua string) string {
	lower := strings.ToLower(ua)
	for _, b := range browsers {
		if strings.Contains(lower, strings.ToLower(b)) {
			return b
		}
	}
	return "Unknown"
}

// DetectDeviceType Mobile, Tablet ou Desktop
func DetectDeviceType(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "mobile"), strings.Contains(lower, "android"), strings.Contains(lower, "iphone"):
		return "Mobile"
	case strings.Contains(lower, "tablet"), strings.Contains(lower, "ipad"):
		return "Tablet"
	}
	return "Desktop"
}

func NewDeviceInfo(ua string) DeviceInfo {
	return DeviceInfo{
		UserAgent: ua,
		Platform:  DetectPlatform(ua),
		Browser:   DetectBrowser(ua),
		IsMobile:  DetectDeviceType(ua) == "Mobile",
	}
}

func (d DeviceInfo) JSON() string {
	b, err := json.Marshal(d)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Fingerprint identifiant du visiteur sans cookie
func Fingerprint(ip, ua string) string {
	sum := md5.Sum([]byte(ip + ua))
	return hex.EncodeToString(sum[:])
}
