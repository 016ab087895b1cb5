package confstore

import (
	"fmt"
	"math"
	"net"
	"strings"
)

// validator checks a candidate value for one key. A nil error accepts
// the value. Values arrive JSON-normalized, so numbers are float64.
type validator func(value any) error

// validators maps dotted keys to their checks. Keys without an entry
// accept any value.
var validators = map[string]validator{
	"base.language":     enumString("CN", "EN"),
	"base.password":     stringLen(1, 20),
	"base.firstLogin":   enumInt(0, 1),
	"base.appMode":      enumInt(0, 1),
	"base.appVersion":   stringLen(1, 32),
	"base.releaseTime":  stringLen(1, 32),
	"base.devType":      enumInt(0, 1, 2, 3),
	"base.restartCount": intRange(0, 999999),
	"base.volume":       intRange(0, 100),
	"base.heartEn":      enumInt(0, 1),
	"base.heartTime":    intRange(10, 300),
	"base.heartChannel": enumInt(0, 1),
	"base.userdata":     stringAny,

	"ui.screenOff":      intRange(0, 86400),
	"ui.screensaver":    intRange(0, 86400),
	"ui.brightness":     intRange(0, 100),
	"ui.brightnessAuto": enumInt(0, 1),
	"ui.showIp":         enumInt(0, 1),
	"ui.showSn":         enumInt(0, 1),
	"ui.showNir":        enumInt(0, 1),
	"ui.showWXPro":      enumInt(0, 1),
	"ui.showIdCard":     enumInt(0, 1),
	"ui.showLogo":       enumInt(0, 1),
	"ui.logoImage":      stringLen(0, 64),
	"ui.showCRZ":        enumInt(0, 1),

	"net.type":    enumInt(1, 2, 4),
	"net.ssid":    stringLen(1, 32),
	"net.psk":     stringLen(8, 64),
	"net.ssidENC": stringLen(1, 32),
	"net.dhcp":    enumInt(1, 2),
	"net.ip":      ipv4Addr,
	"net.gateway": ipv4Addr,
	"net.mask":    ipv4Addr,
	"net.dns":     ipv4Addr,
	"net.mac":     macAddr,
	"net.ntp":     enumInt(0, 1),
	"net.server":  ipv4Addr,
	"net.hour":    intRange(0, 23),
	"net.gmt":     intRange(-12, 14),

	"mqtt.addr":         mqttAddr,
	"mqtt.clientId":     stringLen(1, 23),
	"mqtt.username":     stringLen(0, 12),
	"mqtt.password":     stringLen(0, 12),
	"mqtt.qos":          enumInt(0, 1, 2),
	"mqtt.prefix":       stringLen(0, 64),
	"mqtt.willTopic":    stringLen(1, 64),
	"mqtt.cleanSession": enumInt(0, 1),

	"face.similarity":  floatRange(0.0, 1.0),
	"face.livenessOff": enumInt(0, 1),
	"face.livenessVal": intRange(0, 100),
	"face.detectMask":  enumInt(0, 1),
	"face.stranger":    enumInt(0, 1, 2, 3),
	"face.voiceMode":   enumInt(0, 1, 2, 3),
	"face.voiceSucCum": stringLen(1, 64),

	"access.offlineAcsNum":   intRange(100, 10000),
	"access.reportTime":      intRange(2, 60),
	"access.tamperAlarm":     enumInt(0, 1),
	"access.relayTime":       intRange(2, 30),
	"access.onlinecheck":     enumInt(0, 1),
	"access.timeout":         intRange(1000, 60000),
	"access.showPwd":         enumInt(0, 1),
	"access.nfc":             enumInt(0, 1),
	"access.Idcard":          enumInt(1, 2, 3),
	"access.strangerImg":     enumInt(0, 1),
	"access.accessImageType": enumInt(0, 1),

	"sys.devmac": macAddr,
	"sys.uuid":   stringLen(6, 32),
}

// asInt extracts a whole number from a JSON-decoded value.
func asInt(value any) (int64, bool) {
	f, ok := value.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func intRange(min, max int64) validator {
	return func(value any) error {
		n, ok := asInt(value)
		if !ok {
			return fmt.Errorf("must be an integer, got %v", value)
		}
		if n < min || n > max {
			return fmt.Errorf("out of range, got %d, valid range %d-%d", n, min, max)
		}
		return nil
	}
}

func enumInt(allowed ...int64) validator {
	return func(value any) error {
		n, ok := asInt(value)
		if ok {
			for _, a := range allowed {
				if n == a {
					return nil
				}
			}
		}
		parts := make([]string, len(allowed))
		for i, a := range allowed {
			parts[i] = fmt.Sprintf("%d", a)
		}
		return fmt.Errorf("invalid value %v, valid values: %s", value, strings.Join(parts, ", "))
	}
}

func enumString(allowed ...string) validator {
	return func(value any) error {
		s, ok := value.(string)
		if ok {
			for _, a := range allowed {
				if s == a {
					return nil
				}
			}
		}
		return fmt.Errorf("invalid value %v, valid values: %s", value, strings.Join(allowed, ", "))
	}
}

func stringLen(min, max int) validator {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("must be a string, got %T", value)
		}
		if len(s) < min || len(s) > max {
			return fmt.Errorf("invalid length %d, valid range %d-%d characters", len(s), min, max)
		}
		return nil
	}
}

func stringAny(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("must be a string, got %T", value)
	}
	return nil
}

func floatRange(min, max float64) validator {
	return func(value any) error {
		f, ok := value.(float64)
		if !ok {
			return fmt.Errorf("must be a number, got %T", value)
		}
		if f < min || f > max {
			return fmt.Errorf("out of range, got %v, valid range %v-%v", f, min, max)
		}
		return nil
	}
}

func ipv4Addr(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("must be a string, got %T", value)
	}
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return fmt.Errorf("invalid IPv4 address: %q", s)
	}
	return nil
}

func macAddr(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("must be a string, got %T", value)
	}
	if len(s) != 17 {
		return fmt.Errorf("invalid MAC address: %q", s)
	}
	if _, err := net.ParseMAC(s); err != nil {
		return fmt.Errorf("invalid MAC address: %q", s)
	}
	return nil
}

func mqttAddr(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("must be a string, got %T", value)
	}
	if len(s) < 1 || len(s) > 128 {
		return fmt.Errorf("invalid broker address length %d", len(s))
	}
	for _, scheme := range []string{"tcp://", "ssl://", "mqtt://", "mqtts://"} {
		if strings.HasPrefix(s, scheme) {
			return nil
		}
	}
	return fmt.Errorf("broker address must start with tcp://, ssl://, mqtt:// or mqtts://, got %q", s)
}
