package confstore

// defaultDoc returns a fresh copy of the factory configuration. Callers
// may mutate the result freely.
func defaultDoc() map[string]map[string]any {
	return map[string]map[string]any{
		"base": {
			"language":     "CN",
			"password":     "1",
			"firstLogin":   0,
			"appMode":      1,
			"appVersion":   "",
			"releaseTime":  "",
			"devType":      3,
			"restartCount": 0,
			"volume":       50,
			"heartEn":      0,
			"heartTime":    30,
			"heartChannel": 0,
			"userdata":     "",
		},
		"ui": {
			"screenOff":      0,
			"screensaver":    0,
			"brightness":     70,
			"brightnessAuto": 1,
			"showIp":         1,
			"showSn":         1,
			"showNir":        1,
			"showWXPro":      1,
			"showIdCard":     1,
			"showLogo":       0,
			"logoImage":      "",
			"showCRZ":        0,
		},
		"net": {
			"type":    1,
			"ssid":    "",
			"psk":     "",
			"ssidENC": "",
			"dhcp":    2,
			"ip":      "",
			"gateway": "",
			"mask":    "",
			"dns":     "",
			"mac":     "",
			"ntp":     1,
			"server":  "182.92.12.11",
			"hour":    3,
			"gmt":     8,
		},
		"mqtt": {
			"addr":         "mqtt://192.168.10.166:1883",
			"clientId":     "",
			"username":     "",
			"password":     "",
			"qos":          1,
			"prefix":       "",
			"willTopic":    "access_device/v2/event/offline",
			"cleanSession": 0,
		},
		"face": {
			"similarity":  0.6,
			"livenessOff": 1,
			"livenessVal": 10,
			"detectMask":  0,
			"stranger":    1,
			"voiceMode":   1,
			"voiceSucCum": "Welcome",
		},
		"access": {
			"offlineAcsNum":   2000,
			"reportTime":      5,
			"tamperAlarm":     0,
			"relayTime":       2,
			"onlinecheck":     0,
			"timeout":         5000,
			"showPwd":         1,
			"nfc":             1,
			"Idcard":          1,
			"strangerImg":     1,
			"accessImageType": 1,
		},
		"sys": {
			"devmac": "",
			"uuid":   "",
		},
	}
}

// readonlyKeys are device-owned and rejected on remote writes.
var readonlyKeys = map[string]struct{}{
	"base.firstLogin":   {},
	"base.appVersion":   {},
	"base.releaseTime":  {},
	"base.devType":      {},
	"base.restartCount": {},
	"base.userdata":     {},
	"sys.devmac":        {},
	"sys.uuid":          {},
}
