package protocol

import (
	"testing"
)

func TestGetConfigAll(t *testing.T) {
	r := newRig(t)

	reply := r.send(t, "getConfig", nil)
	if reply.Code != CodeOK {
		t.Fatalf("code = %s", reply.Code)
	}
	data := dataMap(t, reply)
	for _, group := range []string{"base", "ui", "net", "mqtt", "face", "access", "sys"} {
		if _, ok := data[group]; !ok {
			t.Fatalf("group %s missing from snapshot", group)
		}
	}
}

func TestGetConfigDottedKey(t *testing.T) {
	r := newRig(t)

	reply := r.send(t, "getConfig", "face.similarity")
	if reply.Code != CodeOK {
		t.Fatalf("code = %s data = %v", reply.Code, reply.Data)
	}
	data := dataMap(t, reply)
	face := data["face"].(map[string]any)
	if face["similarity"] != 0.6 {
		t.Fatalf("face.similarity = %v", face["similarity"])
	}
}

func TestGetConfigGroup(t *testing.T) {
	r := newRig(t)

	reply := r.send(t, "getConfig", "access")
	if reply.Code != CodeOK {
		t.Fatalf("code = %s data = %v", reply.Code, reply.Data)
	}
	data := dataMap(t, reply)
	group := data["access"].(map[string]any)
	if group["relayTime"] != float64(2) {
		t.Fatalf("access.relayTime = %v", group["relayTime"])
	}
}

func TestGetConfigMissing(t *testing.T) {
	r := newRig(t)

	reply := r.send(t, "getConfig", "face.nope")
	if reply.Code != CodeError || reply.Data != "Configuration item face.nope does not exist" {
		t.Fatalf("code/data = %s/%v", reply.Code, reply.Data)
	}

	reply = r.send(t, "getConfig", "nope")
	if reply.Code != CodeError || reply.Data != "Configuration group nope does not exist" {
		t.Fatalf("code/data = %s/%v", reply.Code, reply.Data)
	}
}

func TestGetConfigBadQueryType(t *testing.T) {
	r := newRig(t)

	reply := r.send(t, "getConfig", 42)
	if reply.Code != CodeError || reply.Data != "Invalid configuration query parameter format" {
		t.Fatalf("code/data = %s/%v", reply.Code, reply.Data)
	}
}

func TestSetConfigApplies(t *testing.T) {
	r := newRig(t)

	reply := r.send(t, "setConfig", map[string]any{
		"face": map[string]any{"livenessVal": 42},
		"ui":   map[string]any{"brightness": 85},
	})
	if reply.Code != CodeOK {
		t.Fatalf("code = %s data = %v", reply.Code, reply.Data)
	}

	if v, _ := r.store.Get("face.livenessVal"); v != float64(42) {
		t.Fatalf("face.livenessVal = %v", v)
	}
	if v, _ := r.store.Get("ui.brightness"); v != float64(85) {
		t.Fatalf("ui.brightness = %v", v)
	}
}

func TestSetConfigReadOnlyNamesKeys(t *testing.T) {
	r := newRig(t)

	reply := r.send(t, "setConfig", map[string]any{
		"base": map[string]any{"appVersion": "9.9.9", "volume": 10},
		"sys":  map[string]any{"uuid": "forged-uuid-0001"},
	})
	if reply.Code != CodePartial {
		t.Fatalf("code = %s, want %s", reply.Code, CodePartial)
	}
	if reply.Data != "Configuration items are read-only and cannot be modified: base.appVersion, sys.uuid" {
		t.Fatalf("data = %v", reply.Data)
	}
	// The writable key in the same batch still applies.
	if v, _ := r.store.Get("base.volume"); v != float64(10) {
		t.Fatalf("base.volume = %v", v)
	}
}

func TestSetConfigValidationFailure(t *testing.T) {
	r := newRig(t)

	reply := r.send(t, "setConfig", map[string]any{
		"face": map[string]any{"livenessVal": 500},
	})
	if reply.Code != CodeError {
		t.Fatalf("code = %s, want %s", reply.Code, CodeError)
	}
	if reply.Data != "Configuration items failed to set: face.livenessVal" {
		t.Fatalf("data = %v", reply.Data)
	}
}

func TestSetConfigRejectsNonObject(t *testing.T) {
	r := newRig(t)

	reply := r.send(t, "setConfig", []any{"face.livenessVal"})
	if reply.Code != CodeError || reply.Data != "Parameter error: configuration data format is invalid" {
		t.Fatalf("code/data = %s/%v", reply.Code, reply.Data)
	}
}
