package protocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/doorpoint/terminal-core/internal/upgrade"
)

var errFake = errors.New("fake failure")

func TestUpgradeRejectedWhileBusy(t *testing.T) {
	r := newRig(t)
	r.upgrader.busy = true

	// A busy device answers busy even for a request it would
	// otherwise reject as malformed.
	reply := r.send(t, "upgradeFirmware", map[string]any{})
	if reply.Code != CodeError {
		t.Fatalf("code = %s, want %s", reply.Code, CodeError)
	}
	if reply.Data != "Device is currently upgrading, please try again later" {
		t.Fatalf("data = %v", reply.Data)
	}
	if len(r.upgrader.calls) != 0 {
		t.Fatalf("upgrader invoked: %v", r.upgrader.calls)
	}
}

func TestUpgradeFirmwareValidation(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{
			"missing type",
			map[string]any{"url": "http://host/fw.zip", "md5": "abc"},
			"Parameter error: type field is required",
		},
		{
			"bad type",
			map[string]any{"type": 5},
			"Invalid upgrade type: must be 0 (firmware) or 10 (user resource)",
		},
		{
			"missing url",
			map[string]any{"type": 0, "md5": "abc"},
			"Parameter error: url field is required for firmware upgrade",
		},
		{
			"url too long",
			map[string]any{"type": 0, "url": "http://" + strings.Repeat("a", 2048), "md5": "abc"},
			"Parameter error: url too long (max 2048 characters)",
		},
		{
			"missing md5",
			map[string]any{"type": 0, "url": "http://host/fw.zip"},
			"Parameter error: md5 field is required for firmware upgrade",
		},
		{
			"md5 too long",
			map[string]any{"type": 0, "url": "http://host/fw.zip", "md5": strings.Repeat("f", 129)},
			"Parameter error: md5 too long (max 128 characters)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			reply := r.send(t, "upgradeFirmware", tt.data)
			if reply.Code != CodeError {
				t.Fatalf("code = %s, want %s", reply.Code, CodeError)
			}
			if reply.Data != tt.want {
				t.Fatalf("data = %v, want %s", reply.Data, tt.want)
			}
			if len(r.upgrader.calls) != 0 {
				t.Fatalf("upgrader invoked: %v", r.upgrader.calls)
			}
		})
	}
}

func TestUpgradeFirmwareSuccess(t *testing.T) {
	r := newRig(t)

	reply := r.send(t, "upgradeFirmware", map[string]any{
		"type": 0,
		"url":  "http://host/fw.zip",
		"md5":  "d41d8cd98f00b204e9800998ecf8427e",
	})
	if reply.Code != CodeOK {
		t.Fatalf("code = %s data = %v", reply.Code, reply.Data)
	}
	want := "firmware:http://host/fw.zip:d41d8cd98f00b204e9800998ecf8427e"
	if len(r.upgrader.calls) != 1 || r.upgrader.calls[0] != want {
		t.Fatalf("calls = %v", r.upgrader.calls)
	}
}

func TestUpgradeFirmwareChecksumMismatch(t *testing.T) {
	r := newRig(t)
	r.upgrader.firmware = &upgrade.VerifyError{Got: "aaaa", Want: "bbbb"}

	reply := r.send(t, "upgradeFirmware", map[string]any{
		"type": 0, "url": "http://host/fw.zip", "md5": "bbbb",
	})
	if reply.Code != CodeError {
		t.Fatalf("code = %s, want %s", reply.Code, CodeError)
	}
	if reply.Data != "MD5 verification failed, file MD5: aaaa, expected MD5: bbbb" {
		t.Fatalf("data = %v", reply.Data)
	}
}

func TestUpgradeFirmwareLostRace(t *testing.T) {
	r := newRig(t)
	r.upgrader.firmware = upgrade.ErrBusy

	reply := r.send(t, "upgradeFirmware", map[string]any{
		"type": 0, "url": "http://host/fw.zip", "md5": "abc",
	})
	if reply.Code != CodeError || reply.Data != "Device is currently upgrading, please try again later" {
		t.Fatalf("code/data = %s/%v", reply.Code, reply.Data)
	}
}

func TestUpgradeResourceValidation(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{
			"missing extra",
			map[string]any{"type": 10},
			"Parameter error: extra field is required for user resource upgrade",
		},
		{
			"missing name",
			map[string]any{"type": 10, "extra": map[string]any{"mode": 1}},
			"Parameter error: name field is required for user resource upgrade",
		},
		{
			"name too long",
			map[string]any{"type": 10, "extra": map[string]any{"name": strings.Repeat("a", 65), "mode": 1}},
			"Parameter error: name too long (max 64 characters)",
		},
		{
			"missing mode",
			map[string]any{"type": 10, "extra": map[string]any{"name": "chime.wav"}},
			"Parameter error: mode field is required for user resource upgrade",
		},
		{
			"bad mode",
			map[string]any{"type": 10, "extra": map[string]any{"name": "chime.wav", "mode": 2}},
			"Invalid resource mode: must be 0 (delete) or 1 (add)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			reply := r.send(t, "upgradeFirmware", tt.data)
			if reply.Code != CodeError {
				t.Fatalf("code = %s, want %s", reply.Code, CodeError)
			}
			if reply.Data != tt.want {
				t.Fatalf("data = %v, want %s", reply.Data, tt.want)
			}
		})
	}
}

func TestUpgradeResourceAddAndRemove(t *testing.T) {
	r := newRig(t)

	reply := r.send(t, "upgradeFirmware", map[string]any{
		"type": 10, "extra": map[string]any{"name": "chime.wav", "mode": 1},
	})
	if reply.Code != CodeOK {
		t.Fatalf("add: code = %s data = %v", reply.Code, reply.Data)
	}

	reply = r.send(t, "upgradeFirmware", map[string]any{
		"type": 10, "extra": map[string]any{"name": "chime.wav", "mode": 0},
	})
	if reply.Code != CodeOK {
		t.Fatalf("remove: code = %s data = %v", reply.Code, reply.Data)
	}

	want := []string{"resource:chime.wav:1", "resource:chime.wav:0"}
	if len(r.upgrader.calls) != 2 || r.upgrader.calls[0] != want[0] || r.upgrader.calls[1] != want[1] {
		t.Fatalf("calls = %v, want %v", r.upgrader.calls, want)
	}
}
