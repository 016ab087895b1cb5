package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/doorpoint/terminal-core/internal/upgrade"
)

// Upgrade types. 0 replaces the firmware archive; 10 adds or removes a
// user resource (audio clip, image).
const (
	UpgradeTypeFirmware = 0
	UpgradeTypeResource = 10
)

const busyMessage = "Device is currently upgrading, please try again later"

// upgradeRequest is the upgradeFirmware command payload.
type upgradeRequest struct {
	Type  *int   `json:"type"`
	URL   string `json:"url"`
	MD5   string `json:"md5"`
	Extra *struct {
		Name string `json:"name"`
		Mode *int   `json:"mode"`
	} `json:"extra"`
}

func (s *Service) handleUpgradeFirmware(ctx context.Context, req *Request) (string, any) {
	// Reject before parsing: a busy device answers the same way no
	// matter what the request carries.
	if s.upgrader.Busy() {
		return CodeError, busyMessage
	}

	var up upgradeRequest
	if err := json.Unmarshal(req.Data, &up); err != nil {
		return CodeError, "Parameter error: upgrade data format is invalid"
	}
	if up.Type == nil {
		return CodeError, "Parameter error: type field is required"
	}

	switch *up.Type {
	case UpgradeTypeFirmware:
		return s.upgradeFirmware(ctx, up)
	case UpgradeTypeResource:
		return s.upgradeResource(ctx, up)
	default:
		return CodeError, "Invalid upgrade type: must be 0 (firmware) or 10 (user resource)"
	}
}

func (s *Service) upgradeFirmware(ctx context.Context, up upgradeRequest) (string, any) {
	switch {
	case up.URL == "":
		return CodeError, "Parameter error: url field is required for firmware upgrade"
	case len(up.URL) > 2048:
		return CodeError, "Parameter error: url too long (max 2048 characters)"
	case up.MD5 == "":
		return CodeError, "Parameter error: md5 field is required for firmware upgrade"
	case len(up.MD5) > 128:
		return CodeError, "Parameter error: md5 too long (max 128 characters)"
	}

	if err := s.upgrader.Firmware(ctx, up.URL, up.MD5); err != nil {
		var verr *upgrade.VerifyError
		switch {
		case errors.Is(err, upgrade.ErrBusy):
			return CodeError, busyMessage
		case errors.As(err, &verr):
			return CodeError, fmt.Sprintf("MD5 verification failed, file MD5: %s, expected MD5: %s", verr.Got, verr.Want)
		default:
			s.logger.Error("firmware upgrade failed", "error", err)
			return CodeError, fmt.Sprintf("Firmware upgrade failed: %v", err)
		}
	}
	// The success reply races the scheduled reboot; the coordinator's
	// delay exists so this publish wins.
	return CodeOK, nil
}

func (s *Service) upgradeResource(ctx context.Context, up upgradeRequest) (string, any) {
	switch {
	case up.Extra == nil:
		return CodeError, "Parameter error: extra field is required for user resource upgrade"
	case up.Extra.Name == "":
		return CodeError, "Parameter error: name field is required for user resource upgrade"
	case len(up.Extra.Name) > maxResourceNameLen:
		return CodeError, "Parameter error: name too long (max 64 characters)"
	case up.Extra.Mode == nil:
		return CodeError, "Parameter error: mode field is required for user resource upgrade"
	case *up.Extra.Mode != upgrade.ResourceModeRemove && *up.Extra.Mode != upgrade.ResourceModeAdd:
		return CodeError, "Invalid resource mode: must be 0 (delete) or 1 (add)"
	}

	if err := s.upgrader.Resource(ctx, up.Extra.Name, *up.Extra.Mode); err != nil {
		if errors.Is(err, upgrade.ErrBusy) {
			return CodeError, busyMessage
		}
		s.logger.Error("resource upgrade failed", "name", up.Extra.Name, "error", err)
		return CodeError, fmt.Sprintf("Resource upgrade failed: %v", err)
	}
	return CodeOK, nil
}
