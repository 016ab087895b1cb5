package protocol

import (
	"context"
	"encoding/json"
)

// Control command numbers. 2 and 3 are reserved by the protocol and
// rejected.
const (
	ControlRestart      = 0
	ControlOpenDoor     = 1
	ControlFactoryReset = 4
	ControlPlayAudio    = 5
	ControlShowImage    = 6
	ControlShowText     = 7
)

const maxResourceNameLen = 64
const maxDisplayTimeout = 86400

// controlRequest is the control command payload. The extra fields used
// depend on the command number.
type controlRequest struct {
	Command *int `json:"command"`
	Extra   struct {
		Wav          string `json:"wav"`
		Image        string `json:"image"`
		ImageTimeout *int   `json:"imageTimeout"`
		Txt          string `json:"txt"`
		TxtTimeout   *int   `json:"txtTimeout"`
	} `json:"extra"`
}

func (s *Service) handleControl(ctx context.Context, req *Request) (string, any) {
	var ctl controlRequest
	if err := json.Unmarshal(req.Data, &ctl); err != nil {
		return CodeError, "Parameter error: control data format is invalid"
	}
	if ctl.Command == nil {
		return CodeError, "Invalid command: command must be 0, 1, 4, 5, 6, or 7"
	}

	var err error
	switch *ctl.Command {
	case ControlRestart:
		err = s.controller.Restart(ctx)
	case ControlOpenDoor:
		err = s.controller.OpenDoor(ctx)
	case ControlFactoryReset:
		err = s.controller.FactoryReset(ctx)
	case ControlPlayAudio:
		if ctl.Extra.Wav == "" {
			return CodeError, "Invalid audio resource name"
		}
		if len(ctl.Extra.Wav) > maxResourceNameLen {
			return CodeError, "Audio resource name too long (max 64 characters)"
		}
		err = s.controller.PlayAudio(ctx, ctl.Extra.Wav)
	case ControlShowImage:
		if ctl.Extra.Image == "" {
			return CodeError, "Invalid image resource name"
		}
		if len(ctl.Extra.Image) > maxResourceNameLen {
			return CodeError, "Image resource name too long (max 64 characters)"
		}
		timeout, ok := resolveTimeout(ctl.Extra.ImageTimeout)
		if !ok {
			return CodeError, "Invalid timeout value (must be 0-86400 seconds)"
		}
		err = s.controller.ShowImage(ctx, ctl.Extra.Image, timeout)
	case ControlShowText:
		if ctl.Extra.Txt == "" {
			return CodeError, "Invalid text content"
		}
		if len(ctl.Extra.Txt) > maxResourceNameLen {
			return CodeError, "Text content too long (max 64 characters)"
		}
		timeout, ok := resolveTimeout(ctl.Extra.TxtTimeout)
		if !ok {
			return CodeError, "Invalid timeout value (must be 0-86400 seconds)"
		}
		err = s.controller.ShowText(ctx, ctl.Extra.Txt, timeout)
	default:
		return CodeError, "Invalid command: command must be 0, 1, 4, 5, 6, or 7"
	}

	if err != nil {
		s.logger.Error("control command failed", "command", *ctl.Command, "error", err)
		return CodeError, "Command execution failed"
	}
	return CodeOK, nil
}

// resolveTimeout validates an optional display timeout. Absent means
// "use the driver default", reported as zero.
func resolveTimeout(t *int) (int, bool) {
	if t == nil {
		return 0, true
	}
	if *t < 0 || *t > maxDisplayTimeout {
		return 0, false
	}
	return *t, true
}
