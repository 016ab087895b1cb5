package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/doorpoint/terminal-core/internal/access"
)

// timeSpec is the wire form of a permission's validity window.
//
//   - Type selects the evaluation mode (0 always, 1 range, 2 daily,
//     3 weekly).
//   - Range bounds the whole grant with absolute unix timestamps.
//   - BeginTime/EndTime are the daily window in seconds since local
//     midnight (type 2).
//   - WeekPeriod maps weekday "1" (Monday) through "7" (Sunday) to
//     "HH:MM-HH:MM" slots joined by "|" (type 3).
type timeSpec struct {
	Type       *int              `json:"type"`
	Range      *timeRangeSpec    `json:"range"`
	BeginTime  *int64            `json:"beginTime"`
	EndTime    *int64            `json:"endTime"`
	WeekPeriod map[string]string `json:"weekPeriodTime"`
}

type timeRangeSpec struct {
	BeginTime int64 `json:"beginTime"`
	EndTime   int64 `json:"endTime"`
}

// insertPermissionRecord is one entry of the insertPermission batch.
// Door is optional; a terminal guarding a single door defaults to 1.
type insertPermissionRecord struct {
	PermissionID string         `json:"permissionId"`
	UserID       string         `json:"userId"`
	Door         *int           `json:"door"`
	Time         *timeSpec      `json:"time"`
	Extra        map[string]any `json:"extra"`
}

func (s *Service) handleInsertPermission(ctx context.Context, req *Request) (string, any) {
	var records []insertPermissionRecord
	if err := json.Unmarshal(req.Data, &records); err != nil || records == nil {
		return CodePartial, "Invalid data format: data field must be an array"
	}
	if len(records) > maxBatchSize {
		return CodePartial, "Too many permissions: maximum 100 per request"
	}

	var errs []string
	for _, rec := range records {
		switch {
		case rec.PermissionID == "" || rec.UserID == "" || rec.Time == nil:
			errs = append(errs, "Missing required fields: permissionId, userId, time")
		case len(rec.PermissionID) < 6 || len(rec.PermissionID) > 128:
			errs = append(errs, "Invalid permissionId length: must be 6-128 characters")
		case len(rec.UserID) < 6 || len(rec.UserID) > 128:
			errs = append(errs, "Invalid userId length: must be 6-128 characters")
		case rec.Time.Type == nil:
			errs = append(errs, "Missing required time field: type")
		default:
			perm := permissionFromWire(rec)
			if err := s.permissions.Create(ctx, perm); err != nil {
				s.logger.Warn("insertPermission failed", "permissionId", rec.PermissionID, "error", err)
				errs = append(errs, fmt.Sprintf("Failed to add permission %s: %s", rec.PermissionID, userFacing(err)))
			}
		}
	}

	if len(errs) > 0 {
		return CodePartial, "Some permissions failed to add: " + strings.Join(errs, "; ")
	}
	return CodeOK, nil
}

// permissionFromWire maps a validated wire record to the stored form:
// time.range holds the absolute grant bounds, the top-level
// beginTime/endTime carry the daily repeat window.
func permissionFromWire(rec insertPermissionRecord) *access.Permission {
	door := 1
	if rec.Door != nil {
		door = *rec.Door
	}

	perm := &access.Permission{
		ID:          rec.PermissionID,
		UserID:      rec.UserID,
		Door:        door,
		TimeType:    *rec.Time.Type,
		RepeatBegin: rec.Time.BeginTime,
		RepeatEnd:   rec.Time.EndTime,
		WeekPeriod:  rec.Time.WeekPeriod,
		Status:      access.StatusActive,
		Extra:       rec.Extra,
	}
	if rec.Time.Range != nil {
		perm.BeginTime = rec.Time.Range.BeginTime
		perm.EndTime = rec.Time.Range.EndTime
	}
	return perm
}

// delPermissionQuery selects permissions to delete: individual IDs
// and/or every permission of the listed users.
type delPermissionQuery struct {
	PermissionIDs []string `json:"permissionIds"`
	UserIDs       []string `json:"userIds"`
}

func (s *Service) handleDelPermission(ctx context.Context, req *Request) (string, any) {
	var query delPermissionQuery
	if err := json.Unmarshal(req.Data, &query); err != nil {
		return CodeError, "Parameter error: data field must be an object"
	}
	if len(query.PermissionIDs) == 0 && len(query.UserIDs) == 0 {
		return CodeError, "Invalid parameter: at least one of userIds or permissionIds must be provided"
	}

	var errs []string
	for _, permID := range query.PermissionIDs {
		if err := s.permissions.Delete(ctx, permID); err != nil {
			errs = append(errs, fmt.Sprintf("Failed to delete permission %s: %s", permID, userFacing(err)))
		}
	}
	for _, userID := range query.UserIDs {
		if _, err := s.permissions.DeleteByUserID(ctx, userID); err != nil {
			errs = append(errs, fmt.Sprintf("Failed to delete permissions for user %s: %s", userID, userFacing(err)))
		}
	}

	if len(errs) > 0 {
		return CodePartial, "Some permissions failed to delete: " + strings.Join(errs, "; ")
	}
	return CodeOK, nil
}

func (s *Service) handleClearPermission(ctx context.Context, _ *Request) (string, any) {
	if err := s.permissions.DeleteAll(ctx); err != nil {
		s.logger.Error("clearPermission failed", "error", err)
		return CodeError, "Internal server error: failed to clear permissions"
	}
	return CodeOK, nil
}

// getPermissionQuery filters the permission query.
type getPermissionQuery struct {
	pageParams
	PermissionID string `json:"permissionId"`
	UserID       string `json:"userId"`
}

// permissionEntry is the wire projection of a stored permission,
// reconstructing the time object insertPermission accepted.
type permissionEntry struct {
	PermissionID string         `json:"permissionId"`
	UserID       string         `json:"userId"`
	Door         int            `json:"door"`
	Time         timeSpec       `json:"time"`
	Extra        map[string]any `json:"extra,omitempty"`
}

func (s *Service) handleGetPermission(ctx context.Context, req *Request) (string, any) {
	var query getPermissionQuery
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &query); err != nil {
			return CodeError, "Parameter error: data field must be an object"
		}
	}

	page, size, ok := query.resolve()
	if !ok {
		return CodePartial, sizeRangeError
	}

	status := access.StatusActive
	filter := access.PermissionFilter{
		ID:     query.PermissionID,
		UserID: query.UserID,
		Status: &status,
	}
	filter.Page, filter.PageSize = page, size

	perms, total, err := s.permissions.List(ctx, filter)
	if err != nil {
		s.logger.Error("getPermission list failed", "error", err)
		return CodeError, "Internal server error: permission query failed"
	}

	content := make([]permissionEntry, 0, len(perms))
	for i := range perms {
		content = append(content, permissionToWire(&perms[i]))
	}
	return CodeOK, newPageReply(page, size, total, len(content), content)
}

func permissionToWire(p *access.Permission) permissionEntry {
	timeType := p.TimeType
	return permissionEntry{
		PermissionID: p.ID,
		UserID:       p.UserID,
		Door:         p.Door,
		Time: timeSpec{
			Type:       &timeType,
			Range:      &timeRangeSpec{BeginTime: p.BeginTime, EndTime: p.EndTime},
			BeginTime:  p.RepeatBegin,
			EndTime:    p.RepeatEnd,
			WeekPeriod: p.WeekPeriod,
		},
		Extra: p.Extra,
	}
}
