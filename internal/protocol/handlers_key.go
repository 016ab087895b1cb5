package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/doorpoint/terminal-core/internal/access"
)

const maxBatchSize = 100

// insertKeyRecord is one entry of the insertKey batch. Type is a
// pointer so an absent field is distinguishable from zero.
type insertKeyRecord struct {
	KeyID     string         `json:"keyId"`
	UserID    string         `json:"userId"`
	Type      *int           `json:"type"`
	Code      string         `json:"code"`
	ExpiresAt int64          `json:"expires_at"`
	Extra     map[string]any `json:"extra"`
}

func (s *Service) handleInsertKey(ctx context.Context, req *Request) (string, any) {
	var records []insertKeyRecord
	if err := json.Unmarshal(req.Data, &records); err != nil || records == nil {
		return CodePartial, "Invalid data format: data field must be an array"
	}
	if len(records) > maxBatchSize {
		return CodePartial, "Too many credentials: maximum 100 per request"
	}

	var errs []string
	for _, rec := range records {
		switch {
		case rec.KeyID == "" || rec.UserID == "" || rec.Type == nil || rec.Code == "":
			errs = append(errs, "Missing required fields: keyId, userId, type, code")
		case len(rec.KeyID) < 6 || len(rec.KeyID) > 128:
			errs = append(errs, "Invalid keyId length: must be 6-128 characters")
		case len(rec.UserID) < 6 || len(rec.UserID) > 128:
			errs = append(errs, "Invalid userId length: must be 6-128 characters")
		case len(rec.Code) > 2048:
			errs = append(errs, "Invalid code length: must be 0-2048 characters")
		default:
			cred := &access.Credential{
				ID:        rec.KeyID,
				UserID:    rec.UserID,
				Type:      *rec.Type,
				Code:      rec.Code,
				ExpiresAt: rec.ExpiresAt,
				Status:    access.StatusActive,
				Extra:     rec.Extra,
			}
			if err := s.credentials.Create(ctx, cred); err != nil {
				s.logger.Warn("insertKey failed", "keyId", rec.KeyID, "error", err)
				errs = append(errs, fmt.Sprintf("Failed to add credential %s: %s", rec.KeyID, userFacing(err)))
			}
		}
	}

	if len(errs) > 0 {
		return CodePartial, "Some credentials failed to add: " + strings.Join(errs, "; ")
	}
	return CodeOK, nil
}

// delKeyQuery selects credentials to delete: individual credential IDs
// and/or every credential of the listed users.
type delKeyQuery struct {
	KeyIDs  []string `json:"keyIds"`
	UserIDs []string `json:"userIds"`
}

func (s *Service) handleDelKey(ctx context.Context, req *Request) (string, any) {
	var query delKeyQuery
	if err := json.Unmarshal(req.Data, &query); err != nil {
		return CodeError, "Parameter error: data field must be an object"
	}
	if len(query.KeyIDs) == 0 && len(query.UserIDs) == 0 {
		return CodeError, "Invalid parameter: at least one of keyIds or userIds must be provided"
	}

	var errs []string
	for _, keyID := range query.KeyIDs {
		if err := s.credentials.Delete(ctx, keyID); err != nil {
			errs = append(errs, fmt.Sprintf("Failed to delete credential %s: %s", keyID, userFacing(err)))
		}
	}
	for _, userID := range query.UserIDs {
		if _, err := s.credentials.DeleteByUserID(ctx, userID); err != nil {
			errs = append(errs, fmt.Sprintf("Failed to delete credentials for user %s: %s", userID, userFacing(err)))
		}
	}

	if len(errs) > 0 {
		return CodePartial, "Some credentials failed to delete: " + strings.Join(errs, "; ")
	}
	return CodeOK, nil
}

func (s *Service) handleClearKey(ctx context.Context, _ *Request) (string, any) {
	if err := s.credentials.DeleteAll(ctx); err != nil {
		s.logger.Error("clearKey failed", "error", err)
		return CodeError, "Internal server error: failed to clear credentials"
	}
	return CodeOK, nil
}

// getKeyQuery filters the credential query.
type getKeyQuery struct {
	pageParams
	KeyID  string `json:"keyId"`
	UserID string `json:"userId"`
	Type   *int   `json:"type"`
}

func (s *Service) handleGetKey(ctx context.Context, req *Request) (string, any) {
	var query getKeyQuery
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
	filter := access.CredentialFilter{
		ID:     query.KeyID,
		UserID: query.UserID,
		Type:   query.Type,
		Status: &status,
	}
	filter.Page, filter.PageSize = page, size

	creds, total, err := s.credentials.List(ctx, filter)
	if err != nil {
		s.logger.Error("getKey list failed", "error", err)
		return CodeError, "Internal server error: credential query failed"
	}

	// Credential's JSON tags already match the wire format (keyId,
	// userId, expires_at, ...), so rows marshal directly.
	return CodeOK, newPageReply(page, size, total, len(creds), creds)
}
