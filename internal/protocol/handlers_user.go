package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/doorpoint/terminal-core/internal/access"
)

// insertUserRecord is one entry of the insertUser batch.
type insertUserRecord struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Extra map[string]any `json:"extra"`
}

func (s *Service) handleInsertUser(ctx context.Context, req *Request) (string, any) {
	var records []insertUserRecord
	if err := json.Unmarshal(req.Data, &records); err != nil || records == nil {
		return CodePartial, "Invalid data format: data field must be an array"
	}

	var errs []string
	for _, rec := range records {
		if rec.Name == "" {
			errs = append(errs, "User name cannot be empty")
			continue
		}

		user := &access.User{
			ID:     rec.ID,
			Name:   rec.Name,
			Status: access.StatusActive,
			Extra:  rec.Extra,
		}
		if err := s.users.Create(ctx, user); err != nil {
			s.logger.Warn("insertUser failed", "id", rec.ID, "error", err)
			errs = append(errs, fmt.Sprintf("Failed to add user %s: %s", rec.Name, userFacing(err)))
		}
	}

	if len(errs) > 0 {
		return CodePartial, "Some users failed to add: " + strings.Join(errs, "; ")
	}
	return CodeOK, nil
}

func (s *Service) handleDelUser(ctx context.Context, req *Request) (string, any) {
	var ids []string
	if err := json.Unmarshal(req.Data, &ids); err != nil || ids == nil {
		return CodePartial, "Invalid data format: data field must be an array"
	}

	var errs []string
	for _, id := range ids {
		if err := s.users.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Sprintf("User ID %s does not exist or deletion failed", id))
		}
	}

	if len(errs) > 0 {
		return CodePartial, "Some users failed to delete: " + strings.Join(errs, "; ")
	}
	return CodeOK, nil
}

func (s *Service) handleClearUser(ctx context.Context, _ *Request) (string, any) {
	if err := s.users.DeleteAll(ctx); err != nil {
		s.logger.Error("clearUser failed", "error", err)
		return CodeError, "Internal server error: failed to clear users"
	}
	return CodeOK, nil
}

// getUserQuery filters the user query: by exact id, by name substring,
// or neither for a full listing.
type getUserQuery struct {
	pageParams
	ID   string `json:"id"`
	Name string `json:"name"`
}

// userEntry is the wire projection of a user in query replies.
type userEntry struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Extra map[string]any `json:"extra,omitempty"`
}

func (s *Service) handleGetUser(ctx context.Context, req *Request) (string, any) {
	// Absent data means an unfiltered first-page query.
	var query getUserQuery
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &query); err != nil {
			return CodePartial, "Invalid data format: data field must be an object"
		}
	}

	page, size, ok := query.resolve()
	if !ok {
		return CodePartial, sizeRangeError
	}

	var users []access.User
	var total int

	switch {
	case query.ID != "":
		user, err := s.users.GetByID(ctx, query.ID)
		switch {
		case err == nil:
			users, total = []access.User{*user}, 1
		case isNotFound(err):
			// Empty result, not an error.
		default:
			s.logger.Error("getUser by id failed", "error", err)
			return CodeError, "Internal server error: user query failed"
		}
	default:
		filter := access.UserFilter{Name: query.Name}
		filter.Page, filter.PageSize = page, size
		var err error
		users, total, err = s.users.List(ctx, filter)
		if err != nil {
			s.logger.Error("getUser list failed", "error", err)
			return CodeError, "Internal server error: user query failed"
		}
	}

	content := make([]userEntry, 0, len(users))
	for _, u := range users {
		content = append(content, userEntry{ID: u.ID, Name: u.Name, Extra: u.Extra})
	}
	return CodeOK, newPageReply(page, size, total, len(content), content)
}

// userFacing strips internal prefixes from repository errors before
// they go on the wire.
func userFacing(err error) string {
	return strings.TrimPrefix(err.Error(), "access: ")
}

func isNotFound(err error) bool {
	return errors.Is(err, access.ErrUserNotFound) ||
		errors.Is(err, access.ErrCredentialNotFound) ||
		errors.Is(err, access.ErrPermissionNotFound) ||
		errors.Is(err, access.ErrRecordNotFound)
}
