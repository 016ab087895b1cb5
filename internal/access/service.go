package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doorpoint/terminal-core/internal/infrastructure/logging"
)

// Deny reasons surfaced on Decision.Reason.
const (
	ReasonCredentialNotFound = "credential not found"
	ReasonNoPermissions      = "no permissions"
	ReasonNoActivePermission = "no permission active now"
	ReasonSystemError        = "system error"
)

// Decision is the outcome of an access check. Credential and
// Permission are attached when the decision path resolved them;
// a denial for an unknown credential carries neither.
type Decision struct {
	Granted    bool
	Result     int // ResultSuccess, ResultFail, or ResultDeny
	Reason     string
	UserID     string
	Credential *Credential
	Permission *Permission
}

// telemetrySink receives one measurement per recorded decision.
// Satisfied by the InfluxDB client; nil means telemetry is disabled.
type telemetrySink interface {
	WriteAccessEvent(door int, method string, result int, userID string)
}

// Service answers "may this credential or user pass door D right now"
// by combining credential lookup, permission aggregation, and the time
// evaluator, and persists each outcome to the audit trail.
type Service struct {
	credentials CredentialRepository
	permissions PermissionRepository
	records     AccessRecordRepository
	telemetry   telemetrySink
	logger      *logging.Logger
	now         func() time.Time
}

// NewService creates a decision service over the given repositories.
func NewService(
	credentials CredentialRepository,
	permissions PermissionRepository,
	records AccessRecordRepository,
	logger *logging.Logger,
) *Service {
	return &Service{
		credentials: credentials,
		permissions: permissions,
		records:     records,
		logger:      logger,
		now:         time.Now,
	}
}

// SetTelemetry attaches an optional measurement sink; Record forwards
// each decision to it after the durable write.
func (s *Service) SetTelemetry(sink telemetrySink) {
	s.telemetry = sink
}

// DecideByCredential looks up the active, non-expired credential for
// (credType, code) and delegates to the user-level decision. It never
// returns an error: lookup failures deny with "system error" and an
// unknown credential denies with "credential not found", because the
// caller is the loop that also drives relay and screen feedback.
func (s *Service) DecideByCredential(ctx context.Context, credType int, code string) Decision {
	cred, err := s.credentials.GetByTypeAndCode(ctx, credType, code)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return Decision{Result: ResultDeny, Reason: ReasonCredentialNotFound}
		}
		s.logger.Error("credential lookup failed", "type", credType, "error", err)
		return Decision{Result: ResultDeny, Reason: ReasonSystemError}
	}

	decision := s.DecideByUser(ctx, cred.UserID)
	decision.Credential = cred
	return decision
}

// DecideByUser evaluates all of a user's active permissions against
// the current instant and grants on the first that passes. Like
// DecideByCredential it never returns an error.
//
// The terminal controls a single door, so the decision does not filter
// permissions by their door field; it is stored and reported so the
// backend can reuse one permission set across multi-door sites.
func (s *Service) DecideByUser(ctx context.Context, userID string) Decision {
	perms, err := s.permissions.GetActiveByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("permission lookup failed", "user_id", userID, "error", err)
		return Decision{Result: ResultDeny, Reason: ReasonSystemError, UserID: userID}
	}
	if len(perms) == 0 {
		return Decision{Result: ResultDeny, Reason: ReasonNoPermissions, UserID: userID}
	}

	now := s.now()
	for i := range perms {
		if EvaluateTime(perms[i].TimeConfig(), now) {
			return Decision{
				Granted:    true,
				Result:     ResultSuccess,
				UserID:     userID,
				Permission: &perms[i],
			}
		}
	}
	return Decision{Result: ResultDeny, Reason: ReasonNoActivePermission, UserID: userID}
}

// Record persists the decision as an access record and mirrors it to
// telemetry when a sink is attached. The record write is the durable
// audit trail; the telemetry write is fire-and-forget.
func (s *Service) Record(ctx context.Context, door int, method string, decision Decision) error {
	rec := &AccessRecord{
		UserID:     decision.UserID,
		Door:       door,
		AccessTime: s.now().Unix(),
		Result:     decision.Result,
		Method:     method,
		Message:    decision.Reason,
	}
	if decision.Credential != nil {
		rec.CredentialID = decision.Credential.ID
		if rec.UserID == "" {
			rec.UserID = decision.Credential.UserID
		}
	}
	if decision.Permission != nil {
		rec.PermissionID = decision.Permission.ID
	}

	if rec.UserID == "" {
		// Nothing to attribute the record to; an unknown credential
		// leaves no audit row, matching the cascade rule that a record
		// without its user is meaningless.
		return nil
	}

	if err := s.records.Create(ctx, rec); err != nil {
		return fmt.Errorf("recording decision: %w", err)
	}

	if s.telemetry != nil {
		s.telemetry.WriteAccessEvent(door, method, decision.Result, rec.UserID)
	}
	return nil
}
