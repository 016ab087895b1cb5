package access

import (
	"errors"
	"time"
)

// Credential types as used on the wire and in ac_credential.type.
const (
	CredentialTypePassthrough = 100 // pass-through QR code
	CredentialTypeStaticCode  = 101 // static QR code
	CredentialTypeDynamicCode = 103 // dynamic QR code
	CredentialTypeCard        = 200
	CredentialTypeFace        = 300
	CredentialTypePassword    = 400
	CredentialTypeBluetooth   = 600
	CredentialTypeButton      = 800
)

// Row status values shared by users, credentials, and permissions.
const (
	StatusDeleted  = -1
	StatusDisabled = 0
	StatusActive   = 1
)

// Access decision results as stored in ac_access_record.result.
const (
	ResultDeny    = -1
	ResultFail    = 0
	ResultSuccess = 1
)

// Permission time window types.
const (
	TimeTypeAlways = 0 // no time restriction
	TimeTypeRange  = 1 // valid within one absolute range
	TimeTypeDaily  = 2 // daily window inside an absolute range
	TimeTypeWeekly = 3 // per-weekday slots inside an absolute range
)

// Sentinel errors returned by the repositories.
var (
	ErrIDExists           = errors.New("access: id already exists")
	ErrUserNotFound       = errors.New("access: user not found")
	ErrCredentialNotFound = errors.New("access: credential not found")
	ErrPermissionNotFound = errors.New("access: permission not found")
	ErrRecordNotFound     = errors.New("access: access record not found")
)

// User is a person known to the terminal.
type User struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Phone      string         `json:"phone,omitempty"`
	Email      string         `json:"email,omitempty"`
	Department string         `json:"department,omitempty"`
	Position   string         `json:"position,omitempty"`
	Status     int            `json:"status"`
	Extra      map[string]any `json:"extra,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Credential is a presentable proof of identity bound to a user.
// ExpiresAt is a Unix timestamp; zero means the credential never
// expires.
type Credential struct {
	ID        string         `json:"keyId"`
	UserID    string         `json:"userId"`
	Type      int            `json:"type"`
	Code      string         `json:"code"`
	Name      string         `json:"name,omitempty"`
	Status    int            `json:"status"`
	ExpiresAt int64          `json:"expires_at,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Permission authorises a user to pass a door within a time window.
// BeginTime/EndTime bound the whole grant (Unix timestamps, types
// 1-3); RepeatBegin/RepeatEnd are seconds since local midnight for the
// daily window (type 2); WeekPeriod maps weekday "1" (Monday) through
// "7" (Sunday) to "HH:MM-HH:MM" slots joined by "|" (type 3).
type Permission struct {
	ID          string            `json:"permissionId"`
	UserID      string            `json:"userId"`
	Door        int               `json:"door"`
	TimeType    int               `json:"timeType"`
	BeginTime   int64             `json:"beginTime"`
	EndTime     int64             `json:"endTime"`
	RepeatBegin *int64            `json:"repeatBeginTime,omitempty"`
	RepeatEnd   *int64            `json:"repeatEndTime,omitempty"`
	WeekPeriod  map[string]string `json:"weekPeriodTime,omitempty"`
	Status      int               `json:"status"`
	Extra       map[string]any    `json:"extra,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// TimeConfig builds the evaluator input for this permission.
func (p *Permission) TimeConfig() TimeConfig {
	tc := TimeConfig{Type: p.TimeType}
	if p.TimeType != TimeTypeAlways {
		tc.Range = &TimeRange{Begin: p.BeginTime, End: p.EndTime}
	}
	tc.DailyBegin = p.RepeatBegin
	tc.DailyEnd = p.RepeatEnd
	tc.WeekPeriod = p.WeekPeriod
	return tc
}

// AccessRecord is one immutable audit entry per decision. CredentialID
// and PermissionID are empty when the decision had none (button press,
// denial); AccessTime is a Unix timestamp.
type AccessRecord struct {
	ID           string         `json:"id"`
	CredentialID string         `json:"credentialId,omitempty"`
	PermissionID string         `json:"permissionId,omitempty"`
	UserID       string         `json:"userId"`
	Door         int            `json:"door"`
	AccessTime   int64          `json:"accessTime"`
	Result       int            `json:"result"`
	Method       string         `json:"method,omitempty"`
	Message      string         `json:"message,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
