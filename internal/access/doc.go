// Package access is the terminal's policy core: the persisted user,
// credential, permission, and access-record model, the time-permission
// evaluator, and the decision service that answers "may this credential
// open this door right now".
//
// # Data model
//
// Four SQLite tables back the package: ac_user, ac_credential,
// ac_permission, and ac_access_record. Credentials and permissions
// belong to a user and are removed with it (cascade); access records
// also cascade with their user, but keep NULL references to a deleted
// credential or permission so the audit trail survives re-provisioning.
//
// IDs are 32-character lowercase hex strings. The backend may supply
// its own IDs, so every create path probes for an existing row first
// and returns ErrIDExists on a collision instead of relying on the
// UNIQUE constraint error.
//
// # Decisions
//
// Service.DecideByCredential and Service.DecideByUser never return an
// error: storage failures, missing rows, and malformed time configs
// all degrade to a deny Decision with a reason string. A stuck error
// in the access path would block the loop that also drives relay and
// screen feedback, so denial is always the failure mode.
//
// The time-permission evaluator (EvaluateTime) is a pure function over
// a TimeConfig and an instant; see its documentation for the four
// window types.
package access
