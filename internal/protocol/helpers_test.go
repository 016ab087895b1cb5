package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/doorpoint/terminal-core/internal/access"
	"github.com/doorpoint/terminal-core/internal/confstore"
	"github.com/doorpoint/terminal-core/internal/infrastructure/logging"
)

const testDeviceID = "3f8a2c917d4b4e52a6c05b9e12f7d830"

// capturePublisher records published messages for inspection.
type capturePublisher struct {
	topics   []string
	payloads [][]byte
}

func (p *capturePublisher) PublishJSON(topic string, payload []byte) error {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *capturePublisher) lastReply(t *testing.T) (topic string, reply Reply) {
	t.Helper()
	if len(p.payloads) == 0 {
		t.Fatal("no reply published")
	}
	topic = p.topics[len(p.topics)-1]
	if err := json.Unmarshal(p.payloads[len(p.payloads)-1], &reply); err != nil {
		t.Fatalf("decoding reply: %v", err)
	}
	return topic, reply
}

// memUsers is an in-memory access.UserRepository.
type memUsers struct {
	users []access.User
	next  int
}

func (m *memUsers) find(id string) int {
	for i := range m.users {
		if m.users[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *memUsers) Create(_ context.Context, user *access.User) error {
	if user.ID == "" {
		m.next++
		user.ID = fmt.Sprintf("generated%022d", m.next)
	} else if m.find(user.ID) >= 0 {
		return access.ErrIDExists
	}
	m.users = append(m.users, *user)
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*access.User, error) {
	if i := m.find(id); i >= 0 {
		u := m.users[i]
		return &u, nil
	}
	return nil, access.ErrUserNotFound
}

func (m *memUsers) Update(_ context.Context, user *access.User) error {
	if i := m.find(user.ID); i >= 0 {
		m.users[i] = *user
		return nil
	}
	return access.ErrUserNotFound
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	if i := m.find(id); i >= 0 {
		m.users = append(m.users[:i], m.users[i+1:]...)
		return nil
	}
	return access.ErrUserNotFound
}

func (m *memUsers) DeleteAll(_ context.Context) error {
	m.users = nil
	return nil
}

func (m *memUsers) List(_ context.Context, filter access.UserFilter) ([]access.User, int, error) {
	var matched []access.User
	for _, u := range m.users {
		if filter.Name != "" && !strings.Contains(u.Name, filter.Name) {
			continue
		}
		matched = append(matched, u)
	}
	return paginate(matched, filter.Page, filter.PageSize)
}

func (m *memUsers) Count(_ context.Context) (int, error) {
	return len(m.users), nil
}

// memCredentials is an in-memory access.CredentialRepository. Create
// enforces the user foreign key against its users sibling.
type memCredentials struct {
	users *memUsers
	creds []access.Credential
}

func (m *memCredentials) find(id string) int {
	for i := range m.creds {
		if m.creds[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *memCredentials) Create(_ context.Context, cred *access.Credential) error {
	if m.find(cred.ID) >= 0 {
		return access.ErrIDExists
	}
	if m.users.find(cred.UserID) < 0 {
		return access.ErrUserNotFound
	}
	m.creds = append(m.creds, *cred)
	return nil
}

func (m *memCredentials) GetByID(_ context.Context, id string) (*access.Credential, error) {
	if i := m.find(id); i >= 0 {
		c := m.creds[i]
		return &c, nil
	}
	return nil, access.ErrCredentialNotFound
}

func (m *memCredentials) GetByTypeAndCode(_ context.Context, credType int, code string) (*access.Credential, error) {
	for i := range m.creds {
		if m.creds[i].Type == credType && m.creds[i].Code == code {
			c := m.creds[i]
			return &c, nil
		}
	}
	return nil, access.ErrCredentialNotFound
}

func (m *memCredentials) GetByUserID(_ context.Context, userID string) ([]access.Credential, error) {
	var out []access.Credential
	for _, c := range m.creds {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCredentials) Delete(_ context.Context, id string) error {
	if i := m.find(id); i >= 0 {
		m.creds = append(m.creds[:i], m.creds[i+1:]...)
		return nil
	}
	return access.ErrCredentialNotFound
}

func (m *memCredentials) DeleteByUserID(_ context.Context, userID string) (int64, error) {
	var kept []access.Credential
	var removed int64
	for _, c := range m.creds {
		if c.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	m.creds = kept
	return removed, nil
}

func (m *memCredentials) DeleteAll(_ context.Context) error {
	m.creds = nil
	return nil
}

func (m *memCredentials) List(_ context.Context, filter access.CredentialFilter) ([]access.Credential, int, error) {
	var matched []access.Credential
	for _, c := range m.creds {
		if filter.ID != "" && c.ID != filter.ID {
			continue
		}
		if filter.UserID != "" && c.UserID != filter.UserID {
			continue
		}
		if filter.Type != nil && c.Type != *filter.Type {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		matched = append(matched, c)
	}
	return paginate(matched, filter.Page, filter.PageSize)
}

// memPermissions is an in-memory access.PermissionRepository.
type memPermissions struct {
	users *memUsers
	perms []access.Permission
}

func (m *memPermissions) find(id string) int {
	for i := range m.perms {
		if m.perms[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *memPermissions) Create(_ context.Context, perm *access.Permission) error {
	if m.find(perm.ID) >= 0 {
		return access.ErrIDExists
	}
	if m.users.find(perm.UserID) < 0 {
		return access.ErrUserNotFound
	}
	m.perms = append(m.perms, *perm)
	return nil
}

func (m *memPermissions) GetByID(_ context.Context, id string) (*access.Permission, error) {
	if i := m.find(id); i >= 0 {
		p := m.perms[i]
		return &p, nil
	}
	return nil, access.ErrPermissionNotFound
}

func (m *memPermissions) GetActiveByUserID(_ context.Context, userID string) ([]access.Permission, error) {
	var out []access.Permission
	for _, p := range m.perms {
		if p.UserID == userID && p.Status == access.StatusActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPermissions) Delete(_ context.Context, id string) error {
	if i := m.find(id); i >= 0 {
		m.perms = append(m.perms[:i], m.perms[i+1:]...)
		return nil
	}
	return access.ErrPermissionNotFound
}

func (m *memPermissions) DeleteByUserID(_ context.Context, userID string) (int64, error) {
	var kept []access.Permission
	var removed int64
	for _, p := range m.perms {
		if p.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	m.perms = kept
	return removed, nil
}

func (m *memPermissions) DeleteAll(_ context.Context) error {
	m.perms = nil
	return nil
}

func (m *memPermissions) List(_ context.Context, filter access.PermissionFilter) ([]access.Permission, int, error) {
	var matched []access.Permission
	for _, p := range m.perms {
		if filter.ID != "" && p.ID != filter.ID {
			continue
		}
		if filter.UserID != "" && p.UserID != filter.UserID {
			continue
		}
		if filter.Door != nil && p.Door != *filter.Door {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		matched = append(matched, p)
	}
	return paginate(matched, filter.Page, filter.PageSize)
}

func paginate[T any](items []T, page, size int) ([]T, int, error) {
	if size <= 0 {
		size = 20
	}
	total := len(items)
	start := page * size
	if start >= total {
		return []T{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return items[start:end], total, nil
}

// fakeController records control invocations.
type fakeController struct {
	calls []string
	err   error
}

func (c *fakeController) record(call string) error {
	c.calls = append(c.calls, call)
	return c.err
}

func (c *fakeController) Restart(context.Context) error      { return c.record("restart") }
func (c *fakeController) OpenDoor(context.Context) error     { return c.record("open") }
func (c *fakeController) FactoryReset(context.Context) error { return c.record("reset") }
func (c *fakeController) PlayAudio(_ context.Context, name string) error {
	return c.record("audio:" + name)
}
func (c *fakeController) ShowImage(_ context.Context, name string, timeout int) error {
	return c.record(fmt.Sprintf("image:%s:%d", name, timeout))
}
func (c *fakeController) ShowText(_ context.Context, text string, timeout int) error {
	return c.record(fmt.Sprintf("text:%s:%d", text, timeout))
}

// fakeUpgrader records upgrade invocations.
type fakeUpgrader struct {
	busy      bool
	calls     []string
	firmware  error
	resources error
}

func (u *fakeUpgrader) Busy() bool { return u.busy }

func (u *fakeUpgrader) Firmware(_ context.Context, url, md5 string) error {
	u.calls = append(u.calls, fmt.Sprintf("firmware:%s:%s", url, md5))
	return u.firmware
}

func (u *fakeUpgrader) Resource(_ context.Context, name string, mode int) error {
	u.calls = append(u.calls, fmt.Sprintf("resource:%s:%d", name, mode))
	return u.resources
}

// rig bundles a dispatcher with its fakes for handler tests.
type rig struct {
	dispatcher  *Dispatcher
	publisher   *capturePublisher
	users       *memUsers
	credentials *memCredentials
	permissions *memPermissions
	store       *confstore.Store
	controller  *fakeController
	upgrader    *fakeUpgrader
}

func newRig(t *testing.T) *rig {
	t.Helper()

	store, err := confstore.Load(filepath.Join(t.TempDir(), "config.json"), logging.Default())
	if err != nil {
		t.Fatalf("loading confstore: %v", err)
	}

	users := &memUsers{}
	r := &rig{
		publisher:   &capturePublisher{},
		users:       users,
		credentials: &memCredentials{users: users},
		permissions: &memPermissions{users: users},
		store:       store,
		controller:  &fakeController{},
		upgrader:    &fakeUpgrader{},
	}

	r.dispatcher = NewDispatcher(r.publisher, func() string { return testDeviceID }, logging.Default())
	if _, err := NewService(r.dispatcher, Deps{
		Users:       r.users,
		Credentials: r.credentials,
		Permissions: r.permissions,
		Store:       r.store,
		Controller:  r.controller,
		Upgrader:    r.upgrader,
		Logger:      logging.Default(),
	}); err != nil {
		t.Fatalf("building service: %v", err)
	}
	return r
}

// send delivers one command to the dispatcher the way the transport
// would and returns the published reply.
func (r *rig) send(t *testing.T, command string, data any) Reply {
	t.Helper()

	req := map[string]any{
		"serialNo": "sn-1",
		"uuid":     "backend-uuid-000001",
		"time":     1767225600,
		"sign":     "",
	}
	if data != nil {
		req["data"] = data
	}
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("encoding request: %v", err)
	}

	topic := fmt.Sprintf("access_device/v2/cmd/%s/%s", testDeviceID, command)
	if err := r.dispatcher.HandleMessage(topic, payload); err != nil {
		t.Fatalf("dispatching %s: %v", command, err)
	}

	replyTopic, reply := r.publisher.lastReply(t)
	wantTopic := fmt.Sprintf("access_device/v2/cmd/%s_reply", command)
	if replyTopic != wantTopic {
		t.Fatalf("reply topic = %s, want %s", replyTopic, wantTopic)
	}
	return reply
}

// dataMap asserts the reply data is an object and returns it.
func dataMap(t *testing.T, reply Reply) map[string]any {
	t.Helper()
	m, ok := reply.Data.(map[string]any)
	if !ok {
		t.Fatalf("reply data = %T %v, want object", reply.Data, reply.Data)
	}
	return m
}
