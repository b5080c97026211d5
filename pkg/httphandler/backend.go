package httphandler

import (
	"crypto/rand"
	"slices"
	"sync"
	"time"

	// Packages
	log "github.com/charmbracelet/log"
	aitemplate "github.com/mutablelogic/go-aitemplate"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	stream "github.com/mutablelogic/go-aitemplate/pkg/stream"
	bcrypt "golang.org/x/crypto/bcrypt"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Backend is an in-memory chat backend. Models echo the message back, and
// tools return canned output.
type Backend struct {
	sync.RWMutex

	// Script replaces the frames of every stream when set
	Script Script

	models        []*model
	tools         []*tool
	skills        []*skill
	conversations map[string][]schema.MessageInfo
	order         []string
	users         map[string]*user
	revoked       map[string]time.Time

	auth       bool
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	delay      time.Duration
	logger     *log.Logger
}

// Script returns the raw frames to send for a stream request
type Script func(schema.StreamRequest) []stream.Frame

// BackendOpt configures a backend
type BackendOpt func(*Backend) error

type model struct {
	schema.ModelAdminInfo
	order int
}

type tool struct {
	schema.ToolInfo
	output string
}

type skill struct {
	schema.SkillInfo
	content string
}

type user struct {
	schema.UserInfo
	hash []byte
}

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	EchoModel = "local-echo"
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"

	defaultAccessTTL  = 2 * time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewBackend returns a backend with the echo model and two read-only tools,
// then applies the options
func NewBackend(opts ...BackendOpt) (*Backend, error) {
	b := &Backend{
		conversations: make(map[string][]schema.MessageInfo),
		users:         make(map[string]*user),
		revoked:       make(map[string]time.Time),
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
	}
	b.models = append(b.models, &model{schema.ModelAdminInfo{
		ModelID:      EchoModel,
		Provider:     "local",
		DisplayName:  EchoModel,
		Enabled:      true,
		Source:       schema.SourceBuiltin,
		Capabilities: &schema.CapabilitySet{Chat: true},
		Health:       schema.HealthUp,
	}, 0})
	b.tools = append(b.tools,
		&tool{ToolInfo: schema.ToolInfo{ToolName: "weather.query", RiskLevel: schema.RiskRead}, output: "Mock weather for %s: sunny, 26C"},
		&tool{ToolInfo: schema.ToolInfo{ToolName: "mcp.time.now", RiskLevel: schema.RiskRead}},
	)
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	// Random signing key unless one was set
	if len(b.key) == 0 {
		b.key = make([]byte, 32)
		if _, err := rand.Read(b.key); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// WithAuth requires a bearer token on all but the public endpoints
func WithAuth(enabled bool) BackendOpt {
	return func(b *Backend) error {
		b.auth = enabled
		return nil
	}
}

// WithSigningKey sets the HMAC key for issued tokens
func WithSigningKey(key []byte) BackendOpt {
	return func(b *Backend) error {
		if len(key) == 0 {
			return aitemplate.ErrBadParameter.With("empty signing key")
		}
		b.key = key
		return nil
	}
}

// WithTokenTTL sets the lifetime of issued access and refresh tokens
func WithTokenTTL(access, refresh time.Duration) BackendOpt {
	return func(b *Backend) error {
		if access <= 0 || refresh <= 0 {
			return aitemplate.ErrBadParameter.With("token lifetimes must be positive")
		}
		b.accessTTL, b.refreshTTL = access, refresh
		return nil
	}
}

// WithUser adds a user with a password and roles
func WithUser(username, password string, roles ...string) BackendOpt {
	return func(b *Backend) error {
		if username == "" || password == "" {
			return aitemplate.ErrBadParameter.With("username and password are required")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			return err
		}
		u := &user{hash: hash}
		u.ID = int64(len(b.users) + 1)
		u.Username = username
		u.Name = username
		u.Status = 1
		for _, role := range roles {
			u.Roles = append(u.Roles, schema.RoleInfo{RoleCode: role, RoleName: role})
		}
		b.users[username] = u
		return nil
	}
}

// WithModel adds or replaces an enabled builtin model
func WithModel(info schema.ModelInfo) BackendOpt {
	return func(b *Backend) error {
		if info.ModelID == "" {
			return aitemplate.ErrBadParameter.With("model id is required")
		}
		health := info.Health
		if health == "" {
			health = schema.HealthUp
		}
		b.putModel(&model{schema.ModelAdminInfo{
			ModelID:      info.ModelID,
			Provider:     info.Provider,
			DisplayName:  info.ModelID,
			Enabled:      true,
			Source:       schema.SourceBuiltin,
			Capabilities: info.Capabilities,
			Health:       health,
		}, 0})
		return nil
	}
}

// WithTool adds a tool. The output may contain a %s verb, which is
// replaced with the message.
func WithTool(info schema.ToolInfo, output string) BackendOpt {
	return func(b *Backend) error {
		if info.ToolName == "" {
			return aitemplate.ErrBadParameter.With("tool name is required")
		}
		b.tools = slices.DeleteFunc(b.tools, func(t *tool) bool { return t.ToolName == info.ToolName })
		b.tools = append(b.tools, &tool{ToolInfo: info, output: output})
		return nil
	}
}

// WithSkill adds a builtin skill
func WithSkill(name, version, content string) BackendOpt {
	return func(b *Backend) error {
		if name == "" {
			return aitemplate.ErrBadParameter.With("skill name is required")
		}
		b.putSkill(&skill{SkillInfo: schema.SkillInfo{
			SkillName: name,
			Version:   version,
			Source:    schema.SourceBuiltin,
		}, content: content})
		return nil
	}
}

// WithScript replaces the frames of every stream
func WithScript(script Script) BackendOpt {
	return func(b *Backend) error {
		b.Script = script
		return nil
	}
}

// WithFrameDelay pauses between stream frames
func WithFrameDelay(d time.Duration) BackendOpt {
	return func(b *Backend) error {
		b.delay = d
		return nil
	}
}

// WithLogger logs requests and stream progress
func WithLogger(logger *log.Logger) BackendOpt {
	return func(b *Backend) error {
		b.logger = logger
		return nil
	}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// AuthEnabled returns true if requests need a bearer token
func (b *Backend) AuthEnabled() bool {
	return b.auth
}

// Messages returns a copy of the messages of a conversation
func (b *Backend) Messages(conversation string) []schema.MessageInfo {
	b.RLock()
	defer b.RUnlock()
	return slices.Clone(b.conversations[conversation])
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// putModel adds or replaces a model, keeping models sorted by order and
// then by registration
func (b *Backend) putModel(m *model) {
	b.models = slices.DeleteFunc(b.models, func(existing *model) bool {
		return existing.ModelID == m.ModelID
	})
	b.models = append(b.models, m)
	slices.SortStableFunc(b.models, func(x, y *model) int {
		return x.order - y.order
	})
}

// putSkill adds or replaces a skill with the same name and version
func (b *Backend) putSkill(s *skill) {
	for i, existing := range b.skills {
		if existing.SkillName == s.SkillName && existing.Version == s.Version {
			b.skills[i] = s
			return
		}
	}
	b.skills = append(b.skills, s)
}

// model returns an enabled model, or nil
func (b *Backend) model(id string) *model {
	for _, m := range b.models {
		if m.ModelID == id && m.Enabled {
			return m
		}
	}
	return nil
}

// tool returns a tool by name, or nil
func (b *Backend) tool(name string) *tool {
	for _, t := range b.tools {
		if t.ToolName == name {
			return t
		}
	}
	return nil
}

// skill resolves a name@version reference. A reference without a version
// matches the first skill with the name.
func (b *Backend) skill(ref string) *skill {
	name, version := schema.ParseSkillRef(ref)
	for _, s := range b.skills {
		if s.SkillName == name && (version == "" || s.Version == version) {
			return s
		}
	}
	return nil
}

// appendMessages records messages, creating the conversation if needed
func (b *Backend) appendMessages(conversation string, messages ...schema.MessageInfo) {
	b.Lock()
	defer b.Unlock()
	if _, exists := b.conversations[conversation]; !exists {
		b.order = append(b.order, conversation)
	}
	b.conversations[conversation] = append(b.conversations[conversation], messages...)
}

func (b *Backend) debug(msg string, keyvals ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, keyvals...)
	}
}
