// Package assistant runs a chat session between the user and a model. In
// agent mode replies carrying ACTION directives are executed against the
// project; in ask mode replies are only shown.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"codex/internal/agent"
	"codex/internal/index"
	"codex/internal/llm"
	"codex/internal/logging"
	"codex/internal/settings"
	"codex/internal/store"
	"codex/internal/workspace"
)

// Mode selects how replies are handled.
type Mode string

const (
	ModeAgent Mode = "agent"
	ModeAsk   Mode = "ask"
)

// Message authors.
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// Fixed replies.
const (
	MsgKeySaved      = "API key saved successfully. You can now use the AI assistant."
	MsgEmptyReply    = "Sorry, I encountered an error processing your request."
	MsgInvalidKey    = "Invalid API key. Please provide a valid Gemini API key."
	actionErrPrefix  = "I encountered an error while trying to perform the action: "
	defaultHistory   = 10
	defaultMaxStored = 200
)

var (
	ErrBusy           = errors.New("another message is being processed")
	ErrAPIKeyRequired = errors.New("API key is required")
	ErrInvalidMode    = errors.New("mode must be agent or ask")
)

// Message is one chat entry. Result is set for messages reporting an agent
// action.
type Message struct {
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	Timestamp int64         `json:"timestamp"`
	Result    *agent.Result `json:"result,omitempty"`
}

// Label returns the badge shown next to an action result, or "".
func (m Message) Label() string {
	if m.Result == nil || !m.Result.Success {
		return ""
	}
	switch m.Result.Action {
	case agent.ActionCreateFile:
		return "NEW"
	case agent.ActionUpdateFile:
		return "UPDATED"
	case agent.ActionDeleteFile:
		return "DELETED"
	}
	return ""
}

// Focus reports what the editor is showing. *editor.Tabs implements it.
type Focus interface {
	CurrentFileID() string
	OpenFileIDs() []string
}

// Options configures a Session.
type Options struct {
	Workspace *workspace.Workspace
	Index     *index.Index
	Client    llm.Client
	Registry  *llm.Registry
	Keys      *settings.KeyStore
	Store     store.Store
	Executor  *agent.Executor

	// FallbackKey is used when the key store is empty.
	FallbackKey   string
	Model         string
	Mode          Mode
	HistoryWindow int
	MaxStored     int
	AtomicActions bool
	Now           func() time.Time
}

// Session is one project's chat.
type Session struct {
	opts  Options
	audit *logging.AuditLogger

	mu           sync.Mutex
	messages     []Message
	mode         Mode
	model        string
	processing   bool
	keyInvalid   bool
	pending      string
	pendingFocus Focus

	lmu       sync.Mutex
	nextID    int
	onMessage map[int]func(Message)
	onTyping  map[int]func(bool)
}

// New creates a session and loads the project's stored history.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Workspace == nil || opts.Client == nil || opts.Store == nil {
		return nil, errors.New("assistant: workspace, client and store are required")
	}
	if opts.Registry == nil {
		opts.Registry = llm.NewRegistry()
	}
	if opts.Keys == nil {
		opts.Keys = settings.NewKeyStore(opts.Store)
	}
	if opts.Index == nil {
		opts.Index = index.New(index.DefaultOptions())
	}
	if opts.Executor == nil {
		opts.Executor = agent.NewExecutor(opts.Workspace, agent.WithIndex(opts.Index))
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = defaultHistory
	}
	if opts.MaxStored <= 0 {
		opts.MaxStored = defaultMaxStored
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Mode == "" {
		opts.Mode = ModeAgent
	}
	if _, ok := opts.Registry.Lookup(opts.Model); !ok {
		opts.Model = opts.Registry.Default().ID
	}

	s := &Session{
		opts:      opts,
		audit:     logging.Audit(opts.Workspace.ProjectID()),
		mode:      opts.Mode,
		model:     opts.Model,
		onMessage: make(map[int]func(Message)),
		onTyping:  make(map[int]func(bool)),
	}
	if err := s.loadHistory(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// =============================================================================
// MODE AND MODEL
// =============================================================================

// SetMode switches between agent and ask mode.
func (s *Session) SetMode(m Mode) error {
	if m != ModeAgent && m != ModeAsk {
		return fmt.Errorf("%w: %q", ErrInvalidMode, m)
	}
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
	return nil
}

// Mode returns the current mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetModel selects a registered model.
func (s *Session) SetModel(id string) error {
	if _, ok := s.opts.Registry.Lookup(id); !ok {
		return fmt.Errorf("%w: %s", llm.ErrUnknownModel, id)
	}
	s.mu.Lock()
	s.model = id
	s.mu.Unlock()
	return nil
}

// CurrentModel returns the selected model.
func (s *Session) CurrentModel() llm.Model {
	s.mu.Lock()
	id := s.model
	s.mu.Unlock()
	m, _ := s.opts.Registry.Lookup(id)
	return m
}

// Models lists the selectable models.
func (s *Session) Models() []llm.Model { return s.opts.Registry.Models() }

// =============================================================================
// LISTENERS
// =============================================================================

// OnMessage registers fn for every added message and returns a cancel func.
func (s *Session) OnMessage(fn func(Message)) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextID
	s.nextID++
	s.onMessage[id] = fn
	return func() {
		s.lmu.Lock()
		delete(s.onMessage, id)
		s.lmu.Unlock()
	}
}

// OnTyping registers fn for typing indicator changes and returns a cancel func.
func (s *Session) OnTyping(fn func(bool)) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextID
	s.nextID++
	s.onTyping[id] = fn
	return func() {
		s.lmu.Lock()
		delete(s.onTyping, id)
		s.lmu.Unlock()
	}
}

func (s *Session) typing(on bool) {
	s.lmu.Lock()
	fns := make([]func(bool), 0, len(s.onTyping))
	for _, fn := range s.onTyping {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()
	for _, fn := range fns {
		fn(on)
	}
}

// =============================================================================
// HISTORY
// =============================================================================

func (s *Session) loadHistory(ctx context.Context) error {
	data, err := s.opts.Store.Get(ctx, store.ChatKey(s.opts.Workspace.ProjectID()))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load chat history: %w", err)
	}
	if err := json.Unmarshal(data, &s.messages); err != nil {
		logging.AssistantError("Discarding unreadable chat history for %s: %v", s.opts.Workspace.ProjectID(), err)
		s.messages = nil
	}
	return nil
}

func (s *Session) saveHistory(ctx context.Context, msgs []Message) {
	if len(msgs) > s.opts.MaxStored {
		msgs = msgs[len(msgs)-s.opts.MaxStored:]
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		logging.AssistantError("Failed to marshal chat history: %v", err)
		return
	}
	if err := s.opts.Store.Set(ctx, store.ChatKey(s.opts.Workspace.ProjectID()), data); err != nil {
		logging.AssistantError("Failed to save chat history: %v", err)
	}
}

// Messages returns the chat so far.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// ClearHistory forgets every message.
func (s *Session) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
	err := s.opts.Store.Delete(ctx, store.ChatKey(s.opts.Workspace.ProjectID()))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}

func (s *Session) add(ctx context.Context, m Message) Message {
	m.Timestamp = s.opts.Now().UnixMilli()
	s.mu.Lock()
	s.messages = append(s.messages, m)
	if over := len(s.messages) - s.opts.MaxStored; over > 0 {
		s.messages = append([]Message(nil), s.messages[over:]...)
	}
	snapshot := append([]Message(nil), s.messages...)
	s.mu.Unlock()

	s.saveHistory(ctx, snapshot)

	s.lmu.Lock()
	fns := make([]func(Message), 0, len(s.onMessage))
	for _, fn := range s.onMessage {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()
	for _, fn := range fns {
		fn(m)
	}
	return m
}

func (s *Session) addAI(ctx context.Context, text string) {
	s.add(ctx, Message{Role: RoleAI, Content: text})
}

// history returns the last HistoryWindow messages in model form.
func (s *Session) history() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	recent := s.messages
	if len(recent) > s.opts.HistoryWindow {
		recent = recent[len(recent)-s.opts.HistoryWindow:]
	}
	out := make([]llm.Message, len(recent))
	for i, m := range recent {
		role := llm.RoleUser
		if m.Role == RoleAI {
			role = llm.RoleModel
		}
		out[i] = llm.Message{Role: role, Content: m.Content}
	}
	return out
}

// =============================================================================
// API KEY
// =============================================================================

// needsKey reports whether model is served by Gemini, which uses the stored key.
func (s *Session) needsKey(m llm.Model) bool {
	return m.Provider == "" || m.Provider == llm.ProviderGemini
}

func (s *Session) apiKey(ctx context.Context) string {
	key, err := s.opts.Keys.Get(ctx)
	if err != nil {
		logging.AssistantError("Failed to read API key: %v", err)
	}
	if key == "" {
		key = s.opts.FallbackKey
	}
	return key
}

// PendingMessage returns the message waiting for an API key, if any.
func (s *Session) PendingMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// HasUsableKey reports whether a message could be sent now.
func (s *Session) HasUsableKey(ctx context.Context) bool {
	if !s.needsKey(s.CurrentModel()) {
		return true
	}
	s.mu.Lock()
	invalid := s.keyInvalid
	s.mu.Unlock()
	return !invalid && s.apiKey(ctx) != ""
}

// SaveAPIKey stores key, confirms it in the chat and processes the pending
// message, if any.
func (s *Session) SaveAPIKey(ctx context.Context, key string) error {
	if err := s.opts.Keys.Set(ctx, key); err != nil {
		return err
	}
	s.mu.Lock()
	s.keyInvalid = false
	pending, focus := s.pending, s.pendingFocus
	s.pending, s.pendingFocus = "", nil
	s.mu.Unlock()

	s.addAI(ctx, MsgKeySaved)
	if pending == "" {
		return nil
	}
	return s.ProcessMessage(ctx, pending, focus)
}

// CancelAPIKeyPrompt dismisses the key prompt. The pending message is kept
// and returned.
func (s *Session) CancelAPIKeyPrompt() string {
	return s.PendingMessage()
}

// =============================================================================
// PROCESSING
// =============================================================================

// ProcessMessage sends text to the model and handles the reply. Empty text
// is ignored. focus may be nil.
func (s *Session) ProcessMessage(ctx context.Context, text string, focus Focus) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	model := s.CurrentModel()
	key := ""
	if s.needsKey(model) {
		key = s.apiKey(ctx)
	}

	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.needsKey(model) && (key == "" || s.keyInvalid) {
		s.pending, s.pendingFocus = text, focus
		s.mu.Unlock()
		logging.Assistant("No usable API key, holding message for %s", s.opts.Workspace.ProjectID())
		return ErrAPIKeyRequired
	}
	s.processing = true
	mode := s.mode
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.processing = false
		s.mu.Unlock()
	}()

	s.add(ctx, Message{Role: RoleUser, Content: text})
	s.typing(true)
	defer s.typing(false)

	var currentID string
	var openIDs []string
	if focus != nil {
		currentID, openIDs = focus.CurrentFileID(), focus.OpenFileIDs()
	}
	req := llm.Request{
		Model:    model.ID,
		System:   SystemPrompt(mode, s.opts.Index.ContextForFile(currentID, openIDs)),
		Messages: s.history(),
		APIKey:   key,
	}

	start := time.Now()
	reply, err := s.opts.Client.Generate(ctx, req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		s.audit.LLMCall(model.ID, elapsed, false, err.Error())
		return s.fail(ctx, err)
	}
	s.audit.LLMCall(model.ID, elapsed, true, "")
	logging.Assistant("Reply from %s in %dms (%d chars, mode=%s)", model.ID, elapsed, len(reply), mode)

	switch {
	case strings.TrimSpace(reply) == "":
		s.addAI(ctx, MsgEmptyReply)
	case mode == ModeAgent && agent.HasActions(reply):
		s.runActions(ctx, reply)
	default:
		s.addAI(ctx, reply)
	}
	return nil
}

// fail reports a client error in the chat. An invalid key is forgotten so the
// next message asks for a new one.
func (s *Session) fail(ctx context.Context, err error) error {
	logging.AssistantError("Model call failed: %v", err)
	if !llm.IsInvalidAPIKey(err) {
		s.addAI(ctx, "Error: "+err.Error())
		return err
	}
	s.mu.Lock()
	s.keyInvalid = true
	s.mu.Unlock()
	if derr := s.opts.Keys.Delete(ctx); derr != nil {
		logging.AssistantError("Failed to remove invalid API key: %v", derr)
	}
	s.addAI(ctx, "Error: "+MsgInvalidKey)
	return fmt.Errorf("%w: %w", ErrAPIKeyRequired, err)
}

// runActions parses and executes the directives in reply, posting the
// preamble, one message per result, and any parse or execution error.
func (s *Session) runActions(ctx context.Context, reply string) {
	plan, parseErr := agent.Parse(reply)
	if plan.Preamble != "" {
		s.addAI(ctx, plan.Preamble)
	}

	var (
		results []agent.Result
		execErr error
	)
	if len(plan.Actions) > 0 {
		if s.opts.AtomicActions {
			results, execErr = s.opts.Executor.ExecuteAtomic(ctx, plan)
		} else {
			results, execErr = s.opts.Executor.Execute(ctx, plan)
		}
	}

	for i := range results {
		r := results[i]
		s.add(ctx, Message{Role: RoleAI, Content: describeResult(r), Result: &r})
	}
	if execErr != nil {
		s.addAI(ctx, actionErrPrefix+execErr.Error())
	}
	if parseErr != nil {
		s.addAI(ctx, actionErrPrefix+parseErr.Error())
	}
}

// describeResult is the chat text for an action result.
func describeResult(r agent.Result) string {
	switch {
	case !r.Success:
		return fmt.Sprintf("Action %s failed. %s", r.Action, r.Message)
	case r.Action == agent.ActionCreateFile, r.Action == agent.ActionUpdateFile, r.Action == agent.ActionDeleteFile:
		return r.Message
	default:
		return fmt.Sprintf("Action %s completed successfully. %s", r.Action, r.Message)
	}
}
