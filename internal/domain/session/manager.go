package session

// Manager is the Chat Orchestrator's session lifecycle surface: create,
// fetch, reset, and delete ChatSessions against a Store.
type Manager struct {
	store *Store
}

// NewManager wraps store with the create/reset/delete operations spec.md
// §4.3 names.
func NewManager(store *Store) *Manager {
	return &Manager{store: store}
}

// Create starts a new ChatSession and registers it in the store.
func (m *Manager) Create(model, systemPrompt string, catalog *ToolCatalog, allowlist []string) (*ChatSession, error) {
	id, err := GenerateSessionID()
	if err != nil {
		return nil, err
	}
	sess := NewChatSession(id, model, systemPrompt, catalog, allowlist)
	m.store.Put(sess)
	return sess, nil
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*ChatSession, error) {
	return m.store.Get(id)
}

// Reset clears a session's history back to its leading system message.
func (m *Manager) Reset(id string) (*ChatSession, error) {
	sess, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	sess.Reset()
	return sess, nil
}

// Delete terminates a session immediately.
func (m *Manager) Delete(id string) error {
	return m.store.Delete(id)
}
