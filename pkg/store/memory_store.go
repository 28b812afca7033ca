package store

import (
	"context"
	"sync"
	"time"

	"messagecrud/pkg/domain"
)

// MemoryStore keeps users and messages in-process. Intended for tests and single-instance dev runs.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User // key: user ID
	names    map[string]string      // user name -> user ID
	messages map[string]domain.Message
	orders   []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		names:    make(map[string]string),
		messages: make(map[string]domain.Message),
	}
}

// SaveUser registers or replaces a user.
func (m *MemoryStore) SaveUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok && prev.UserName != u.UserName {
		delete(m.names, prev.UserName)
	}
	m.users[u.ID] = u
	if u.UserName != "" {
		m.names[u.UserName] = u.ID
	}
	return nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByName looks up a user by user name.
func (m *MemoryStore) GetUserByName(_ context.Context, userName string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.names[userName]
	if !ok {
		return domain.User{}, false, nil
	}
	u, exists := m.users[id]
	return u, exists, nil
}

// CreateMessage stores a new message and tracks insertion order.
func (m *MemoryStore) CreateMessage(_ context.Context, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.messages[msg.ID]; !exists {
		m.orders = append(m.orders, msg.ID)
	}
	m.messages[msg.ID] = msg
	return nil
}

// GetMessage retrieves a message by ID.
func (m *MemoryStore) GetMessage(_ context.Context, id string) (domain.Message, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	return msg, ok, nil
}

// UpdateMessageText overwrites text of an existing message.
func (m *MemoryStore) UpdateMessageText(_ context.Context, id, text string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return false, nil
	}
	msg.Text = text
	msg.UpdatedAt = time.Now().UTC()
	m.messages[id] = msg
	return true, nil
}

// DeleteMessage removes a message if it belongs to ownerID.
func (m *MemoryStore) DeleteMessage(_ context.Context, ownerID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || msg.OwnerID != ownerID {
		return false, nil
	}
	delete(m.messages, id)
	filtered := m.orders[:0]
	for _, item := range m.orders {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.orders = filtered
	return true, nil
}

// ListMessagesByOwner returns messages of one owner in insertion order.
func (m *MemoryStore) ListMessagesByOwner(_ context.Context, ownerID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Message, 0)
	for _, id := range m.orders {
		if msg, ok := m.messages[id]; ok && msg.OwnerID == ownerID {
			res = append(res, msg)
		}
	}
	return res, nil
}
