package catalog

import "github.com/zhouzirui/nexus-social/backend/internal/model/chat"

// Store exposes read-only catalog lookups for handlers and tools.
type Store interface {
	CurrentUser() chat.User
	Users() []chat.User
	FindUser(id string) (chat.User, bool)
	Posts() []Post
	Stories() []Story
	Reels() []Reel
}

// MemoryStore implements Store over an in-memory catalog.
type MemoryStore struct {
	catalog Catalog
	users   map[string]chat.User
}

// NewMemoryStore returns a MemoryStore backed by a private copy of c.
func NewMemoryStore(c Catalog) *MemoryStore {
	users := make(map[string]chat.User, len(c.Users))
	for _, u := range c.Users {
		users[u.ID] = u
	}

	return &MemoryStore{
		catalog: Catalog{
			CurrentUserID: c.CurrentUserID,
			Users:         append([]chat.User(nil), c.Users...),
			Posts:         append([]Post(nil), c.Posts...),
			Stories:       append([]Story(nil), c.Stories...),
			Reels:         append([]Reel(nil), c.Reels...),
		},
		users: users,
	}
}

// CurrentUser returns the user acting through the UI.
func (s *MemoryStore) CurrentUser() chat.User {
	return s.users[s.catalog.CurrentUserID]
}

// Users returns all catalog users in seed order.
func (s *MemoryStore) Users() []chat.User {
	return append([]chat.User(nil), s.catalog.Users...)
}

// FindUser looks up a user by identifier.
func (s *MemoryStore) FindUser(id string) (chat.User, bool) {
	u, ok := s.users[id]
	return u, ok
}

func (s *MemoryStore) Posts() []Post {
	return append([]Post(nil), s.catalog.Posts...)
}

func (s *MemoryStore) Stories() []Story {
	return append([]Story(nil), s.catalog.Stories...)
}

func (s *MemoryStore) Reels() []Reel {
	return append([]Reel(nil), s.catalog.Reels...)
}
