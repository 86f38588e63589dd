package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/zhouzirui/nexus-social/backend/internal/model/chat"
)

var (
	ErrUnknownUser     = errors.New("unknown user")
	ErrDuplicateUserID = errors.New("duplicate user id")
)

// Post is a feed entry shown on the home timeline.
type Post struct {
	ID                 string `json:"id"`
	AuthorID           string `json:"authorId"`
	Content            string `json:"content"`
	ImageURL           string `json:"imageUrl,omitempty"`
	Likes              int    `json:"likes"`
	Comments           int    `json:"comments"`
	Timestamp          int64  `json:"timestamp"`
	LikedByCurrentUser bool   `json:"likedByCurrentUser,omitempty"`
}

// Story is a short-lived status update.
type Story struct {
	ID        string `json:"id"`
	AuthorID  string `json:"authorId"`
	ImageURL  string `json:"imageUrl"`
	Timestamp int64  `json:"timestamp"`
	Viewed    bool   `json:"viewed"`
}

// Reel is a short-form video entry.
type Reel struct {
	ID          string `json:"id"`
	AuthorID    string `json:"authorId"`
	VideoURL    string `json:"videoUrl"`
	Description string `json:"description"`
	Likes       int    `json:"likes"`
}

// ChatSeed describes an initial conversation by participant ids.
type ChatSeed struct {
	ID             string
	ParticipantIDs []string
	Messages       []chat.Message
	IsGroup        bool
	Name           string
}

// Catalog is the static data set loaded once at startup and read-only afterwards.
type Catalog struct {
	CurrentUserID string
	Users         []chat.User
	Posts         []Post
	Stories       []Story
	Reels         []Reel
	Chats         []ChatSeed
}

// Validate checks that ids are unique and every reference points at a known user.
func (c Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c.Users))
	for _, u := range c.Users {
		if _, ok := seen[u.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateUserID, u.ID)
		}
		seen[u.ID] = struct{}{}
	}

	if _, ok := seen[c.CurrentUserID]; !ok {
		return fmt.Errorf("%w: current user %q", ErrUnknownUser, c.CurrentUserID)
	}

	for _, p := range c.Posts {
		if _, ok := seen[p.AuthorID]; !ok {
			return fmt.Errorf("%w: author %q of post %s", ErrUnknownUser, p.AuthorID, p.ID)
		}
	}
	for _, s := range c.Stories {
		if _, ok := seen[s.AuthorID]; !ok {
			return fmt.Errorf("%w: author %q of story %s", ErrUnknownUser, s.AuthorID, s.ID)
		}
	}
	for _, r := range c.Reels {
		if _, ok := seen[r.AuthorID]; !ok {
			return fmt.Errorf("%w: author %q of reel %s", ErrUnknownUser, r.AuthorID, r.ID)
		}
	}
	return nil
}

// Sessions resolves the seed chats into sessions with full participant records.
// Membership and message invariants are enforced by the chat store.
func (c Catalog) Sessions() ([]chat.Session, error) {
	byID := make(map[string]chat.User, len(c.Users))
	for _, u := range c.Users {
		byID[u.ID] = u
	}

	sessions := make([]chat.Session, 0, len(c.Chats))
	for _, seed := range c.Chats {
		participants := make([]chat.User, 0, len(seed.ParticipantIDs))
		for _, id := range seed.ParticipantIDs {
			user, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("%w: participant %q of chat %s", ErrUnknownUser, id, seed.ID)
			}
			participants = append(participants, user)
		}

		sessions = append(sessions, chat.Session{
			ID:           seed.ID,
			Participants: participants,
			Messages:     append([]chat.Message(nil), seed.Messages...),
			IsGroup:      seed.IsGroup,
			Name:         seed.Name,
		})
	}
	return sessions, nil
}

// Seed provides the default mock data set. Timestamps are relative to now.
func Seed(now time.Time) Catalog {
	at := func(ago time.Duration) int64 {
		return now.Add(-ago).UnixMilli()
	}

	return Catalog{
		CurrentUserID: "u1",
		Users: []chat.User{
			{ID: "u1", Name: "Alex Rivera", Avatar: "https://picsum.photos/200/200?random=1", Bio: "Digital explorer & UI enthusiast.", IsOnline: true},
			{ID: "u2", Name: "Sarah Chen", Avatar: "https://picsum.photos/200/200?random=2", IsOnline: true},
			{ID: "u3", Name: "Gemini AI", Avatar: "https://upload.wikimedia.org/wikipedia/commons/8/8a/Google_Gemini_logo.svg", Bio: "AI Assistant", IsOnline: true},
			{ID: "u4", Name: "Marcus Johnson", Avatar: "https://picsum.photos/200/200?random=4"},
			{ID: "u5", Name: "Elena Rodriguez", Avatar: "https://picsum.photos/200/200?random=5", IsOnline: true},
		},
		Posts: []Post{
			{ID: "p1", AuthorID: "u2", Content: "Just arrived in Tokyo! The neon lights are mesmerizing. 🌃 #travel #japan", ImageURL: "https://picsum.photos/800/600?random=10", Likes: 124, Comments: 18, Timestamp: at(time.Hour)},
			{ID: "p2", AuthorID: "u4", Content: "Working on a new painting. Layers upon layers. 🎨", ImageURL: "https://picsum.photos/800/600?random=11", Likes: 89, Comments: 5, Timestamp: at(2 * time.Hour)},
			{ID: "p3", AuthorID: "u5", Content: "Coffee first, everything else later. ☕️", Likes: 45, Comments: 2, Timestamp: at(3 * time.Hour)},
		},
		Stories: []Story{
			{ID: "s1", AuthorID: "u2", ImageURL: "https://picsum.photos/400/800?random=20", Timestamp: at(0)},
			{ID: "s2", AuthorID: "u4", ImageURL: "https://picsum.photos/400/800?random=21", Timestamp: at(0)},
			{ID: "s3", AuthorID: "u5", ImageURL: "https://picsum.photos/400/800?random=22", Timestamp: at(0), Viewed: true},
		},
		Reels: []Reel{
			{ID: "r1", AuthorID: "u2", VideoURL: "https://picsum.photos/400/700?random=30", Description: "Sunset vibes 🌅", Likes: 1200},
			{ID: "r2", AuthorID: "u4", VideoURL: "https://picsum.photos/400/700?random=31", Description: "Art process timelapse 🖌️", Likes: 850},
		},
		Chats: []ChatSeed{
			{
				ID:             "c1",
				ParticipantIDs: []string{"u1", "u3"},
				Messages: []chat.Message{
					{ID: "m1", SenderID: "u3", Content: "Hello Alex! How can I help you today?", Kind: chat.KindText, Timestamp: at(10 * time.Second)},
				},
			},
			{
				ID:             "c2",
				ParticipantIDs: []string{"u1", "u2"},
				Messages: []chat.Message{
					{ID: "m2", SenderID: "u2", Content: "Are we still on for lunch?", Kind: chat.KindText, Timestamp: at(time.Hour)},
				},
			},
		},
	}
}
