package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/zhouzirui/nexus-social/backend/internal/model/chat"
)

// Load reads a catalog from a TOML file. An empty path returns the built-in Seed.
// Entries carry an `age` (Go duration) instead of absolute timestamps so the
// same file produces a fresh-looking feed on every start.
func Load(path string, now time.Time) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Seed(now), nil
	}

	var file catalogFile
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return Catalog{}, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Catalog{}, fmt.Errorf("decode catalog %s: unknown keys %v", path, undecoded)
	}

	c := file.toCatalog(now)
	if err := c.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("validate catalog %s: %w", path, err)
	}
	return c, nil
}

type age struct {
	time.Duration
}

func (a *age) UnmarshalText(text []byte) error {
	d, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid age %q: %w", text, err)
	}
	if d < 0 {
		return fmt.Errorf("invalid age %q: must not be negative", text)
	}
	a.Duration = d
	return nil
}

type catalogFile struct {
	CurrentUser string       `toml:"current_user"`
	Users       []chat.User  `toml:"users"`
	Posts       []postEntry  `toml:"posts"`
	Stories     []storyEntry `toml:"stories"`
	Reels       []reelEntry  `toml:"reels"`
	Chats       []chatEntry  `toml:"chats"`
}

type postEntry struct {
	ID       string `toml:"id"`
	Author   string `toml:"author"`
	Content  string `toml:"content"`
	ImageURL string `toml:"image_url"`
	Likes    int    `toml:"likes"`
	Comments int    `toml:"comments"`
	Liked    bool   `toml:"liked"`
	Age      age    `toml:"age"`
}

type storyEntry struct {
	ID       string `toml:"id"`
	Author   string `toml:"author"`
	ImageURL string `toml:"image_url"`
	Viewed   bool   `toml:"viewed"`
	Age      age    `toml:"age"`
}

type reelEntry struct {
	ID          string `toml:"id"`
	Author      string `toml:"author"`
	VideoURL    string `toml:"video_url"`
	Description string `toml:"description"`
	Likes       int    `toml:"likes"`
}

type chatEntry struct {
	ID           string         `toml:"id"`
	Participants []string       `toml:"participants"`
	Group        bool           `toml:"group"`
	Name         string         `toml:"name"`
	Messages     []messageEntry `toml:"messages"`
}

type messageEntry struct {
	ID       string `toml:"id"`
	Sender   string `toml:"sender"`
	Content  string `toml:"content"`
	Kind     string `toml:"type"`
	MediaURL string `toml:"media_url"`
	Read     bool   `toml:"read"`
	Age      age    `toml:"age"`
}

func (f catalogFile) toCatalog(now time.Time) Catalog {
	at := func(a age) int64 {
		return now.Add(-a.Duration).UnixMilli()
	}

	c := Catalog{
		CurrentUserID: f.CurrentUser,
		Users:         append([]chat.User(nil), f.Users...),
	}

	for _, p := range f.Posts {
		c.Posts = append(c.Posts, Post{
			ID:                 p.ID,
			AuthorID:           p.Author,
			Content:            p.Content,
			ImageURL:           p.ImageURL,
			Likes:              p.Likes,
			Comments:           p.Comments,
			Timestamp:          at(p.Age),
			LikedByCurrentUser: p.Liked,
		})
	}
	for _, s := range f.Stories {
		c.Stories = append(c.Stories, Story{
			ID:        s.ID,
			AuthorID:  s.Author,
			ImageURL:  s.ImageURL,
			Timestamp: at(s.Age),
			Viewed:    s.Viewed,
		})
	}
	for _, r := range f.Reels {
		c.Reels = append(c.Reels, Reel{
			ID:          r.ID,
			AuthorID:    r.Author,
			VideoURL:    r.VideoURL,
			Description: r.Description,
			Likes:       r.Likes,
		})
	}
	for _, ch := range f.Chats {
		seed := ChatSeed{
			ID:             ch.ID,
			ParticipantIDs: append([]string(nil), ch.Participants...),
			IsGroup:        ch.Group,
			Name:           ch.Name,
		}
		for _, m := range ch.Messages {
			kind := chat.MessageKind(strings.ToLower(strings.TrimSpace(m.Kind)))
			if kind == "" {
				kind = chat.KindText
			}
			seed.Messages = append(seed.Messages, chat.Message{
				ID:        m.ID,
				SenderID:  m.Sender,
				Content:   m.Content,
				Kind:      kind,
				Timestamp: at(m.Age),
				Read:      m.Read,
				MediaURL:  m.MediaURL,
			})
		}
		c.Chats = append(c.Chats, seed)
	}

	return c
}
