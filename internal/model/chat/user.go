package chat

// User is an immutable identity from the static catalog.
type User struct {
	ID       string `json:"id" toml:"id"`
	Name     string `json:"name" toml:"name"`
	Avatar   string `json:"avatar" toml:"avatar"`
	Bio      string `json:"bio,omitempty" toml:"bio"`
	IsOnline bool   `json:"isOnline,omitempty" toml:"online"`
}
