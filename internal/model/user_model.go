package model

// UserProfile is the signed-in user's profile as returned by login/signup.
type UserProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// DirectoryEntry is the read-only projection used for mention matching.
type DirectoryEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
