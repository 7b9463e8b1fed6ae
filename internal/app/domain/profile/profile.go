package profile

import "time"

// Profile is the public face of an identity subject.
type Profile struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Username  *string   `json:"username" db:"username"`
	FullName  *string   `json:"full_name" db:"full_name"`
	AvatarURL *string   `json:"avatar_url" db:"avatar_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Patch is a merge update; nil fields are left untouched.
type Patch struct {
	Username  *string `json:"username,omitempty"`
	FullName  *string `json:"full_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Username == nil && p.FullName == nil && p.AvatarURL == nil
}

// Apply merges the patch into p.
func (p Patch) Apply(pr Profile) Profile {
	if p.Username != nil {
		pr.Username = p.Username
	}
	if p.FullName != nil {
		pr.FullName = p.FullName
	}
	if p.AvatarURL != nil {
		pr.AvatarURL = p.AvatarURL
	}
	return pr
}

// Index keys profiles by user id.
func Index(profiles []Profile) map[string]Profile {
	out := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		out[p.UserID] = p
	}
	return out
}
