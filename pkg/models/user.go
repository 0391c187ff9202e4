package models

// User identifies a person known to the CRM. The engine treats users as
// immutable; identity and profile data are owned by the surrounding product.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}
