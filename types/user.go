package types

import "time"

// Gender is the optional self-declared gender on a user profile.
type Gender string

// Supported gender values. The zero value means the field is unset.
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Valid reports whether g is one of the supported values or unset.
func (g Gender) Valid() bool {
	switch g {
	case "", GenderMale, GenderFemale, GenderOther:
		return true
	default:
		return false
	}
}

// User represents an account in the system.
// It contains identity, profile, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the user's email address. It is unique across all users.
	Email string `json:"email" db:"email"`

	// Username is the unique handle chosen by the user.
	Username string `json:"username" db:"username"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// DateOfBirth is the optional birth date. When set it is always
	// strictly before the current date.
	DateOfBirth *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`

	// Gender is the optional self-declared gender.
	Gender Gender `json:"gender,omitempty" db:"gender"`

	// Bio is a free-form profile description.
	Bio string `json:"bio,omitempty" db:"bio"`

	// Location is a free-form profile location.
	Location string `json:"location,omitempty" db:"location"`

	// ProfilePic is the URL of the user's profile picture.
	ProfilePic string `json:"profile_pic,omitempty" db:"profile_pic"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserDraft carries the fields accepted on signup.
type UserDraft struct {
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	Name        string     `json:"name"`
	Password    string     `json:"password"`
	DateOfBirth *time.Time `json:"-"`
	Gender      Gender     `json:"gender,omitempty"`
	Bio         string     `json:"bio,omitempty"`
	Location    string     `json:"location,omitempty"`
	ProfilePic  string     `json:"profile_pic,omitempty"`
}

// UserPatch is a partial profile update. Nil fields are left unchanged.
type UserPatch struct {
	Username    *string
	Name        *string
	DateOfBirth *time.Time
	Gender      *Gender
	Bio         *string
	Location    *string
	ProfilePic  *string
}

// UserSummary is the public projection of a user used in listings such as
// the likers of a post.
type UserSummary struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	ProfilePic string `json:"profile_pic,omitempty"`
}

// Summary projects u into its public listing shape.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID,
		Username:   u.Username,
		Name:       u.Name,
		ProfilePic: u.ProfilePic,
	}
}
