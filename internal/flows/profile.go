package flows

import "github.com/cairnsgames/cgAuth/internal/api"

// Profile is the user view derived from a backend reply.
type Profile struct {
	ID          string
	Email       string
	GivenName   string
	FamilyName  string
	DisplayName string
	AvatarURL   string
}

// ProfileFromResponse maps reply fields onto a Profile. The display name is
// always given + " " + family, even when either part is empty.
func ProfileFromResponse(resp *api.Response) Profile {
	if resp == nil {
		return Profile{}
	}
	return Profile{
		ID:          resp.ID,
		Email:       resp.Email,
		GivenName:   resp.FirstName,
		FamilyName:  resp.LastName,
		DisplayName: resp.FirstName + " " + resp.LastName,
		AvatarURL:   resp.Avatar,
	}
}
