package controller

// Actor is the caller identity every UploadController operation checks
// against (§4.7's "role-based" pre-conditions). The core only needs to
// know who is asking and whether they hold the admin bit; richer identity
// (name, email, affiliations) lives in the external user directory.
type Actor struct {
	UserID  string
	IsAdmin bool
}

// owns reports whether a is the upload's main author.
func (a Actor) owns(mainAuthorID string) bool {
	return a.UserID == mainAuthorID
}
