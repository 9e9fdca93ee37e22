package entity

type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthResult is the payload of the login and register endpoints: the user
// fields plus the issued token.
type AuthResult struct {
	Token string `json:"token"`
	User
}
