package admission

// RegisterRequest overrides the contact details taken from the access token.
type RegisterRequest struct {
	Email string `json:"email" validate:"omitempty,email,max=255"`
	Name  string `json:"name" validate:"omitempty,max=255"`
}
