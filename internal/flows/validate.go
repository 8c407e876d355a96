package flows

// LoginInput is validated before the password login is sent.
type LoginInput struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// TwoFactorInput is validated before the OTP is sent.
type TwoFactorInput struct {
	Email string `validate:"required,email"`
	OTP   string `validate:"required,numeric,min=4,max=10"`
}
