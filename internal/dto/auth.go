package dto

type RequestOTPRequest struct {
	Username string `json:"username"`
}

type RequestOTPResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
	// Code is only populated outside production when OTP_DEV_ECHO is set;
	// real delivery happens over an out-of-band channel.
	Code string `json:"code,omitempty"`
}

type VerifyOTPRequest struct {
	UserID string `json:"userId"`
	OTP    string `json:"otp"`
}

type PasswordLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SetupPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type ChangeAuthMethodRequest struct {
	Method string `json:"method"`
}
