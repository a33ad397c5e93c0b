package models

// Виды писем, которые обрабатывает sender.
const (
	EmailRegisterOTP       = "register_otp"
	EmailForgotPasswordOTP = "forgot_password_otp"
	EmailContact           = "contact"
)

// EmailMessage задание на отправку письма, публикуемое в очередь.
type EmailMessage struct {
	Kind    string `json:"kind"`
	To      string `json:"to"`
	Name    string `json:"name,omitempty"`
	OTP     string `json:"otp,omitempty"`
	ReplyTo string `json:"reply_to,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message,omitempty"`
}
