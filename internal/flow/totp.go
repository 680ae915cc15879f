package flow

// TOTPDigits is the length of a TOTP code.
const TOTPDigits = 6

const msgInvalidCode = "Please enter a valid 6-digit code"

// validTOTP reports whether code is exactly six ASCII digits.
func validTOTP(code string) bool {
	if len(code) != TOTPDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
