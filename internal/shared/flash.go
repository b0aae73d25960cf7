package shared

// Flash kinds understood by the layout.
const (
	FlashSuccess = "success"
	FlashWarning = "warning"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Success builds a success flash.
func Success(msg string) FlashMessage { return FlashMessage{Kind: FlashSuccess, Message: msg} }

// Warning builds a warning flash.
func Warning(msg string) FlashMessage { return FlashMessage{Kind: FlashWarning, Message: msg} }

// Failure builds an error flash.
func Failure(msg string) FlashMessage { return FlashMessage{Kind: FlashError, Message: msg} }

// DrainFlashes pops every queued flash.
func DrainFlashes(sess *Session) []FlashMessage {
	if sess == nil {
		return nil
	}
	var out []FlashMessage
	for {
		msg := sess.PopFlash()
		if msg == nil {
			return out
		}
		out = append(out, *msg)
	}
}
