package callbacks

import tele "gopkg.in/telebot.v4"

const respondedKey = "cb_responded"

// Toast answers the current callback with a short notification.
// The callback router will not answer it a second time.
func Toast(c tele.Context, text string) error {
	return respond(c, &tele.CallbackResponse{Text: text})
}

// Alert answers the current callback with a modal alert.
func Alert(c tele.Context, text string) error {
	return respond(c, &tele.CallbackResponse{Text: text, ShowAlert: true})
}

// Ack answers the current callback with an empty response unless it was already answered.
func Ack(c tele.Context) error {
	if c.Callback() == nil || Responded(c) {
		return nil
	}
	return respond(c, &tele.CallbackResponse{})
}

// Responded reports whether the current callback was already answered.
func Responded(c tele.Context) bool {
	v, _ := c.Get(respondedKey).(bool)
	return v
}

func respond(c tele.Context, resp *tele.CallbackResponse) error {
	if c.Callback() == nil || Responded(c) {
		return nil
	}
	c.Set(respondedKey, true)
	return c.Respond(resp)
}
