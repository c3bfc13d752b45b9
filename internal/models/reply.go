package models

// InlineButton is a callback button attached to a message.
type InlineButton struct {
	Text string
	Data string
}

// Reply is one outbound message. Keyboard is a reply keyboard of rows of
// button labels; RemoveKeyboard hides any keyboard previously shown.
type Reply struct {
	Text           string
	Keyboard       [][]string
	RemoveKeyboard bool
	Inline         [][]InlineButton
	HTML           bool
}

// TextReply is a plain message without keyboards.
func TextReply(text string) Reply {
	return Reply{Text: text}
}
