package conversation

import (
	"strings"

	"psybot/internal/models"
)

// Input is one inbound user update.
type Input struct {
	UserID   int64
	ChatID   int64
	Username string
	Text     string
	// NonText marks photos, voice messages, stickers and other updates
	// that carry no text.
	NonText bool
}

type command int

const (
	cmdNone command = iota
	cmdStart
	cmdHelp
	cmdBack
	cmdHome
	cmdUnknown
)

// classify recognises navigation commands and buttons. Everything else is
// ordinary input for the current state.
func classify(text string) command {
	t := strings.TrimSpace(text)
	switch t {
	case ButtonBack:
		return cmdBack
	case ButtonHome:
		return cmdHome
	}
	if !strings.HasPrefix(t, "/") {
		return cmdNone
	}

	name := strings.Fields(t)[0]
	// strip the @botname suffix used in group chats
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}
	switch strings.ToLower(name) {
	case "/start":
		return cmdStart
	case "/help":
		return cmdHelp
	case "/back":
		return cmdBack
	case "/menu", "/home":
		return cmdHome
	default:
		return cmdUnknown
	}
}

type menuChoice int

const (
	choiceNone menuChoice = iota
	choiceConsult
	choiceMap
)

func parseMenuChoice(text string) menuChoice {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.HasPrefix(t, "1"), strings.Contains(t, "консультац"):
		return choiceConsult
	case strings.HasPrefix(t, "2"), strings.Contains(t, "карт"):
		return choiceMap
	default:
		return choiceNone
	}
}

func parseVariant(text string) (models.Variant, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(t, "базов"), t == "basic", t == "1":
		return models.VariantBasic, true
	case strings.Contains(t, "расширен"), t == "extended", t == "2":
		return models.VariantExtended, true
	default:
		return "", false
	}
}
