package services

import "strings"

const (
	systemInstruction = "You are Lyro Docs, a professional data assistant. Extract key info and provide clear instructions."
	extractionRequest = "Extract Name, Date, ID numbers, and key instructions from this text: "
)

// Prompt is the system/user message pair sent to the completion service.
type Prompt struct {
	System string
	User   string
}

// JoinFragments flattens recognized fragments into one string separated by
// single spaces, keeping their order.
func JoinFragments(fragments []string) string {
	return strings.Join(fragments, " ")
}

// ComposePrompt embeds fullText verbatim into the extraction request. An
// empty text still yields a complete prompt.
func ComposePrompt(fullText string) Prompt {
	return Prompt{
		System: systemInstruction,
		User:   extractionRequest + fullText,
	}
}
