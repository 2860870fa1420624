package backend

import (
	"strings"

	"deskchat/cli/internal/chatapi"
)

const (
	agentPrompt = "You are a helpful AI assistant with access to a virtual terminal and a file system. " +
		"Use the tools to answer requests that need command execution or file management."
	cuaPrompt = "You are a powerful AI assistant with direct control over a virtual terminal and file system. " +
		"When a request needs command execution or file management you MUST use the tools. " +
		"Do not ask for permission and do not explain what you are about to do. Just perform the action."
	highEffortPrompt = "You are a high-effort AI assistant. Provide comprehensive, well-reasoned answers. " +
		"You have virtual desktop tools to gather information and perform tasks.\n" +
		"First think step by step inside a <thinking> XML tag; this is your scratchpad.\n" +
		"Then give the final, user-facing answer inside an <answer> XML tag.\n" +
		"The user only sees the content of the <answer> tag."
)

func systemPrompt(mode chatapi.Mode) string {
	switch mode {
	case chatapi.ModeAgent:
		return agentPrompt
	case chatapi.ModeCUA:
		return cuaPrompt
	case chatapi.ModeHighEffort:
		return highEffortPrompt
	default:
		return ""
	}
}

// splitThinking pulls the <thinking> and <answer> sections out of a
// high-effort reply. Without an <answer> tag the thinking block is cut
// from the text and the rest is the answer.
func splitThinking(text string) (answer, thinking string) {
	const (
		openThinking  = "<thinking>"
		closeThinking = "</thinking>"
		openAnswer    = "<answer>"
		closeAnswer   = "</answer>"
	)
	answer = text
	ts, te := strings.Index(text, openThinking), strings.Index(text, closeThinking)
	if ts != -1 && te > ts {
		thinking = strings.TrimSpace(text[ts+len(openThinking) : te])
	}
	as, ae := strings.Index(text, openAnswer), strings.Index(text, closeAnswer)
	switch {
	case as != -1 && ae > as:
		answer = strings.TrimSpace(text[as+len(openAnswer) : ae])
	case thinking != "":
		answer = strings.TrimSpace(text[:ts] + text[te+len(closeThinking):])
	}
	return answer, thinking
}
