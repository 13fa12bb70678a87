package session

import "fmt"

const (
	slashCommandStartDescription = "Start taking notes in the voice channel you are in."
	slashCommandStopDescription  = "Stop taking notes in the voice channel you are in."

	messageEphemeralWrongGuild        = ":warning: **This command cannot be used in this server.**"
	messageEphemeralUnknownCommand    = ":warning: **Unknown command.**"
	messageEphemeralVoiceLookupFailed = ":warning: **Could not check which voice channel you are in.**"
	messageEphemeralJoinVCFirst       = ":warning: **Join a voice channel first.**"
	messageEphemeralAlreadyRunning    = ":warning: **A recording is already in progress.**"
	messageEphemeralStartFailed       = ":warning: **Could not start taking notes.**"
	messageEphemeralNotRunning        = ":warning: **No notes are being taken in this voice channel.**"

	messageStartChannelTitle = ":microphone2: **Started taking notes.**"
	messageStartChannelHint  = "-# Use /note-stop to finish."

	messageStopChannelTitle = ":pause_button:  **Stopped taking notes.**"
	messageStopRestart      = "-# Use /note-start to take notes again."
	messageStopEmpty        = "Nothing was transcribed, so no document was created."

	messageAttachmentTitleFormat = ":page_facing_up:  **%s**"

	messageStartEphemeralTitleFormat = ":microphone2: <#%s> **notes started.**"
	messageStopEphemeralTitleFormat  = ":pause_button:  <#%s> **notes are being finalized.**"

	messageStartEphemeralHint = "-# Use /note-stop to finish."
	messageStopEphemeralHint  = "-# The document will be posted to the voice channel chat."
)

func startChannelMessage() string {
	return messageStartChannelTitle + "\n" + messageStartChannelHint
}

func stopChannelMessage(title string) string {
	return messageStopChannelTitle + "\n" + fmt.Sprintf(messageAttachmentTitleFormat, title) + "\n" + messageStopRestart
}

func emptyStopChannelMessage() string {
	return messageStopChannelTitle + "\n" + messageStopEmpty + "\n" + messageStopRestart
}

func startEphemeralMessage(channelID string) string {
	return fmt.Sprintf(messageStartEphemeralTitleFormat, channelID) + "\n" + messageStartEphemeralHint
}

func stopEphemeralMessage(channelID string) string {
	return fmt.Sprintf(messageStopEphemeralTitleFormat, channelID) + "\n" + messageStopEphemeralHint
}
