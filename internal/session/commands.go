package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/foxseedlab/tsuyaku/internal/discord"
)

const (
	commandNoteStart = "note-start"
	commandNoteStop  = "note-stop"
)

func SlashCommandDefinitions() []discord.SlashCommandDefinition {
	return []discord.SlashCommandDefinition{
		{Name: commandNoteStart, Description: slashCommandStartDescription},
		{Name: commandNoteStop, Description: slashCommandStopDescription},
	}
}

// HandleSlashCommand starts or stops capture of the caller's voice channel.
func (m *Manager) HandleSlashCommand(event discord.SlashCommandEvent) {
	respond := func(content string) {
		if event.RespondEphemeral == nil {
			return
		}
		if err := event.RespondEphemeral(content); err != nil {
			slog.Warn("failed to respond to slash command", "error", err, "command", event.CommandName)
		}
	}
	if m.voiceDeps == nil {
		respond(messageEphemeralStartFailed)
		return
	}
	if event.GuildID != m.cfg.DiscordGuildID {
		respond(messageEphemeralWrongGuild)
		return
	}

	channelID, err := m.voiceDeps.Discord.GetUserVoiceChannelID(event.GuildID, event.UserID)
	if err != nil {
		slog.Error("failed to look up user voice channel", "error", err, "guild_id", event.GuildID, "user_id", event.UserID)
		respond(messageEphemeralVoiceLookupFailed)
		return
	}

	switch event.CommandName {
	case commandNoteStart:
		if channelID == "" {
			respond(messageEphemeralJoinVCFirst)
			return
		}
		err := m.Start(context.Background(), StartInput{
			Source: SourceVoice,
			Voice:  &VoiceTarget{GuildID: event.GuildID, ChannelID: channelID},
		})
		switch {
		case errors.Is(err, ErrAlreadyRecording):
			respond(messageEphemeralAlreadyRunning)
		case err != nil:
			respond(messageEphemeralStartFailed)
		default:
			respond(startEphemeralMessage(channelID))
		}
	case commandNoteStop:
		target, ok := m.activeVoiceTarget()
		if !ok || target.ChannelID != channelID {
			respond(messageEphemeralNotRunning)
			return
		}
		respond(stopEphemeralMessage(channelID))
		go func() {
			if _, err := m.Stop(context.Background(), ReasonStopped); err != nil && !errors.Is(err, ErrNotRecording) {
				slog.Error("failed to stop voice channel recording", "error", err, "channel_id", channelID)
			}
		}()
	default:
		respond(messageEphemeralUnknownCommand)
	}
}

func (m *Manager) activeVoiceTarget() (VoiceTarget, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateRecording || m.voice == nil {
		return VoiceTarget{}, false
	}
	return m.voice.target, true
}
