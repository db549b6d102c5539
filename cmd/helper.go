package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"queuebot/audio"
)

// UserVoiceChannel returns the voice channel userID is connected to in the
// guild, or "" if they are not in one.
func UserVoiceChannel(state *discordgo.State, guildID, userID string) string {
	if state == nil {
		return ""
	}
	guild, _ := state.Guild(guildID)
	if guild == nil {
		return ""
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID
		}
	}
	return ""
}

// FormatDuration renders d as mm:ss, or hh:mm:ss from one hour on.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	hours, minutes, seconds := secs/3600, (secs%3600)/60, secs%60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// describe is how a track shows up in chat.
func describe(t audio.Track) string {
	s := "`" + t.Name() + "`"
	if t.Author != "" {
		s += " by " + t.Author
	}
	if t.Duration > 0 {
		s += " [" + FormatDuration(t.Duration) + "]"
	}
	return s
}

// parsePosition reads a 1-based queue position.
func parsePosition(arg string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
