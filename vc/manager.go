package vc

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"queuebot/audio"
)

// Manager owns the voice connections of every guild and hands them out as
// audio sessions.
type Manager struct {
	mu          sync.RWMutex
	connections map[string]*audio.Connection // guildID → VC

	queues *audio.QueueManager
	ended  chan<- audio.TrackEnded
	log    *zap.Logger

	join       func(guildID, channelID string) (*discordgo.VoiceConnection, error)
	disconnect func(vc *discordgo.VoiceConnection) error
}

func NewManager(s *discordgo.Session, queues *audio.QueueManager, ended chan<- audio.TrackEnded, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		connections: make(map[string]*audio.Connection),
		queues:      queues,
		ended:       ended,
		log:         log,
		join: func(guildID, channelID string) (*discordgo.VoiceConnection, error) {
			return s.ChannelVoiceJoin(guildID, channelID, false, true)
		},
		disconnect: func(vc *discordgo.VoiceConnection) error {
			return vc.Disconnect()
		},
	}
}

// Join joins the voice channel and stores the connection. A guild that is
// already connected keeps its connection.
func (m *Manager) Join(ctx context.Context, guildID, channelID string) (audio.Session, error) {
	if conn, ok := m.get(guildID); ok {
		return conn, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := m.join(guildID, channelID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// lost a race with another join of the same guild
	if conn, ok := m.connections[guildID]; ok {
		return conn, nil
	}
	conn := audio.NewConnection(guildID, vc, m.queues.Get(guildID), m.ended, func() error {
		return m.Leave(guildID)
	}, m.log)
	m.connections[guildID] = conn
	m.log.Info("joined voice channel", zap.String("guild", guildID), zap.String("channel", channelID))
	return conn, nil
}

// Session returns the guild's session, if it is connected.
func (m *Manager) Session(guildID string) (audio.Session, bool) {
	conn, ok := m.get(guildID)
	if !ok {
		return nil, false
	}
	return conn, true
}

// Leave disconnects and removes the VC.
func (m *Manager) Leave(guildID string) error {
	m.mu.Lock()
	conn, ok := m.connections[guildID]
	delete(m.connections, guildID)
	m.mu.Unlock()

	if !ok {
		return nil // nothing to disconnect
	}
	conn.StopPlayback()
	m.log.Info("left voice channel", zap.String("guild", guildID))
	return m.disconnect(conn.Voice())
}

// Close disconnects every guild.
func (m *Manager) Close() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.connections))
	for id := range m.connections {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.Leave(id); err != nil {
			m.log.Warn("disconnecting voice", zap.String("guild", id), zap.Error(err))
		}
	}
}

func (m *Manager) get(guildID string) (*audio.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.connections[guildID]
	return conn, ok
}
