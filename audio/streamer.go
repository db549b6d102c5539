package audio

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"layeh.com/gopus"
)

const (
	CHANNELS   = 2
	FRAME_RATE = 48000
	FRAME_SIZE = 960
	MAX_BYTES  = (FRAME_SIZE * 2) * 2

	pausePoll = 100 * time.Millisecond

	// how long Play waits for a stopped stream to wind down
	teardownWait = 5 * time.Second
)

// PauseSource tells the streamer whether to hold back frames.
type PauseSource interface {
	Paused() bool
}

// Connection streams tracks into one guild's voice connection:
// yt-dlp | ffmpeg -> PCM -> opus -> discord. It implements Session.
type Connection struct {
	guildID string
	voice   *discordgo.VoiceConnection
	pause   PauseSource
	ended   chan<- TrackEnded
	leave   func() error
	log     *zap.Logger

	// run streams one url until it ends or ctx is done.
	run func(ctx context.Context, url string) error

	lock    sync.Mutex
	current *stream
}

type stream struct {
	id       uuid.UUID
	cancel   context.CancelFunc
	stopping bool
	done     chan struct{} // closed once the stream has wound down
}

// NewConnection wraps vc. Track ends are sent to ended; leave is called by
// Leave to tear the voice connection down.
func NewConnection(guildID string, vc *discordgo.VoiceConnection, pause PauseSource, ended chan<- TrackEnded, leave func() error, log *zap.Logger) *Connection {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Connection{
		guildID: guildID,
		voice:   vc,
		pause:   pause,
		ended:   ended,
		leave:   leave,
		log:     log.With(zap.String("guild", guildID)),
	}
	c.run = c.stream
	return c
}

func (c *Connection) Play(ctx context.Context, req PlayRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.awaitStopped(ctx); err != nil {
		return err
	}

	c.lock.Lock()
	if c.current != nil {
		c.lock.Unlock()
		return fmt.Errorf("%w: song already playing", ErrSessionError)
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	cur := &stream{id: req.Handle.ID, cancel: cancel, done: make(chan struct{})}
	c.current = cur
	c.lock.Unlock()

	go func() {
		err := c.run(streamCtx, req.Handle.Track.URL)
		if streamCtx.Err() != nil {
			err = nil
		}
		cancel()

		c.lock.Lock()
		if c.current == cur {
			c.current = nil
		}
		c.lock.Unlock()
		close(cur.done)

		c.ended <- TrackEnded{PlayRequest: req, Session: c, Err: err}
	}()
	return nil
}

// awaitStopped waits for a stream that was stopped but has not finished
// tearing down. A stream still playing is left to Play to reject.
func (c *Connection) awaitStopped(ctx context.Context) error {
	c.lock.Lock()
	cur := c.current
	c.lock.Unlock()
	if cur == nil || !cur.stopping {
		return nil
	}

	timer := time.NewTimer(teardownWait)
	defer timer.Stop()
	select {
	case <-cur.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: previous stream did not stop", ErrSessionError)
	}
}

func (c *Connection) Stop(trackID uuid.UUID) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.current == nil || c.current.id != trackID {
		return false
	}
	c.current.stopping = true
	c.current.cancel()
	return true
}

func (c *Connection) Leave(context.Context) error {
	c.StopPlayback()
	if c.leave == nil {
		return nil
	}
	if err := c.leave(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionError, err)
	}
	return nil
}

func (c *Connection) Voice() *discordgo.VoiceConnection {
	return c.voice
}

// StopPlayback ends whatever is streaming.
func (c *Connection) StopPlayback() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.current != nil {
		c.current.stopping = true
		c.current.cancel()
	}
}

func (c *Connection) stream(ctx context.Context, url string) error {
	cmdCtx, kill := context.WithCancel(ctx)
	defer kill()

	ytdlp := exec.CommandContext(cmdCtx, "yt-dlp", "-f", "bestaudio", "-o", "-", url)
	ffmpeg := exec.CommandContext(cmdCtx, "ffmpeg",
		"-re",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(FRAME_RATE),
		"-ac", strconv.Itoa(CHANNELS),
		"pipe:1",
	)

	ytdlpOut, err := ytdlp.StdoutPipe()
	if err != nil {
		return fmt.Errorf("yt-dlp pipe: %w", err)
	}
	ffmpeg.Stdin = ytdlpOut

	out, err := ffmpeg.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg pipe: %w", err)
	}
	buffer := bufio.NewReaderSize(out, 16384)

	if err := ytdlp.Start(); err != nil {
		return fmt.Errorf("yt-dlp start: %w", err)
	}
	if err := ffmpeg.Start(); err != nil {
		kill()
		_ = ytdlp.Wait()
		return fmt.Errorf("ffmpeg start: %w", err)
	}
	defer func() {
		kill()
		_ = ffmpeg.Wait()
		_ = ytdlp.Wait()
	}()

	_ = c.voice.Speaking(true)
	defer func() { _ = c.voice.Speaking(false) }()

	send := make(chan []int16, 2)
	done := make(chan struct{})
	var sendErr error
	go func() {
		defer close(done)
		sendErr = c.sendPCM(ctx, send)
	}()
	defer func() {
		close(send)
		<-done
	}()

	frames := 0
	for {
		audioBuffer := make([]int16, FRAME_SIZE*CHANNELS)
		err := binary.Read(buffer, binary.LittleEndian, &audioBuffer)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if frames == 0 && ctx.Err() == nil {
				return errors.New("no audio received")
			}
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read pcm: %w", err)
		}
		frames++

		select {
		case send <- audioBuffer:
		case <-done:
			return sendErr
		case <-ctx.Done():
			return nil
		}
	}
}

// sendPCM encodes frames and hands them to discord. It returns early, with
// the reason, when the voice connection cannot take them.
func (c *Connection) sendPCM(ctx context.Context, pcm <-chan []int16) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("recovered in sendPCM", zap.Any("panic", r))
			err = fmt.Errorf("%w: send loop panicked: %v", ErrSessionError, r)
		}
	}()

	encoder, err := gopus.NewEncoder(FRAME_RATE, CHANNELS, gopus.Audio)
	if err != nil {
		return fmt.Errorf("creating opus encoder: %w", err)
	}

	for frame := range pcm {
		for c.pause != nil && c.pause.Paused() {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pausePoll):
			}
		}

		opus, err := encoder.Encode(frame, FRAME_SIZE, MAX_BYTES)
		if err != nil {
			return fmt.Errorf("opus encoding: %w", err)
		}
		c.voice.RLock()
		ready, opusSend := c.voice.Ready, c.voice.OpusSend
		c.voice.RUnlock()
		if !ready || opusSend == nil {
			return fmt.Errorf("%w: voice connection not ready", ErrSessionError)
		}
		select {
		case opusSend <- opus:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}
