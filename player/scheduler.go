package player

import (
	"errors"
	"fmt"
	"time"

	"github.com/charlescerisier/aviplayer/avi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// session is one play request from open to end.
type session struct {
	id     uuid.UUID
	demux  *avi.Demuxer
	log    *logrus.Entry
	info   *avi.ContainerInfo
	err    error
	videos uint64
	audios uint64
}

func newSession(src avi.Source, log *logrus.Entry) *session {
	id := uuid.New()
	return &session{
		id:    id,
		demux: avi.NewDemuxer(src),
		log:   log.WithField("session", id.String()),
	}
}

// run is the scheduler loop. Every wake re-evaluates the current state.
func (p *Player) run() {
	defer close(p.done)

	for {
		ev := p.events.wait(evControl, -1)

		if ev&evStart != 0 {
			p.begin()
		}
		if p.sess != nil {
			p.step(ev)
		}
		if ev&evDeinit != 0 {
			p.log.WithField("function", "run").Debug("Scheduler exiting")
			return
		}
	}
}

// begin takes the pending session and moves to Header.
func (p *Player) begin() {
	p.mu.Lock()
	s := p.pending
	p.pending = nil
	p.mu.Unlock()
	if s == nil {
		return
	}

	p.sess = s
	p.infoMu.Lock()
	p.sessionID = s.id
	p.infoMu.Unlock()

	p.setState(StateHeader)
	p.starting.Store(false)
}

// step advances the session by one event. Stop and deinit force End from
// any state; Header falls through into the first Data step.
func (p *Player) step(ev eventBits) {
	s := p.sess

	if ev&(evStop|evDeinit) != 0 {
		p.setState(StateEnd)
	}

	if p.State() == StateHeader {
		if err := p.readHeader(s); err != nil {
			s.err = fmt.Errorf("%w: %w", ErrParseFailed, err)
			p.setState(StateEnd)
		} else {
			p.setState(StateData)
			ev |= evTick
		}
	}

	if p.State() == StateData && ev&evTick != 0 {
		done, err := p.readData(s)
		if err != nil {
			s.err = err
		}
		if done || err != nil {
			p.setState(StateEnd)
		}
	}

	if p.State() == StateEnd {
		p.end(s)
	}
}

func (p *Player) readHeader(s *session) error {
	log := s.log.WithField("function", "readHeader")

	info, err := s.demux.ReadHeader(p.buf, avi.ParseOptions{Strict: p.cfg.Strict, Logger: s.log})
	if err != nil {
		log.WithField("error", err.Error()).Error("Failed to parse header")
		return err
	}

	interval := info.FrameInterval()
	if interval == 0 && info.Main.MicroSecPerFrame > 0 {
		interval = time.Duration(info.Main.MicroSecPerFrame) * time.Microsecond
	}
	if interval <= 0 {
		log.Error("No usable frame rate")
		return ErrInvalidFrameRate
	}

	s.info = info
	p.infoMu.Lock()
	p.info = info
	p.infoMu.Unlock()

	log.WithFields(logrus.Fields{
		"fps":       info.FPS,
		"interval":  interval,
		"width":     info.Video.Width,
		"height":    info.Video.Height,
		"codec":     info.Video.Codec.String(),
		"has_audio": info.HasAudio,
		"movi_size": info.MoviSize,
		"warnings":  len(info.Warnings),
	}).Info("Header parsed")

	if info.HasAudio && p.cfg.OnAudioFormat != nil {
		p.cfg.OnAudioFormat(info.Audio, p.cfg.UserData)
	}

	p.timer.start(interval)
	p.events.clear(evReady | evTick)
	return nil
}

// readData delivers the audio chunks up to and including the next video
// chunk. It reports done once every movi byte has been consumed; the end
// check precedes each read so the last chunk is delivered and nothing past
// the movi list is read.
func (p *Player) readData(s *session) (bool, error) {
	p.events.clear(evReady)

	for {
		if s.demux.Done() {
			s.log.WithFields(logrus.Fields{
				"function":     "readData",
				"consumed":     s.demux.Consumed(),
				"video_frames": s.videos,
				"audio_frames": s.audios,
			}).Info("Playback complete")
			return true, nil
		}

		c, err := s.demux.ReadChunk(p.buf)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"function": "readData",
				"offset":   c.Offset,
				"error":    err.Error(),
			}).Error("Failed to read chunk")
			return false, err
		}

		switch c.Kind {
		case avi.FrameVideo:
			p.publishVideo(s, c)
			return false, nil
		case avi.FrameAudio:
			p.publishAudio(s, c)
		default:
			s.log.WithFields(logrus.Fields{
				"function": "readData",
				"fourcc":   c.FourCC.String(),
				"offset":   c.Offset,
			}).Error("Unknown chunk type")
			return false, fmt.Errorf("%w: %q at offset %d", avi.ErrUnknownFrameTag, c.FourCC.String(), c.Offset)
		}
	}
}

// readLen is the payload length of a chunk just read into p.buf, never more
// than was copied into it.
func (p *Player) readLen(c avi.Chunk) int {
	return int(min(int64(c.Size), c.Padded, int64(len(p.buf))))
}

func (p *Player) publishVideo(s *session, c avi.Chunk) {
	s.videos++
	size := p.readLen(c)
	info := VideoFrameInfo{
		FrameInfo: FrameInfo{FourCC: c.FourCC, Size: size, Offset: c.Offset, Sequence: s.videos},
		Codec:     s.info.Video.Codec,
		Width:     s.info.Video.Width,
		Height:    s.info.Video.Height,
	}
	frame := p.buf[:size]
	p.buf = p.video.swap(p.buf, size, info)

	if p.cfg.OnVideoFrame != nil {
		p.cfg.OnVideoFrame(frame, info, p.cfg.UserData)
	}
	p.events.set(evVideoReady)
}

func (p *Player) publishAudio(s *session, c avi.Chunk) {
	s.audios++
	size := p.readLen(c)
	info := AudioFrameInfo{
		FrameInfo:     FrameInfo{FourCC: c.FourCC, Size: size, Offset: c.Offset, Sequence: s.audios},
		Codec:         s.info.Audio.Codec,
		Channels:      s.info.Audio.Channels,
		SampleRate:    s.info.Audio.SampleRate,
		BitsPerSample: s.info.Audio.BitsPerSample,
	}
	frame := p.buf[:size]
	p.buf = p.audio.swap(p.buf, size, info)

	if p.cfg.OnAudioFrame != nil {
		p.cfg.OnAudioFrame(frame, info, p.cfg.UserData)
	}
	p.events.set(evAudioReady)
}

// end runs the End state: disarm the timer, close the source, go back to
// None and report.
func (p *Player) end(s *session) {
	p.timer.stop()
	// A stop that lands while the session is ending must not carry over to a
	// session started from OnPlaybackEnd.
	p.events.clear(evReady | evTick | evStop)

	if err := s.demux.Close(); err != nil {
		s.log.WithFields(logrus.Fields{
			"function": "end",
			"error":    err.Error(),
		}).Warn("Failed to close source")
	}

	p.sess = nil
	p.infoMu.Lock()
	p.info = nil
	p.sessionID = uuid.Nil
	p.infoMu.Unlock()
	p.setState(StateNone)

	entry := s.log.WithFields(logrus.Fields{
		"function":     "end",
		"video_frames": s.videos,
		"audio_frames": s.audios,
	})
	switch {
	case s.err == nil:
		entry.Info("Playback ended")
	case errors.Is(s.err, ErrParseFailed):
		entry.WithField("error", s.err.Error()).Warn("Playback ended before data")
	default:
		entry.WithField("error", s.err.Error()).Error("Playback ended with error")
	}

	if p.cfg.OnPlaybackEnd != nil {
		p.cfg.OnPlaybackEnd(s.err, p.cfg.UserData)
	}
}
