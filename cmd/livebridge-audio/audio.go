package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"

	"github.com/sonacove/livebridge/pkg/session"
)

// audioIO owns the capture and playback devices for the demo.
type audioIO struct {
	inputFormat session.AudioFormat
	playback    *session.PlaybackQueue

	mic      *micReader
	malgoCtx *malgo.AllocatedContext
	capture  *malgo.Device

	otoCtx *oto.Context
	player *oto.Player
}

func newAudioIO(in, out session.AudioFormat, playbackBufferMs int) (*audioIO, error) {
	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{
		ThreadPriority: malgo.ThreadPriorityRealtime,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	mic := newMicReader()
	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = uint32(in.Channels)
	devCfg.SampleRate = uint32(in.SampleRate)
	devCfg.PeriodSizeInMilliseconds = micChunkMs
	devCfg.Alsa.NoMMap = 1

	capture, err := malgo.InitDevice(mCtx.Context, devCfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			mic.write(input)
		},
	})
	if err != nil {
		mCtx.Uninit()
		mCtx.Free()
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	if err := capture.Start(); err != nil {
		capture.Uninit()
		mCtx.Uninit()
		mCtx.Free()
		return nil, fmt.Errorf("start capture: %w", err)
	}

	queue := session.NewPlaybackQueue(out, playbackBufferMs)
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   out.SampleRate,
		ChannelCount: out.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   100 * time.Millisecond,
	})
	if err != nil {
		capture.Uninit()
		mCtx.Uninit()
		mCtx.Free()
		return nil, fmt.Errorf("init playback: %w", err)
	}
	<-ready

	player := otoCtx.NewPlayer(&queueReader{queue: queue, format: out})
	player.Play()

	return &audioIO{
		inputFormat: in,
		playback:    queue,
		mic:         mic,
		malgoCtx:    mCtx,
		capture:     capture,
		otoCtx:      otoCtx,
		player:      player,
	}, nil
}

func (a *audioIO) Close() {
	a.mic.close()
	a.capture.Uninit()
	a.malgoCtx.Uninit()
	a.malgoCtx.Free()
	_ = a.player.Close()
}

// micReader buffers capture callbacks for a blocking consumer.
type micReader struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
	woken  bool
}

func newMicReader() *micReader {
	r := &micReader{}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *micReader) write(pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.buf = append(r.buf, pcm...)
	r.cond.Signal()
}

// Read blocks until captured audio is available. It returns 0 once
// the reader is closed or after a wake, so callers must re-check
// their exit conditions on a zero read.
func (r *micReader) Read(p []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.buf) == 0 && !r.closed && !r.woken {
		r.cond.Wait()
	}
	r.woken = false
	if r.closed || len(r.buf) == 0 {
		return 0
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n
}

// wake unblocks a pending Read without closing the reader. The flag is
// sticky so a wake that lands before the next Read is not lost.
func (r *micReader) wake() {
	r.mu.Lock()
	r.woken = true
	r.mu.Unlock()
	r.cond.Broadcast()
}

func (r *micReader) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.cond.Broadcast()
}

// queueReader adapts a PlaybackQueue to the player's pull model. When
// the queue is empty it feeds silence, since an empty queue means
// playback is paused rather than finished.
type queueReader struct {
	queue   *session.PlaybackQueue
	format  session.AudioFormat
	pending []byte
}

func (r *queueReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		if chunk, ok := r.queue.Pop(); ok {
			r.pending = chunk
		}
	}
	if len(r.pending) > 0 {
		n := copy(p, r.pending)
		r.pending = r.pending[n:]
		return n, nil
	}
	n := r.format.BytesForDurationMs(micChunkMs)
	if n > len(p) {
		n = len(p)
	}
	for i := range p[:n] {
		p[i] = 0
	}
	return n, nil
}
