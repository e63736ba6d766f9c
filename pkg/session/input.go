package session

// activityDetector implements energy-based speech detection for the
// realtime audio stream. It is owned by the session loop and is not
// safe for concurrent use.
type activityDetector struct {
	cfg    ActivityDetectionConfig
	format AudioFormat

	open      bool
	silenceMs int

	// prefix holds the most recent sub-threshold audio so the start of
	// speech is not clipped when a window opens.
	prefix         [][]byte
	prefixBytes    int
	maxPrefixBytes int
}

// detection is the result of feeding one chunk.
type detection struct {
	Started bool
	Ended   bool
	// Window holds the frames attributed to the activity window by
	// this chunk: the prefix padding plus the chunk itself when a
	// window opens, the chunk alone while one is open, nothing
	// otherwise.
	Window [][]byte
}

func newActivityDetector(cfg ActivityDetectionConfig, format AudioFormat) *activityDetector {
	return &activityDetector{
		cfg:            cfg,
		format:         format,
		maxPrefixBytes: format.BytesForDurationMs(cfg.PrefixPaddingMs),
	}
}

func (d *activityDetector) windowOpen() bool { return d.open }

// feed classifies one PCM chunk and advances the window state machine.
func (d *activityDetector) feed(chunk []byte) detection {
	energy := rmsEnergy(chunk)
	chunkMs := d.format.DurationMs(len(chunk))

	if !d.open {
		if energy >= d.cfg.StartThreshold {
			d.open = true
			d.silenceMs = 0
			window := make([][]byte, 0, len(d.prefix)+1)
			window = append(window, d.prefix...)
			window = append(window, chunk)
			d.prefix = nil
			d.prefixBytes = 0
			return detection{Started: true, Window: window}
		}
		d.bufferPrefix(chunk)
		return detection{}
	}

	res := detection{Window: [][]byte{chunk}}
	if energy < d.cfg.EndThreshold {
		d.silenceMs += chunkMs
		if d.silenceMs >= d.cfg.SilenceDurationMs {
			d.open = false
			d.silenceMs = 0
			res.Ended = true
		}
	} else {
		d.silenceMs = 0
	}
	return res
}

// reset abandons the current window and prefix buffer. Used when an
// explicit turn boundary supersedes detection.
func (d *activityDetector) reset() {
	d.open = false
	d.silenceMs = 0
	d.prefix = nil
	d.prefixBytes = 0
}

func (d *activityDetector) bufferPrefix(chunk []byte) {
	if d.maxPrefixBytes == 0 {
		return
	}
	d.prefix = append(d.prefix, chunk)
	d.prefixBytes += len(chunk)
	for d.prefixBytes > d.maxPrefixBytes && len(d.prefix) > 0 {
		d.prefixBytes -= len(d.prefix[0])
		d.prefix = d.prefix[1:]
	}
}
