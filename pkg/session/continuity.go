package session

import (
	"github.com/sonacove/livebridge/pkg/wire"
)

// Usage is the cumulative token consumption reported by the server.
// Counts are absolute, not deltas.
type Usage struct {
	PromptTokens   int64 `json:"prompt_tokens"`
	CachedTokens   int64 `json:"cached_tokens"`
	ResponseTokens int64 `json:"response_tokens"`
	ToolUseTokens  int64 `json:"tool_use_tokens"`
	ThoughtTokens  int64 `json:"thought_tokens"`
	TotalTokens    int64 `json:"total_tokens"`
}

// Compression describes the context window compression status.
type Compression struct {
	TriggerTokens int64 `json:"trigger_tokens"`
	TargetTokens  int64 `json:"target_tokens"`
	Active        bool  `json:"active"`
	Activations   int   `json:"activations"`
}

// continuity tracks the long-session state: usage, compression,
// resumption handles, and drain status. Owned by the session loop.
type continuity struct {
	usage       Usage
	compression Compression
	handle      string
	resumable   bool
}

func newContinuity(cfg *Config) *continuity {
	c := &continuity{handle: cfg.ResumptionHandle}
	if cfg.Compression != nil {
		c.compression.TriggerTokens = cfg.Compression.TriggerTokens
		c.compression.TargetTokens = cfg.Compression.TargetTokens
	}
	return c
}

// observeUsage replaces the usage snapshot and reports whether
// compression newly activated: compression is inferred when the total
// drops after having crossed the trigger.
func (c *continuity) observeUsage(meta *wire.UsageMetadata) (Usage, bool) {
	prev := c.usage.TotalTokens
	c.usage = Usage{
		PromptTokens:   meta.PromptTokenCount,
		CachedTokens:   meta.CachedContentTokenCount,
		ResponseTokens: meta.ResponseTokenCount,
		ToolUseTokens:  meta.ToolUsePromptTokenCount,
		ThoughtTokens:  meta.ThoughtsTokenCount,
		TotalTokens:    meta.TotalTokenCount,
	}

	activated := false
	if trigger := c.compression.TriggerTokens; trigger > 0 {
		if prev >= trigger && c.usage.TotalTokens < prev {
			c.compression.Active = true
			c.compression.Activations++
			activated = true
		}
	}
	return c.usage, activated
}

// observeResumption stores the newest handle. Later handles always
// supersede earlier ones.
func (c *continuity) observeResumption(upd *wire.SessionResumptionUpdate) {
	c.handle = upd.NewHandle
	c.resumable = upd.Resumable && upd.NewHandle != ""
}
