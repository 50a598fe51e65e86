package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore gives every level listed in cfg.Levels its own sampler.
// Unlisted levels, and error and above, are written unsampled.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	sampled := make(map[zapcore.Level]bool, len(cfg.Levels))
	cores := make([]zapcore.Core, 0, len(cfg.Levels)+1)
	for lvl, rate := range cfg.Levels {
		if lvl >= zapcore.ErrorLevel {
			continue
		}
		sampled[lvl] = true
		cores = append(cores, zapcore.NewSamplerWithOptions(
			&bandCore{Core: core, admit: onlyLevel(lvl)},
			cfg.Tick.Duration(),
			rate.Initial,
			rate.Thereafter,
		))
	}
	cores = append(cores, &bandCore{Core: core, admit: func(lvl zapcore.Level) bool {
		return !sampled[lvl]
	}})

	return zapcore.NewTee(cores...)
}

func onlyLevel(want zapcore.Level) func(zapcore.Level) bool {
	return func(lvl zapcore.Level) bool { return lvl == want }
}

// bandCore passes only the levels admit accepts.
type bandCore struct {
	zapcore.Core
	admit func(zapcore.Level) bool
}

func (c *bandCore) Enabled(lvl zapcore.Level) bool {
	return c.admit(lvl) && c.Core.Enabled(lvl)
}

func (c *bandCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *bandCore) With(fields []zapcore.Field) zapcore.Core {
	return &bandCore{Core: c.Core.With(fields), admit: c.admit}
}
