// Package ai turns an article extract into quiz questions and related topics
// through a configurable language model.
package ai

import (
	"go.uber.org/zap"
)

type synthOptions struct {
	logger *zap.Logger
}

// Option configures a synthesizer.
type Option func(*synthOptions)

func WithLogger(l *zap.Logger) Option {
	return func(o *synthOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(opts []Option) synthOptions {
	o := synthOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
