// Package config holds typed, JSON-tagged configuration for the streaming
// backbone, with a single DefaultConfig constructor.
package config

import "time"

// Config is the root application configuration.
type Config struct {
	Buffer     BufferConfig     `json:"buffer"`
	Feed       FeedConfig       `json:"feed"`
	Render     RenderConfig     `json:"render"`
	Supervisor SupervisorConfig `json:"supervisor"`

	EnableDebug bool `json:"enableDebug"`
}

// BufferConfig sizes the ring buffer backbone and its anchor-aware timeouts.
type BufferConfig struct {
	Size               int           `json:"size"`               // SRB byte capacity
	AnchorFetchTimeout time.Duration `json:"anchorFetchTimeout"` // per-Read timeout used by render
	DrainPollInterval  time.Duration `json:"drainPollInterval"`  // Drain's internal poll tick
}

// FeedConfig configures the WebSocket producer side.
type FeedConfig struct {
	URL            string        `json:"url"`
	ReconnectDelay time.Duration `json:"reconnectDelay"`
	PingInterval   time.Duration `json:"pingInterval"`
	WriteTimeout   time.Duration `json:"writeTimeout"`
	ReadTimeout    time.Duration `json:"readTimeout"`
	MaxMessageSize int64         `json:"maxMessageSize"`
}

// RenderConfig configures the PortAudio playback side. The per-callback
// SRB read timeout is not duplicated here; it comes from
// BufferConfig.AnchorFetchTimeout, which cmd/streambridge passes to
// render.New.
type RenderConfig struct {
	SampleRate int `json:"sampleRate"`
	Channels   int `json:"channels"`
	BitDepth   int `json:"bitDepth"`
}

// SupervisorConfig configures the third-party control loop.
type SupervisorConfig struct {
	FilePath      string        `json:"filePath"`
	MonitorDelay  time.Duration `json:"monitorDelay"`
	ChannelBuffer int           `json:"channelBuffer"`
	UseStdin      bool          `json:"useStdin"`
}

// DefaultConfig returns the configuration used when no override file is
// supplied.
func DefaultConfig() *Config {
	const (
		sampleRate = 16000
		channels   = 1
		bitDepth   = 2
	)

	return &Config{
		Buffer: BufferConfig{
			Size:               10 * sampleRate * channels * bitDepth, // 10s of audio
			AnchorFetchTimeout: 200 * time.Millisecond,
			DrainPollInterval:  20 * time.Millisecond,
		},
		Feed: FeedConfig{
			URL:            "ws://localhost:8080/api/v1/stream/ws",
			ReconnectDelay: 5 * time.Second,
			PingInterval:   30 * time.Second,
			WriteTimeout:   10 * time.Second,
			ReadTimeout:    60 * time.Second,
			MaxMessageSize: 1024 * 1024,
		},
		Render: RenderConfig{
			SampleRate: sampleRate,
			Channels:   channels,
			BitDepth:   bitDepth,
		},
		Supervisor: SupervisorConfig{
			FilePath:      "/tmp/streambridge-control",
			MonitorDelay:  100 * time.Millisecond,
			ChannelBuffer: 1,
			UseStdin:      true,
		},
		EnableDebug: false,
	}
}
