package handlers

import (
	"context"
	"time"

	"media-converter/internal/capability"
	"media-converter/internal/database"
	"media-converter/internal/events"
	"media-converter/internal/media"
	"media-converter/internal/transcoder"

	"github.com/gorilla/websocket"
)

// Prober extracts media metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*media.MediaInfo, error)
}

// CapabilitySource reports encoder support and container formats.
type CapabilitySource interface {
	DetectOnce(ctx context.Context) media.GpuCapabilities
	Formats(ctx context.Context) ([]capability.Format, error)
}

// Converter queues, lists and cancels conversions.
type Converter interface {
	Start(opts media.ConversionOptions) (string, error)
	Cancel(jobID string) error
	Active() []transcoder.ActiveJob
}

// HistoryStore reads conversion history.
type HistoryStore interface {
	GetConversion(ctx context.Context, id string) (*database.ConversionRecord, error)
	ListConversions(ctx context.Context, limit int) ([]database.ConversionRecord, error)
}

// PreviewSource renders preview frames.
type PreviewSource interface {
	Frame(ctx context.Context, path string, at float64, width int) ([]byte, error)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Prober       Prober
	Capabilities CapabilitySource
	Converter    Converter
	History      HistoryStore
	Previews     PreviewSource
	Events       *events.Hub
	Tools        capability.ToolStatus
}

type Handlers struct {
	prober    Prober
	caps      CapabilitySource
	converter Converter
	history   HistoryStore
	previews  PreviewSource
	hub       *events.Hub
	tools     capability.ToolStatus
	startTime time.Time
	upgrader  websocket.Upgrader
}

func New(deps Deps) *Handlers {
	return &Handlers{
		prober:    deps.Prober,
		caps:      deps.Capabilities,
		converter: deps.Converter,
		history:   deps.History,
		previews:  deps.Previews,
		hub:       deps.Events,
		tools:     deps.Tools,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}
