// Package apiserver exposes the detection core over a gin JSON API,
// mirroring server/server.go's collectHandler shape — a single endpoint
// buffering submissions into a channel consumed by an exporter — but for
// structured hits/events instead of raw samples, and upgrading from
// stdlib net/http.HandleFunc to gin.Engine to finally exercise the
// already-declared gin-gonic/gin dependency.
package apiserver

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hb9tf/bliss/cadence"
	"github.com/hb9tf/bliss/errs"
	"github.com/hb9tf/bliss/event"
	"github.com/hb9tf/bliss/flags"
	"github.com/hb9tf/bliss/hit"
	"github.com/hb9tf/bliss/waterfall"
)

const (
	scanEndpoint   = "/bliss/v1/scan"
	hitsEndpoint   = "/bliss/v1/hits"
	eventsEndpoint = "/bliss/v1/events"
)

// ScanSubmission is the JSON body POSTed to /bliss/v1/scan: one coarse
// channel's raw spectrogram plus the name of the observation target it
// belongs to and whether that target is the cadence's ON source.
type ScanSubmission struct {
	TargetName string                 `json:"target_name"`
	IsOn       bool                   `json:"is_on"`
	Meta       waterfall.ScanMetadata `json:"meta"`
	Data       [][]float32            `json:"data"`
	Mask       [][]flags.Bitmask      `json:"mask"`
}

// Server holds the running set of hits produced per observation target
// and serves them, plus the events computed across them, over HTTP.
type Server struct {
	engine        *gin.Engine
	estimateNoise cadence.NoiseEstimator
	detection     cadence.DetectionOptions
	eventOptions  event.EventSearchOptions

	mu      sync.Mutex
	targets []targetHits // insertion order matters: first is ON
}

type targetHits struct {
	name string
	isOn bool
	hits []hit.Hit
}

// New builds a Server with the given noise estimator and detection/event
// options applied uniformly to every submitted scan.
func New(estimateNoise cadence.NoiseEstimator, detection cadence.DetectionOptions, eventOptions event.EventSearchOptions) *Server {
	s := &Server{estimateNoise: estimateNoise, detection: detection, eventOptions: eventOptions}
	engine := gin.Default()
	engine.POST(scanEndpoint, s.handleScan)
	engine.GET(hitsEndpoint, s.handleHits)
	engine.GET(eventsEndpoint, s.handleEvents)
	s.engine = engine
	return s
}

// Engine returns the underlying gin engine, e.g. for cmd/bliss-server to
// run with ListenAndServe(TLS).
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) handleScan(c *gin.Context) {
	var sub ScanSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// An anonymous submission still needs a stable target identity to bucket
	// its hits under, the same way collection/spectre.go falls back to
	// uuid.NewString() for an unset collector identifier.
	if sub.TargetName == "" {
		sub.TargetName = uuid.NewString()
	}

	ch, err := waterfall.NewCoarseChannel(0, sub.Meta, sub.Data, sub.Mask)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	channel := cadence.NewChannel(ch, s.estimateNoise, s.detection)
	hits, err := channel.Hits()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.appendTarget(sub.TargetName, sub.IsOn, hits)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"hits": hits})
}

// appendTarget must be called with s.mu held.
func (s *Server) appendTarget(name string, isOn bool, hits []hit.Hit) {
	for i, t := range s.targets {
		if t.name == name {
			s.targets[i].hits = append(s.targets[i].hits, hits...)
			return
		}
	}
	s.targets = append(s.targets, targetHits{name: name, isOn: isOn, hits: hits})
}

func (s *Server) handleHits(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []hit.Hit
	for _, t := range s.targets {
		all = append(all, t.hits...)
	}
	c.JSON(http.StatusOK, gin.H{"hits": all})
}

func (s *Server) handleEvents(c *gin.Context) {
	s.mu.Lock()
	cad, err := s.buildCadence()
	s.mu.Unlock()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := event.Search(cad, s.eventOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// buildCadence must be called with s.mu held.
func (s *Server) buildCadence() (cadence.Cadence, error) {
	var targets []cadence.ObservationTarget
	for _, t := range s.targets {
		targets = append(targets, cadence.ObservationTarget{
			Name: t.name, IsOn: t.isOn, Scan: cadence.NewStaticScan(t.name, t.hits),
		})
	}
	if len(targets) == 0 || !targets[0].IsOn {
		return cadence.Cadence{}, errs.NewDataError("target_name", "no ON target has been submitted yet")
	}
	return cadence.Cadence{Targets: targets}, nil
}
