package apiserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hb9tf/bliss/cadence"
	"github.com/hb9tf/bliss/event"
	"github.com/hb9tf/bliss/geometry"
	"github.com/hb9tf/bliss/protohit"
	"github.com/hb9tf/bliss/waterfall"
)

func fixedNoiseEstimator(*waterfall.CoarseChannel) (waterfall.NoiseStats, error) {
	return waterfall.NoiseStats{NoiseFloor: 0, NoisePower: 1}, nil
}

func testServer() *Server {
	detection := cadence.DetectionOptions{
		Drift:  geometry.IntegrateDriftsOptions{Desmear: true, LowRateHzPerSec: 0, HighRateHzPerSec: 0, Resolution: 1},
		Search: protohit.HitSearchOptions{Method: protohit.ConnectedComponents, SNRThreshold: 5, NeighborL1Dist: 2},
	}
	return New(fixedNoiseEstimator, detection, event.DefaultEventSearchOptions())
}

func toneSubmission(targetName string, isOn bool, toneChan int) ScanSubmission {
	const ntsteps, nchans = 16, 64
	data := make([][]float32, ntsteps)
	for t := range data {
		data[t] = make([]float32, nchans)
		data[t][toneChan] = 20
	}
	return ScanSubmission{
		TargetName: targetName,
		IsOn:       isOn,
		Meta: waterfall.ScanMetadata{
			Fch1MHz: 1000, FoffMHz: 1, TsampSec: 1, TstartMJD: 58000,
			Ntsteps: ntsteps, Nchans: nchans, SourceName: "test",
		},
		Data: data,
	}
}

func postScan(t *testing.T, s *Server, sub ScanSubmission) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, scanEndpoint, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func TestScanSubmissionProducesHits(t *testing.T) {
	t.Parallel()

	s := testServer()
	rec := postScan(t, s, toneSubmission("on", true, 30))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST %s: status = %d, body = %s", scanEndpoint, rec.Code, rec.Body.String())
	}

	var resp struct {
		Hits []struct {
			StartFreqIndex int `json:"StartFreqIndex"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(resp.Hits) == 0 {
		t.Fatal("expected at least one hit for the injected tone")
	}
}

func TestHitsEndpointAggregatesAcrossSubmissions(t *testing.T) {
	t.Parallel()

	s := testServer()
	postScan(t, s, toneSubmission("on", true, 10))
	postScan(t, s, toneSubmission("on", true, 40))

	req := httptest.NewRequest(http.MethodGet, hitsEndpoint, nil)
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: status = %d", hitsEndpoint, rec.Code)
	}

	var resp struct {
		Hits []any `json:"hits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(resp.Hits) < 2 {
		t.Errorf("len(hits) = %d, want at least 2 (one per submission)", len(resp.Hits))
	}
}

func TestEventsEndpointRequiresONTarget(t *testing.T) {
	t.Parallel()

	s := testServer()
	req := httptest.NewRequest(http.MethodGet, eventsEndpoint, nil)
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("GET %s with no submissions: status = %d, want %d", eventsEndpoint, rec.Code, http.StatusBadRequest)
	}
}
