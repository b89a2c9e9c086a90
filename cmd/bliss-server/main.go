// Command bliss-server boots the apiserver gin engine, with the same
// -listen/-certFile/-keyFile flags as server/server.go.
package main

import (
	"flag"

	"github.com/golang/glog"

	"github.com/hb9tf/bliss/apiserver"
	"github.com/hb9tf/bliss/cadence"
	"github.com/hb9tf/bliss/event"
	"github.com/hb9tf/bliss/geometry"
	"github.com/hb9tf/bliss/hit"
	"github.com/hb9tf/bliss/noise"
	"github.com/hb9tf/bliss/protohit"
)

var (
	listen   = flag.String("listen", ":8443", "")
	certFile = flag.String("certFile", "", "Path of the file containing the certificate (including the chained intermediates and root) for the TLS connection.")
	keyFile  = flag.String("keyFile", "", "Path of the file containing the key for the TLS connection.")

	lowRateHzPerSec  = flag.Float64("lowRateHzPerSec", -5, "Lowest drift rate to search, in Hz/s")
	highRateHzPerSec = flag.Float64("highRateHzPerSec", 5, "Highest drift rate to search, in Hz/s")
	driftResolution  = flag.Int("driftResolution", 1, "Drift-rate step size, in units of the unit drift rate (1 is finest; higher values search fewer, coarser-spaced rows)")
	snrThreshold     = flag.Float64("snrThreshold", protohit.DefaultHitSearchOptions().SNRThreshold, "Minimum SNR for a protohit")

	matchThreshold     = flag.Float64("matchThreshold", event.DefaultEventSearchOptions().MatchThreshold, "Maximum distance for a hit to join an in-progress event")
	offRejectThreshold = flag.Float64("offRejectThreshold", event.DefaultEventSearchOptions().OffRejectThreshold, "Maximum mean distance to an OFF scan hit before an event is rejected")
)

func main() {
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	flag.Parse()

	detection := cadence.DetectionOptions{
		Drift: geometry.IntegrateDriftsOptions{
			Desmear:          true,
			LowRateHzPerSec:  *lowRateHzPerSec,
			HighRateHzPerSec: *highRateHzPerSec,
			Resolution:       *driftResolution,
		},
		Search: protohit.HitSearchOptions{
			Method:         protohit.ConnectedComponents,
			SNRThreshold:   *snrThreshold,
			NeighborL1Dist: protohit.DefaultHitSearchOptions().NeighborL1Dist,
		},
		Filter: hit.FilterOptions{},
	}
	eventOptions := event.EventSearchOptions{MatchThreshold: *matchThreshold, OffRejectThreshold: *offRejectThreshold}

	s := apiserver.New(noise.EstimateBasic, detection, eventOptions)

	if *certFile != "" || *keyFile != "" {
		glog.Fatal(s.Engine().RunTLS(*listen, *certFile, *keyFile))
	} else {
		glog.Infoln("Resorting to serving HTTP because there was no certificate and key defined.")
		glog.Fatal(s.Engine().Run(*listen))
	}

	glog.Flush()
}
