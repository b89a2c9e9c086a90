// Command bliss-search runs the full BLISS detection pipeline over a
// cadence of scans and writes the resulting hits to a pluggable sink, in
// the same flag-driven shape as spectre.go.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/ioutil"
	"math/rand"
	"os"
	"strings"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v7"
	"github.com/go-sql-driver/mysql"
	"github.com/golang/glog"

	// Blind import support for sqlite3 used by store/sqlite.go.
	_ "github.com/mattn/go-sqlite3"

	"github.com/hb9tf/bliss/cadence"
	"github.com/hb9tf/bliss/datasource"
	"github.com/hb9tf/bliss/event"
	"github.com/hb9tf/bliss/geometry"
	"github.com/hb9tf/bliss/hit"
	"github.com/hb9tf/bliss/noise"
	"github.com/hb9tf/bliss/pipeline"
	"github.com/hb9tf/bliss/protohit"
	"github.com/hb9tf/bliss/store"
	"github.com/hb9tf/bliss/waterfall"
)

var (
	output = flag.String("output", "stdout", "Sink to write results to (one of: stdout, sqlite, mysql, csv, elastic); stdout prints the events, the other sinks write every hit")

	// Fixture data source. A production HDF5/filterbank reader is external
	// per spec; -fixture synthesizes a cadence with an injected tone so the
	// pipeline can be exercised end to end without one.
	fixture                   = flag.Bool("fixture", true, "Use an in-memory synthetic cadence instead of a real data source")
	fixtureToneFreqIdx        = flag.Int("fixtureToneFreqIdx", 100, "Fine channel index to inject a synthetic tone at")
	fixtureToneDriftHzSec     = flag.Float64("fixtureToneDriftHzPerSec", 0, "Drift rate of the injected synthetic tone")
	fixtureNtsteps            = flag.Int("fixtureNtsteps", 16, "Number of time steps per fixture scan")
	fixtureNchans             = flag.Int("fixtureNchans", 256, "Number of fine channels per fixture scan")
	fixtureNumChannels        = flag.Int("fixtureNumChannels", 1, "Number of coarse channels in the fixture cadence")
	fixtureFineChansPerCoarse = flag.Int("fixtureFineChansPerCoarse", 256, "Fine channels per coarse channel")
	fixtureNumOffScans        = flag.Int("fixtureNumOffScans", 1, "Number of synthetic OFF scans to generate")

	// Drift search.
	lowRateHzPerSec  = flag.Float64("lowRateHzPerSec", -5, "Lowest drift rate to search, in Hz/s")
	highRateHzPerSec = flag.Float64("highRateHzPerSec", 5, "Highest drift rate to search, in Hz/s")
	driftResolution  = flag.Int("driftResolution", 1, "Drift-rate step size, in units of the unit drift rate (1 is finest; higher values search fewer, coarser-spaced rows)")
	desmear          = flag.Bool("desmear", true, "Desmear each drift row by its trajectory's channel span")

	// Protohit search.
	searchMethod   = flag.String("searchMethod", "connected_components", "Protohit search method (one of: connected_components, local_maxima)")
	snrThreshold   = flag.Float64("snrThreshold", protohit.DefaultHitSearchOptions().SNRThreshold, "Minimum SNR for a protohit")
	neighborL1Dist = flag.Int("neighborL1Dist", protohit.DefaultHitSearchOptions().NeighborL1Dist, "L1 neighborhood radius for protohit grouping")

	// Event search.
	matchThreshold     = flag.Float64("matchThreshold", event.DefaultEventSearchOptions().MatchThreshold, "Maximum distance for a hit to join an in-progress event")
	offRejectThreshold = flag.Float64("offRejectThreshold", event.DefaultEventSearchOptions().OffRejectThreshold, "Maximum mean distance to an OFF scan hit before an event is rejected")

	// SQLite
	sqliteFile = flag.String("sqliteFile", "/tmp/bliss.sqlite3", "File path of the sqlite DB file to use.")

	// MySQL
	mysqlServer       = flag.String("mysqlServer", "127.0.0.1:3306", "MySQL TCP server endpoint to connect to (IP/DNS and port).")
	mysqlUser         = flag.String("mysqlUser", "", "MySQL DB user.")
	mysqlPasswordFile = flag.String("mysqlPasswordFile", "", "Path to the file containing the password for the MySQL user.")
	mysqlDBName       = flag.String("mysqlDBName", "bliss", "Name of the DB to use.")

	// Elastic
	esEndpoints = flag.String("esEndpoints", "http://127.0.0.1:9200", "Comma-separated list of Elasticsearch endpoints to connect to.")
)

func detectionOptions() cadence.DetectionOptions {
	method := protohit.ConnectedComponents
	if strings.ToLower(*searchMethod) == "local_maxima" {
		method = protohit.LocalMaxima
	}
	return cadence.DetectionOptions{
		Drift: geometry.IntegrateDriftsOptions{
			Desmear:          *desmear,
			LowRateHzPerSec:  *lowRateHzPerSec,
			HighRateHzPerSec: *highRateHzPerSec,
			Resolution:       *driftResolution,
		},
		Search: protohit.HitSearchOptions{
			Method:         method,
			SNRThreshold:   *snrThreshold,
			NeighborL1Dist: *neighborL1Dist,
		},
		Filter: hit.FilterOptions{},
	}
}

// syntheticMemory builds a datasource.Memory carrying a linear-drift tone
// plus Gaussian noise, for -fixture mode.
func syntheticMemory(sourceName string, toneFreqIdx int, driftHzPerSec float64, rng *rand.Rand) *datasource.Memory {
	const foffMHz = 2.8e-6 // matches typical fine-channel spacing
	data := make([][]float32, *fixtureNtsteps)
	for t := range data {
		row := make([]float32, *fixtureNchans)
		for f := range row {
			row[f] = float32(rng.NormFloat64())
		}
		driftChans := driftHzPerSec * float64(t) / (foffMHz * 1e6)
		toneIdx := toneFreqIdx + int(driftChans+0.5)
		if toneIdx >= 0 && toneIdx < len(row) {
			row[toneIdx] += 20
		}
		data[t] = row
	}
	return &datasource.Memory{
		Data:   data,
		Fch1:   1420,
		Foff:   foffMHz,
		Tsamp:  1,
		Tstart: 58000,
		Source: sourceName,
		Target: sourceName,
	}
}

func buildFixtureCadence(detection cadence.DetectionOptions) (cadence.Cadence, error) {
	rng := rand.New(rand.NewSource(1))
	chain := pipeline.Chain{}

	makeScan := func(name string, drift float64) *cadence.Scan {
		ds := syntheticMemory(name, *fixtureToneFreqIdx, drift, rng)
		read := func(i int) (*waterfall.CoarseChannel, error) {
			return datasource.ReadCoarseChannel(ds, i, *fixtureFineChansPerCoarse)
		}
		return cadence.NewScan(name, *fixtureNumChannels, read, chain, noise.EstimateBasic, detection)
	}

	on := makeScan("on", *fixtureToneDriftHzSec)
	var offs []cadence.ObservationTarget
	for i := 0; i < *fixtureNumOffScans; i++ {
		name := fmt.Sprintf("off-%d", i)
		offs = append(offs, cadence.ObservationTarget{Name: name, IsOn: false, Scan: makeScan(name, 0)})
	}
	return cadence.NewCadence("on", on, offs...), nil
}

func main() {
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	flag.Parse()

	ctx := context.Background()
	detection := detectionOptions()

	if !*fixture {
		glog.Exitf("no production data source is wired in; run with -fixture")
	}
	cad, err := buildFixtureCadence(detection)
	if err != nil {
		glog.Exitf("unable to build fixture cadence: %s", err)
	}

	eventOpts := event.EventSearchOptions{MatchThreshold: *matchThreshold, OffRejectThreshold: *offRejectThreshold}
	events, err := event.Search(cad, eventOpts)
	if err != nil {
		glog.Exitf("event search failed: %s", err)
	}

	// The sqlite, mysql, csv and elastic sinks export every scan's
	// characterized hits, not only those that made it into an event: with a
	// single ON scan (the default fixture shape) no event can ever be
	// formed, since Search requires a hit to persist across more than one ON
	// scan. The stdout sink prints only the events.
	var allHits []hit.Hit
	for _, target := range cad.Targets {
		hits, err := target.Scan.Hits()
		if err != nil {
			glog.Exitf("unable to resolve hits for scan %q: %s", target.Name, err)
		}
		allHits = append(allHits, hits...)
	}
	glog.Infof("found %d events, %d hits across the cadence", len(events), len(allHits))

	switch strings.ToLower(*output) {
	case "stdout":
		for _, e := range events {
			fmt.Printf("event: drift=%.3f Hz/s power=%.3f snr=%.3f bandwidth=%.1f Hz hits=%d seenInOFF=%v\n",
				e.MeanDriftRateHzPerSec, e.MeanPower, e.MeanSNR, e.MeanBandwidthHz, len(e.Hits), e.SeenInOFF)
		}
	case "sqlite":
		sink := &store.SQLite{DBFile: *sqliteFile}
		if err := writeHits(ctx, sink, allHits); err != nil {
			glog.Exitf("sqlite write failed: %s", err)
		}
	case "mysql":
		pass, err := ioutil.ReadFile(*mysqlPasswordFile)
		if err != nil {
			glog.Exitf("unable to read MySQL password file %q: %s", *mysqlPasswordFile, err)
		}
		cfg := mysql.Config{
			User:   *mysqlUser,
			Passwd: strings.TrimSpace(string(pass)),
			Net:    "tcp",
			Addr:   *mysqlServer,
			DBName: *mysqlDBName,
		}
		db, err := sql.Open("mysql", cfg.FormatDSN())
		if err != nil {
			glog.Exitf("unable to open MySQL DB %q: %s", *mysqlServer, err)
		}
		db.SetConnMaxLifetime(3 * time.Minute)
		sink := &store.MySQL{DB: db}
		if err := writeHits(ctx, sink, allHits); err != nil {
			glog.Exitf("mysql write failed: %s", err)
		}
	case "csv":
		sink := &store.CSV{W: os.Stdout}
		if err := writeHits(ctx, sink, allHits); err != nil {
			glog.Exitf("csv write failed: %s", err)
		}
	case "elastic":
		esClient, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: strings.Split(*esEndpoints, ",")})
		if err != nil {
			glog.Exitf("failed to create elastic client: %s", err)
		}
		sink := &store.Elastic{Client: esClient}
		if err := writeHits(ctx, sink, allHits); err != nil {
			glog.Exitf("elastic write failed: %s", err)
		}
	default:
		glog.Exitf("%q is not a supported output sink, pick one of: stdout, sqlite, mysql, csv, elastic", *output)
	}

	glog.Flush()
}

type hitWriter interface {
	WriteHits(ctx context.Context, hits <-chan hit.Hit) error
}

func writeHits(ctx context.Context, sink hitWriter, hits []hit.Hit) error {
	ch := make(chan hit.Hit, len(hits))
	for _, h := range hits {
		ch <- h
	}
	close(ch)
	return sink.WriteHits(ctx, ch)
}
