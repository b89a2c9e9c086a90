// Package store persists Hit records to SQL databases (SQLite, MySQL) and
// exports them to CSV and Elasticsearch, grounded in export/sql.go,
// export/mysql.go, and collection/export/sqlite.go's
// create-table-if-not-exists + prepared insert + periodic progress-count
// logging pattern, retargeted from raw samples to the detection core's
// structured output. Events are not persisted. This is downstream
// serialization of results, not a substitute for the external hit/event
// text serializer spec §6 describes as out of scope for the core.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang/glog"

	"github.com/hb9tf/bliss/hit"
)

const progressEvery = 1000

const createHitsTableTmpl = `CREATE TABLE IF NOT EXISTS bliss_hits (
	"ID"                  INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
	"RateIndex"           INTEGER,
	"DriftRateHzPerSec"   REAL,
	"StartFreqIndex"      INTEGER,
	"StartFreqMHz"        REAL,
	"StartTimeSec"        REAL,
	"DurationSec"         REAL,
	"Power"               REAL,
	"SNR"                 REAL,
	"TimeSpanSteps"        INTEGER,
	"Binwidth"            INTEGER,
	"BandwidthHz"         REAL,
	"IntegratedChannels"  INTEGER,
	"CoarseChannelNumber" INTEGER,
	"RFILowSK"            INTEGER,
	"RFIHighSK"           INTEGER,
	"RFISigmaClip"        INTEGER
);`

const insertHitTmpl = `INSERT INTO bliss_hits (
	RateIndex, DriftRateHzPerSec, StartFreqIndex, StartFreqMHz, StartTimeSec,
	DurationSec, Power, SNR, TimeSpanSteps, Binwidth, BandwidthHz,
	IntegratedChannels, CoarseChannelNumber, RFILowSK, RFIHighSK, RFISigmaClip
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

const selectHitsTmpl = `SELECT
	RateIndex, DriftRateHzPerSec, StartFreqIndex, StartFreqMHz, StartTimeSec,
	DurationSec, Power, SNR, TimeSpanSteps, Binwidth, BandwidthHz,
	IntegratedChannels, CoarseChannelNumber, RFILowSK, RFIHighSK, RFISigmaClip
FROM bliss_hits;`

// createHitsTable creates the hits table if it does not already exist.
func createHitsTable(db *sql.DB) error {
	stmt, err := db.Prepare(createHitsTableTmpl)
	if err != nil {
		return err
	}
	_, err = stmt.Exec()
	return err
}

// writeHits drains hits into db, logging progress every 1000 rows. A
// per-row insert error is logged and skipped rather than aborting the
// whole stream.
func writeHits(ctx context.Context, db *sql.DB, hits <-chan hit.Hit) error {
	if err := createHitsTable(db); err != nil {
		return fmt.Errorf("unable to create hits table: %s", err)
	}

	counts := map[string]int{"error": 0, "success": 0, "total": 0}
	for h := range hits {
		counts["total"]++
		if err := insertHit(db, h); err != nil {
			counts["error"]++
			glog.Warningf("error storing hit: %s\n", err)
			continue
		}
		counts["success"]++
		if counts["total"]%progressEvery == 0 {
			glog.Infof("Hit export counts: %+v\n", counts)
		}
	}
	return nil
}

func insertHit(db *sql.DB, h hit.Hit) error {
	stmt, err := db.Prepare(insertHitTmpl)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(
		h.RateIndex, h.DriftRateHzPerSec, h.StartFreqIndex, h.StartFreqMHz, h.StartTimeSec,
		h.DurationSec, h.Power, h.SNR, h.TimeSpanSteps, h.Binwidth, h.BandwidthHz,
		h.IntegratedChannels, h.CoarseChannelNumber, h.RFICounts.LowSK, h.RFICounts.HighSK, h.RFICounts.SigmaClip,
	)
	return err
}

// readHits loads every row of the hits table, e.g. to rebuild a
// cadence.Cadence for a later EventSearch pass over already-persisted
// hits.
func readHits(db *sql.DB) ([]hit.Hit, error) {
	rows, err := db.Query(selectHitsTmpl)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hit.Hit
	for rows.Next() {
		var h hit.Hit
		if err := rows.Scan(
			&h.RateIndex, &h.DriftRateHzPerSec, &h.StartFreqIndex, &h.StartFreqMHz, &h.StartTimeSec,
			&h.DurationSec, &h.Power, &h.SNR, &h.TimeSpanSteps, &h.Binwidth, &h.BandwidthHz,
			&h.IntegratedChannels, &h.CoarseChannelNumber, &h.RFICounts.LowSK, &h.RFICounts.HighSK, &h.RFICounts.SigmaClip,
		); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
