package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	elasticsearch "github.com/elastic/go-elasticsearch/v7"
	esapi "github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/golang/glog"

	"github.com/hb9tf/bliss/hit"
)

const (
	esIndexName      = "bliss_hits"
	esHitsCountEvery = 1000
)

// Elastic indexes hits into Elasticsearch, grounded in export/elastic.go's
// info-then-index-per-document shape, retargeted from raw samples to
// structured hits. There is no ReadHits: Elastic is a one-way export sink
// here, same as CSV.
type Elastic struct {
	Client *elasticsearch.Client
}

func hitDocID(channel, rateIndex, startFreqIndex int) string {
	return fmt.Sprintf("%d::%d::%d", channel, rateIndex, startFreqIndex)
}

// WriteHits drains hits into the configured Elasticsearch index.
func (e *Elastic) WriteHits(ctx context.Context, hits <-chan hit.Hit) error {
	res, err := e.Client.Info()
	if err != nil {
		return err
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	glog.Infof("using Elastic client version %s and connected to server: %s", elasticsearch.Version, body)
	res.Body.Close()

	counts := map[string]int{"error": 0, "success": 0, "total": 0}
	for h := range hits {
		counts["total"]++
		b, err := json.Marshal(h)
		if err != nil {
			counts["error"]++
			glog.Warningf("error marshalling hit: %s\n", err)
			continue
		}
		req := esapi.IndexRequest{
			Index:      esIndexName,
			DocumentID: hitDocID(h.CoarseChannelNumber, h.RateIndex, h.StartFreqIndex),
			Body:       bytes.NewReader(b),
			Refresh:    "true",
		}
		indexRes, err := req.Do(ctx, e.Client)
		if err != nil {
			counts["error"]++
			glog.Warningf("error indexing hit: %s\n", err)
			continue
		}
		indexRes.Body.Close()

		counts["success"]++
		if counts["total"]%esHitsCountEvery == 0 {
			glog.Infof("hit export counts: %+v\n", counts)
		}
	}
	return nil
}
