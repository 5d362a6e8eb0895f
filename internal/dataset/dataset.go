// Package dataset seeds the campaign store from the demo portfolio
// JSON file plus static creative-format and property reference data.
package dataset

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/signal42/campaign-agent/internal/campaign"
)

// mediaBuyRecord is a media buy as stored in the dataset file, where
// contractual guarantees ride along on the campaign record.
type mediaBuyRecord struct {
	campaign.MediaBuy
	ContractualGuarantees []campaign.ContractualGuarantee `json:"contractual_guarantees,omitempty"`
}

// file is the dataset layout. Unknown top-level keys (query examples,
// metadata) are ignored.
type file struct {
	Products               []campaign.Product             `json:"products"`
	MediaBuys              []mediaBuyRecord               `json:"media_buys"`
	DeliveryMetrics        []campaign.DeliveryMetrics     `json:"delivery_metrics"`
	Aggregations           *campaign.Aggregations         `json:"aggregations"`
	PerformanceFeedbackLog []campaign.PerformanceFeedback `json:"performance_feedback_log"`
}

// Load reads the dataset at path into the store. Guarantees are split
// off the campaign records; formats and properties come from the
// static tables.
func Load(path string, store *campaign.Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read dataset: %w", err)
	}

	var f file
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse dataset: %w", err)
	}

	store.SetProducts(f.Products)
	for _, rec := range f.MediaBuys {
		store.UpsertMediaBuy(rec.MediaBuy)
		if len(rec.ContractualGuarantees) > 0 {
			store.SetGuarantees(rec.MediaBuyID, rec.ContractualGuarantees)
		}
	}
	for _, m := range f.DeliveryMetrics {
		store.UpsertMetrics(m)
	}
	if f.Aggregations != nil {
		store.SetAggregations(*f.Aggregations)
	}
	for _, fb := range f.PerformanceFeedbackLog {
		store.AppendFeedback(fb)
	}

	store.SetCreativeFormats(CreativeFormats())
	store.SetAuthorizedProperties(AuthorizedProperties())

	logger.Info("dataset loaded",
		"path", path,
		"products", len(f.Products),
		"media_buys", len(f.MediaBuys),
		"delivery_metrics", len(f.DeliveryMetrics),
		"feedback_entries", len(f.PerformanceFeedbackLog),
	)
	return nil
}
