package campaign

import (
	"fmt"
	"strings"
	"sync"
)

// Store is the in-memory campaign state: media buys, delivery metrics,
// reference data, guarantees, and the feedback log.
//
// Reads return deep copies. All writes to an existing campaign go
// through Mutate, which holds a per-campaign lock for the duration of
// the mutation so concurrent conversations targeting the same campaign
// cannot interleave partial updates.
type Store struct {
	mu sync.RWMutex

	mediaBuys  map[string]MediaBuy
	order      []string // insertion order for stable listings
	metrics    map[string]DeliveryMetrics
	guarantees map[string][]ContractualGuarantee

	products   []Product
	formats    []CreativeFormat
	properties []AuthorizedProperty

	aggregations *Aggregations
	feedbackLog  []PerformanceFeedback

	campaignLocks map[string]*sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		mediaBuys:     make(map[string]MediaBuy),
		metrics:       make(map[string]DeliveryMetrics),
		guarantees:    make(map[string][]ContractualGuarantee),
		campaignLocks: make(map[string]*sync.Mutex),
	}
}

// MediaBuy returns a copy of the media buy with the given id.
func (s *Store) MediaBuy(id string) (MediaBuy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mb, ok := s.mediaBuys[id]
	if !ok {
		return MediaBuy{}, false
	}
	return mb.Clone(), true
}

// UpsertMediaBuy inserts or replaces a media buy.
func (s *Store) UpsertMediaBuy(mb MediaBuy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.mediaBuys[mb.MediaBuyID]; !exists {
		s.order = append(s.order, mb.MediaBuyID)
	}
	s.mediaBuys[mb.MediaBuyID] = mb.Clone()
}

// Metrics returns a copy of the delivery metrics for the given media buy.
func (s *Store) Metrics(id string) (DeliveryMetrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metrics[id]
	if !ok {
		return DeliveryMetrics{}, false
	}
	return m.Clone(), true
}

// UpsertMetrics inserts or replaces delivery metrics.
func (s *Store) UpsertMetrics(m DeliveryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[m.MediaBuyID] = m.Clone()
}

// List returns all media buys in insertion order.
func (s *Store) List() []MediaBuy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MediaBuy, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.mediaBuys[id].Clone())
	}
	return out
}

// ListMetrics returns delivery metrics for all media buys in insertion order.
func (s *Store) ListMetrics() []DeliveryMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DeliveryMetrics, 0, len(s.order))
	for _, id := range s.order {
		if m, ok := s.metrics[id]; ok {
			out = append(out, m.Clone())
		}
	}
	return out
}

// ResolveID maps a campaign id, brand name, or buyer ref to a media buy
// id. Exact id match wins; otherwise a case-insensitive substring match
// against id, brand name, and buyer ref, first (insertion-order) hit wins.
func (s *Store) ResolveID(nameOrID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.mediaBuys[nameOrID]; ok {
		return nameOrID, true
	}

	needle := strings.ToLower(strings.TrimSpace(nameOrID))
	if needle == "" {
		return "", false
	}
	for _, id := range s.order {
		mb := s.mediaBuys[id]
		if strings.Contains(strings.ToLower(id), needle) ||
			strings.Contains(strings.ToLower(mb.BrandManifest.Name), needle) ||
			strings.Contains(strings.ToLower(mb.BuyerRef), needle) {
			return id, true
		}
	}
	return "", false
}

// Mutate runs fn against the media buy and metrics for id under a
// per-campaign lock. fn receives copies; on success both are written
// back atomically. If fn returns an error nothing is stored.
func (s *Store) Mutate(id string, fn func(mb *MediaBuy, m *DeliveryMetrics) error) error {
	lock := s.campaignLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	mb, okBuy := s.mediaBuys[id]
	m, okMetrics := s.metrics[id]
	s.mu.RUnlock()
	if !okBuy {
		return fmt.Errorf("media buy not found: %s", id)
	}
	if !okMetrics {
		return fmt.Errorf("delivery metrics not found for: %s", id)
	}

	mbCopy := mb.Clone()
	mCopy := m.Clone()
	if err := fn(&mbCopy, &mCopy); err != nil {
		return err
	}

	s.mu.Lock()
	s.mediaBuys[id] = mbCopy
	s.metrics[id] = mCopy
	s.mu.Unlock()
	return nil
}

func (s *Store) campaignLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.campaignLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.campaignLocks[id] = lock
	}
	return lock
}

// Guarantees returns the contractual guarantees for a media buy.
// The slice may be empty; a campaign without guarantees is not a breach.
func (s *Store) Guarantees(id string) []ContractualGuarantee {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ContractualGuarantee(nil), s.guarantees[id]...)
}

// SetGuarantees attaches contractual guarantees to a media buy.
func (s *Store) SetGuarantees(id string, gs []ContractualGuarantee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guarantees[id] = append([]ContractualGuarantee(nil), gs...)
}

// Products returns all products.
func (s *Store) Products() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Product(nil), s.products...)
}

// SetProducts replaces the product catalog.
func (s *Store) SetProducts(ps []Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append([]Product(nil), ps...)
}

// CreativeFormats returns the supported creative formats.
func (s *Store) CreativeFormats() []CreativeFormat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]CreativeFormat(nil), s.formats...)
}

// SetCreativeFormats replaces the creative format reference data.
func (s *Store) SetCreativeFormats(fs []CreativeFormat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formats = append([]CreativeFormat(nil), fs...)
}

// AuthorizedProperties returns the authorized publisher properties.
func (s *Store) AuthorizedProperties() []AuthorizedProperty {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]AuthorizedProperty(nil), s.properties...)
}

// SetAuthorizedProperties replaces the property reference data.
func (s *Store) SetAuthorizedProperties(ps []AuthorizedProperty) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties = append([]AuthorizedProperty(nil), ps...)
}

// Aggregations returns the portfolio rollup view, if loaded.
func (s *Store) Aggregations() (Aggregations, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.aggregations == nil {
		return Aggregations{}, false
	}
	return *s.aggregations, true
}

// SetAggregations replaces the portfolio rollup view.
func (s *Store) SetAggregations(a Aggregations) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregations = &a
}

// Feedback returns the feedback log, optionally filtered by media buy id.
func (s *Store) Feedback(mediaBuyID string) []PerformanceFeedback {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if mediaBuyID == "" {
		return append([]PerformanceFeedback(nil), s.feedbackLog...)
	}
	var out []PerformanceFeedback
	for _, fb := range s.feedbackLog {
		if fb.MediaBuyID == mediaBuyID {
			out = append(out, fb)
		}
	}
	return out
}

// AppendFeedback records a feedback entry.
func (s *Store) AppendFeedback(fb PerformanceFeedback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedbackLog = append(s.feedbackLog, fb)
}
