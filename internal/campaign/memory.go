package campaign

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory for tests and local runs
type MemoryStore struct {
	mu         sync.Mutex
	campaigns  map[string]*Campaign
	recipients map[string]*Recipient
	dispatches map[string]*DispatchRecord // campaignID + "|" + windowKey
	engagement map[string]*Engagement
}

// NewMemoryStore creates an in-memory campaign store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns:  make(map[string]*Campaign),
		recipients: make(map[string]*Recipient),
		dispatches: make(map[string]*DispatchRecord),
		engagement: make(map[string]*Engagement),
	}
}

// PutCampaign inserts or replaces a campaign
func (s *MemoryStore) PutCampaign(camp *Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *camp
	s.campaigns[camp.ID] = &copy
}

// PutRecipient inserts or replaces a recipient
func (s *MemoryStore) PutRecipient(recipient *Recipient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *recipient
	if recipient.LastSends != nil {
		copy.LastSends = make(map[string]time.Time, len(recipient.LastSends))
		for k, v := range recipient.LastSends {
			copy.LastSends[k] = v
		}
	}
	s.recipients[recipient.ID] = &copy
}

// GetCampaign fetches a campaign by id
func (s *MemoryStore) GetCampaign(ctx context.Context, campaignID string) (*Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	camp, ok := s.campaigns[campaignID]
	if !ok {
		return nil, ErrCampaignNotFound
	}
	copy := *camp
	return &copy, nil
}

// ListRecipients returns the population for a segment predicate
func (s *MemoryStore) ListRecipients(ctx context.Context, segment string) ([]*Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Recipient
	for _, recipient := range s.recipients {
		if !recipient.InSegment(segment) {
			continue
		}
		copy := *recipient
		out = append(out, &copy)
	}
	return out, nil
}

// BeginDispatch claims the (campaign, window) pair
func (s *MemoryStore) BeginDispatch(ctx context.Context, campaignID, windowKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := campaignID + "|" + windowKey
	if _, exists := s.dispatches[key]; exists {
		return false, nil
	}
	s.dispatches[key] = &DispatchRecord{
		CampaignID:   campaignID,
		WindowKey:    windowKey,
		DispatchedAt: time.Now(),
	}
	return true, nil
}

// CompleteDispatch records how many jobs the dispatch enqueued
func (s *MemoryStore) CompleteDispatch(ctx context.Context, campaignID, windowKey string, enqueued int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.dispatches[campaignID+"|"+windowKey]; ok {
		record.EnqueuedCount = enqueued
	}
	return nil
}

// MarkRecipientSent stamps the recipient's last send for a category
func (s *MemoryStore) MarkRecipientSent(ctx context.Context, recipientID, category string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipient, ok := s.recipients[recipientID]
	if !ok {
		return nil
	}
	if recipient.LastSends == nil {
		recipient.LastSends = make(map[string]time.Time)
	}
	recipient.LastSends[category] = at
	return nil
}

// RecordEngagement applies one externally-reported tracking event
func (s *MemoryStore) RecordEngagement(ctx context.Context, campaignID string, kind EngagementKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.campaigns[campaignID]; !ok {
		return ErrCampaignNotFound
	}
	engagement, ok := s.engagement[campaignID]
	if !ok {
		engagement = &Engagement{}
		s.engagement[campaignID] = engagement
	}
	switch kind {
	case EngagementOpened:
		engagement.Opened++
	case EngagementClicked:
		engagement.Clicked++
	case EngagementBounced:
		engagement.Bounced++
	default:
		return ErrUnknownEngagementKind
	}
	return nil
}

// GetEngagement returns accumulated engagement counters
func (s *MemoryStore) GetEngagement(ctx context.Context, campaignID string) (Engagement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.campaigns[campaignID]; !ok {
		return Engagement{}, ErrCampaignNotFound
	}
	if engagement, ok := s.engagement[campaignID]; ok {
		return *engagement, nil
	}
	return Engagement{}, nil
}
