package campaign

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/crm-engine/internal/domain"
	"github.com/ignite/crm-engine/internal/segmentation"
)

// Dispatcher hands a saved campaign to delivery. The orchestrator in
// internal/delivery implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, c *domain.Campaign, groups []segmentation.RuleGroup) error
	ComputeAudience(ctx context.Context, groups []segmentation.RuleGroup) (int, error)
}

// Service implements campaign business logic. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo       Repository
	dispatcher Dispatcher
}

// NewService creates a campaign service backed by the given repository and
// dispatcher.
func NewService(repo Repository, dispatcher Dispatcher) *Service {
	return &Service{repo: repo, dispatcher: dispatcher}
}

// SaveInput holds the fields for creating or updating a campaign.
type SaveInput struct {
	Name            string                   `json:"name"`
	MessageTemplate string                   `json:"message_template"`
	Rules           []segmentation.RuleGroup `json:"rules"`
	CreatedBy       *uuid.UUID               `json:"created_by"`
}

func (in SaveInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.MessageTemplate) == "" {
		return fmt.Errorf("%w: message_template is required", ErrInvalidInput)
	}
	return nil
}

// View is a campaign with its rules reconstructed into groups, plus delivery
// stats where the caller asked for them.
type View struct {
	domain.Campaign
	Rules []segmentation.RuleGroup `json:"rules"`
	Stats *DeliveryStats           `json:"stats,omitempty"`
}

// Create persists a campaign with its auto-generated segment and rules, then
// dispatches it synchronously. Dispatch failures are logged, not returned:
// the campaign is saved either way and stays pending for inspection.
func (s *Service) Create(ctx context.Context, in SaveInput) (*View, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	seg := &domain.Segment{
		ID:          uuid.New(),
		Name:        in.Name + " - Segment",
		Description: "Auto-generated segment for campaign: " + in.Name,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c := &domain.Campaign{
		ID:              uuid.New(),
		SegmentID:       seg.ID,
		Name:            in.Name,
		MessageTemplate: in.MessageTemplate,
		Status:          domain.CampaignPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, seg, rulesFromGroups(seg.ID, in.Rules), c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	s.dispatch(ctx, c, in.Rules)
	return &View{Campaign: *c, Rules: in.Rules}, nil
}

// Update replaces a campaign's fields and its rule set wholesale, renames
// the auto-generated segment along with it, then re-dispatches.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in SaveInput) (*View, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name = in.Name
	c.MessageTemplate = in.MessageTemplate
	c.UpdatedAt = time.Now()

	seg := &domain.Segment{
		ID:          c.SegmentID,
		Name:        in.Name + " - Segment",
		Description: "Auto-generated segment for campaign: " + in.Name,
		UpdatedAt:   c.UpdatedAt,
	}
	if err := s.repo.Replace(ctx, c, seg, rulesFromGroups(c.SegmentID, in.Rules)); err != nil {
		return nil, fmt.Errorf("update campaign: %w", err)
	}

	s.dispatch(ctx, c, in.Rules)
	return &View{Campaign: *c, Rules: in.Rules}, nil
}

// dispatch runs delivery synchronously and swallows failures. A campaign
// whose dispatch fails simply never reaches completed.
func (s *Service) dispatch(ctx context.Context, c *domain.Campaign, groups []segmentation.RuleGroup) {
	if err := s.dispatcher.Dispatch(ctx, c, groups); err != nil {
		log.Printf("[campaign.Service] dispatch of campaign %s failed: %v", c.ID, err)
		return
	}
	c.Status = domain.CampaignCompleted
}

// Get returns one campaign with its rules reconstructed into groups.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rules, err := s.repo.Rules(ctx, c.SegmentID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return &View{Campaign: *c, Rules: GroupsFromRules(rules)}, nil
}

// List returns all campaigns newest-first, each with its delivery stats.
func (s *Service) List(ctx context.Context) ([]View, error) {
	campaigns, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(campaigns))
	for i := range campaigns {
		ids[i] = campaigns[i].ID
	}
	stats, err := s.repo.DeliveryStats(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load delivery stats: %w", err)
	}

	views := make([]View, len(campaigns))
	for i := range campaigns {
		views[i] = View{Campaign: campaigns[i]}
		if st, ok := stats[campaigns[i].ID]; ok {
			s := st
			views[i].Stats = &s
		} else {
			views[i].Stats = &DeliveryStats{}
		}
	}
	return views, nil
}

// UpdateStatus validates the status value and persists it. No transition
// rules apply beyond enum membership.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	if !domain.ValidCampaignStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

// CountAudience resolves how many customers the rule groups currently match.
func (s *Service) CountAudience(ctx context.Context, groups []segmentation.RuleGroup) (int, error) {
	return s.dispatcher.ComputeAudience(ctx, groups)
}

// rulesFromGroups flattens rule groups into persistable rows. Groups are
// numbered from 1; a condition's logic flag is stored as logical_op,
// defaulting to AND.
func rulesFromGroups(segmentID uuid.UUID, groups []segmentation.RuleGroup) []domain.SegmentRule {
	var rules []domain.SegmentRule
	for gi, g := range groups {
		for _, cond := range g.Conditions {
			op := cond.Logic
			if op == "" {
				op = "AND"
			}
			rules = append(rules, domain.SegmentRule{
				ID:           uuid.New(),
				SegmentID:    segmentID,
				Field:        cond.Field,
				Operator:     cond.Operator,
				Value:        cond.Value,
				LogicalGroup: gi + 1,
				LogicalOp:    op,
			})
		}
	}
	return rules
}

// GroupsFromRules reassembles persisted rows into ordered rule groups by
// logical_group.
func GroupsFromRules(rules []domain.SegmentRule) []segmentation.RuleGroup {
	sorted := make([]domain.SegmentRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LogicalGroup < sorted[j].LogicalGroup
	})

	var groups []segmentation.RuleGroup
	lastGroup := -1
	for _, r := range sorted {
		if r.LogicalGroup != lastGroup {
			groups = append(groups, segmentation.RuleGroup{})
			lastGroup = r.LogicalGroup
		}
		gi := len(groups) - 1
		groups[gi].Conditions = append(groups[gi].Conditions, segmentation.Condition{
			Field:    r.Field,
			Operator: r.Operator,
			Value:    r.Value,
			Logic:    r.LogicalOp,
		})
	}
	return groups
}
