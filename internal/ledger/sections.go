package ledger

import (
	"context"
	"strings"

	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
	"github.com/trogers1052/trade-ledger/internal/tenant"
)

// DefaultSections are created for new users
var DefaultSections = []models.HoldingSection{
	{Name: "Core Holdings", Color: "#3B82F6", IsDefault: true},
	{Name: "Probe Holdings", Color: "#10B981", IsDefault: true},
}

// Sections manages holding sections and position membership
type Sections struct {
	store SectionStore
}

// NewSections creates a Sections service
func NewSections(store SectionStore) *Sections {
	return &Sections{store: store}
}

// Reorder assigns contiguous positions from 0 following orderedIDs, which
// must name every section exactly once
func Reorder(sections []*models.HoldingSection, orderedIDs []int64) error {
	v := &apperrors.ValidationError{}
	if len(orderedIDs) != len(sections) {
		v.Add("section_ids", "must list every section exactly once")
		return v
	}

	byID := make(map[int64]*models.HoldingSection, len(sections))
	for _, s := range sections {
		byID[s.ID] = s
	}
	seen := make(map[int64]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, ok := byID[id]; !ok || seen[id] {
			v.Add("section_ids", "must list every section exactly once")
			return v
		}
		seen[id] = true
	}

	for i, id := range orderedIDs {
		byID[id].Position = i
	}
	return nil
}

// List returns the tenant's sections in display order
func (s *Sections) List(ctx context.Context, tn tenant.Tenant) ([]*models.HoldingSection, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	return s.store.ListHoldingSections(ctx, tn.UserID())
}

func validateSection(sec *models.HoldingSection) error {
	v := &apperrors.ValidationError{}
	sec.Name = strings.TrimSpace(sec.Name)
	if sec.Name == "" {
		v.Add("name", "can't be blank")
	}
	if sec.Color == "" {
		sec.Color = models.DefaultSectionColor
	}
	return v.Err()
}

// Create appends a section after the tenant's existing ones
func (s *Sections) Create(ctx context.Context, tn tenant.Tenant, sec *models.HoldingSection) (*models.HoldingSection, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	if err := validateSection(sec); err != nil {
		return nil, err
	}
	sec.UserID = tn.UserID()

	err := s.store.InTx(ctx, func(ctx context.Context) error {
		max, ok, err := s.store.MaxSectionPosition(ctx, tn.UserID())
		if err != nil {
			return err
		}
		sec.Position = 0
		if ok {
			sec.Position = max + 1
		}
		return s.store.CreateHoldingSection(ctx, sec)
	})
	if err != nil {
		return nil, err
	}
	return sec, nil
}

// CreateDefaults creates the default sections for a new user
func (s *Sections) CreateDefaults(ctx context.Context, tn tenant.Tenant) ([]*models.HoldingSection, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	var created []*models.HoldingSection
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		for _, def := range DefaultSections {
			sec := def
			if _, err := s.Create(ctx, tn, &sec); err != nil {
				return err
			}
			created = append(created, &sec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SectionUpdate lists the editable fields of a section
type SectionUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

// Update edits a section's name, description or color
func (s *Sections) Update(ctx context.Context, tn tenant.Tenant, id int64, u SectionUpdate) (*models.HoldingSection, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	var sec *models.HoldingSection
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		sec, err = s.store.GetHoldingSection(ctx, tn.UserID(), id)
		if err != nil {
			return err
		}
		if u.Name != nil {
			sec.Name = *u.Name
		}
		if u.Description != nil {
			sec.Description = *u.Description
		}
		if u.Color != nil {
			sec.Color = *u.Color
		}
		if err := validateSection(sec); err != nil {
			return err
		}
		return s.store.UpdateHoldingSection(ctx, sec)
	})
	if err != nil {
		return nil, err
	}
	return sec, nil
}

// Delete removes a section. Its positions stay, with no section.
func (s *Sections) Delete(ctx context.Context, tn tenant.Tenant, id int64) error {
	if err := tn.Check(); err != nil {
		return err
	}
	return s.store.DeleteHoldingSection(ctx, tn.UserID(), id)
}

// ReorderSections persists a new display order for the tenant's sections
func (s *Sections) ReorderSections(ctx context.Context, tn tenant.Tenant, orderedIDs []int64) ([]*models.HoldingSection, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	var sections []*models.HoldingSection
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		sections, err = s.store.ListHoldingSections(ctx, tn.UserID())
		if err != nil {
			return err
		}
		if err := Reorder(sections, orderedIDs); err != nil {
			return err
		}
		return s.store.SetSectionOrder(ctx, tn.UserID(), orderedIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.store.ListHoldingSections(ctx, tn.UserID())
}

// MovePosition assigns a position to a section, or clears its section when
// sectionID is nil
func (s *Sections) MovePosition(ctx context.Context, tn tenant.Tenant, positionID int64, sectionID *int64) (*models.Position, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	var p *models.Position
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.store.GetPosition(ctx, tn.UserID(), positionID)
		if err != nil {
			return err
		}
		if sectionID != nil {
			if _, err := s.store.GetHoldingSection(ctx, tn.UserID(), *sectionID); err != nil {
				return err
			}
		}
		if err := s.store.SetPositionSection(ctx, tn.UserID(), positionID, sectionID); err != nil {
			return err
		}
		p.HoldingSectionID = sectionID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SectionHoldings is one section with its open positions
type SectionHoldings struct {
	Section   *models.HoldingSection `json:"section"`
	Positions []*models.Position     `json:"positions"`
}

// Holdings groups the tenant's open positions by section, in section order.
// Positions without a section come back separately.
func (s *Sections) Holdings(ctx context.Context, tn tenant.Tenant) ([]SectionHoldings, []*models.Position, error) {
	if err := tn.Check(); err != nil {
		return nil, nil, err
	}
	sections, err := s.store.ListHoldingSections(ctx, tn.UserID())
	if err != nil {
		return nil, nil, err
	}
	positions, err := s.store.ListPositions(ctx, tn.UserID(), 0, models.PositionStatusOpen)
	if err != nil {
		return nil, nil, err
	}

	groups := make([]SectionHoldings, len(sections))
	index := make(map[int64]int, len(sections))
	for i, sec := range sections {
		groups[i] = SectionHoldings{Section: sec, Positions: []*models.Position{}}
		index[sec.ID] = i
	}
	var unassigned []*models.Position
	for _, p := range positions {
		if p.HoldingSectionID != nil {
			if i, ok := index[*p.HoldingSectionID]; ok {
				groups[i].Positions = append(groups[i].Positions, p)
				continue
			}
		}
		unassigned = append(unassigned, p)
	}
	return groups, unassigned, nil
}
