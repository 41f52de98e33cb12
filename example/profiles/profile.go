package profiles

import (
	"context"
	"fmt"
	"slices"

	"github.com/AntonStoeckl/unitofwork-go/unitofwork"
)

// Kind is the identity kind of profiles.
const Kind = "profiles"

const (
	FieldProfile  = "profile"
	FieldNumEvals = "num_evals"
	FieldCost     = "cost"
	FieldKPIs     = "kpis"
)

// Schema declares the tracked fields of a Profile.
var Schema = unitofwork.MustBuildSchema(
	unitofwork.Scalar[string](FieldProfile),
	unitofwork.Scalar[int](FieldNumEvals),
	unitofwork.Collection[float64](FieldCost),
	unitofwork.Collection[string](FieldKPIs),
)

// Profile is an evaluation profile identified by ProfileID.
type Profile struct {
	ProfileID int
	Profile   string
	NumEvals  int
	Cost      []float64
	KPIs      []string
}

// New creates a profile with empty collections and no evaluations.
func New(profileID int, profile string) *Profile {
	return &Profile{
		ProfileID: profileID,
		Profile:   profile,
		Cost:      []float64{},
		KPIs:      []string{},
	}
}

// IdentityOf returns the identity of the profile with the given id.
func IdentityOf(profileID int) unitofwork.Identity {
	return unitofwork.NewIdentity(Kind, profileID)
}

func (p *Profile) Identity() unitofwork.Identity {
	return IdentityOf(p.ProfileID)
}

func (p *Profile) Schema() unitofwork.Schema {
	return Schema
}

func (p *Profile) FieldValue(name string) any {
	switch name {
	case FieldProfile:
		return p.Profile
	case FieldNumEvals:
		return p.NumEvals
	case FieldCost:
		return p.Cost
	case FieldKPIs:
		return p.KPIs
	default:
		return nil
	}
}

func (p *Profile) AssignField(name string, value any) error {
	var ok bool

	switch name {
	case FieldProfile:
		p.Profile, ok = value.(string)
	case FieldNumEvals:
		p.NumEvals, ok = value.(int)
	case FieldCost:
		p.Cost, ok = value.([]float64)
	case FieldKPIs:
		p.KPIs, ok = value.([]string)
	default:
		return fmt.Errorf("%w: %s", unitofwork.ErrUnknownField, name)
	}

	if !ok {
		return fmt.Errorf("profiles: value of type %T can't be assigned to %s", value, name)
	}

	return nil
}

// RecordEvaluation adds the cost and KPI of one evaluation. The collections are
// replaced with extended copies rather than appended to in place, so the tracker sees
// the change without MarkDirty.
func (p *Profile) RecordEvaluation(cost float64, kpi string) {
	p.Cost = append(slices.Clone(p.Cost), cost)
	p.KPIs = append(slices.Clone(p.KPIs), kpi)
	p.NumEvals++
}

// FromFieldValues returns a constructor for UnitOfWork.Load that builds the profile with the given id.
func FromFieldValues(profileID int) func(values unitofwork.FieldValues) (unitofwork.Entity, error) {
	return func(values unitofwork.FieldValues) (unitofwork.Entity, error) {
		p := &Profile{ProfileID: profileID}

		for name, value := range values {
			if value == nil {
				continue
			}

			if err := p.AssignField(name, value); err != nil {
				return nil, err
			}
		}

		return p, nil
	}
}

// Load returns the profile with the given id, attached to uow.
func Load(ctx context.Context, uow *unitofwork.UnitOfWork, profileID int) (*Profile, error) {
	entity, err := uow.Load(ctx, IdentityOf(profileID), FromFieldValues(profileID))
	if err != nil {
		return nil, err
	}

	return entity.(*Profile), nil
}

// Save stores a new profile in its own Unit of Work. The profile is detached afterward.
func Save(ctx context.Context, tracker *unitofwork.Tracker, p *Profile) error {
	return tracker.Run(ctx, func(_ context.Context, uow *unitofwork.UnitOfWork) error {
		return uow.Add(p)
	})
}

// Update persists changes a detached profile received since it was last persisted.
// The profile is reattached against the persisted state in a fresh Unit of Work,
// so whether or not it was attached before doesn't change the outcome.
func Update(ctx context.Context, tracker *unitofwork.Tracker, p *Profile) error {
	return tracker.Run(ctx, func(ctx context.Context, uow *unitofwork.UnitOfWork) error {
		return uow.Reattach(ctx, p)
	})
}

// Delete removes a persisted profile in its own Unit of Work. The profile is reattached
// first, so a profile loaded or saved in an earlier Unit of Work can be deleted.
func Delete(ctx context.Context, tracker *unitofwork.Tracker, p *Profile) error {
	return tracker.Run(ctx, func(ctx context.Context, uow *unitofwork.UnitOfWork) error {
		if err := uow.Reattach(ctx, p); err != nil {
			return err
		}

		return uow.Remove(p)
	})
}
