package core

import (
	"context"

	"github.com/JonMunkholm/fuelledger/internal/policy"
	"github.com/JonMunkholm/fuelledger/internal/store"
)

const trucksCollection = "trucks"

// Truck is a registered truck and its compartment capacities. Compartments
// 1-3 are required; 4-6 exist on larger tankers only.
type Truck struct {
	TruckNo     string `json:"truck_no" validate:"required"`
	Owner       string `json:"owner" validate:"required"`
	Transporter string `json:"transporter" validate:"required"`
	Driver      string `json:"driver" validate:"required"`

	AGOComp1 string `json:"ago_comp_1" validate:"required,numstr"`
	AGOComp2 string `json:"ago_comp_2" validate:"required,numstr"`
	AGOComp3 string `json:"ago_comp_3" validate:"required,numstr"`
	AGOComp4 string `json:"ago_comp_4,omitempty" validate:"omitempty,numstr"`
	AGOComp5 string `json:"ago_comp_5,omitempty" validate:"omitempty,numstr"`
	AGOComp6 string `json:"ago_comp_6,omitempty" validate:"omitempty,numstr"`

	PMS1 string `json:"pms_1" validate:"required,numstr"`
	PMS2 string `json:"pms_2" validate:"required,numstr"`
	PMS3 string `json:"pms_3" validate:"required,numstr"`
	PMS4 string `json:"pms_4,omitempty" validate:"omitempty,numstr"`
	PMS5 string `json:"pms_5,omitempty" validate:"omitempty,numstr"`
	PMS6 string `json:"pms_6,omitempty" validate:"omitempty,numstr"`
}

// TruckView is a truck with its key and compartment totals.
type TruckView struct {
	ID string `json:"id"`
	Truck
	AGOTotal string `json:"agoTotal"`
	PMSTotal string `json:"pmsTotal"`
}

// Totals sums all six compartments of each product.
func (t Truck) Totals() (ago, pms string) {
	ago = Money(Sum(t.AGOComp1, t.AGOComp2, t.AGOComp3, t.AGOComp4, t.AGOComp5, t.AGOComp6))
	pms = Money(Sum(t.PMS1, t.PMS2, t.PMS3, t.PMS4, t.PMS5, t.PMS6))
	return ago, pms
}

func truckView(id string, t Truck) TruckView {
	ago, pms := t.Totals()
	return TruckView{ID: id, Truck: t, AGOTotal: ago, PMSTotal: pms}
}

// CreateTruck registers a truck.
func (s *Service) CreateTruck(ctx context.Context, t Truck) (TruckView, error) {
	if err := validateStruct(s.validate, t); err != nil {
		return TruckView{}, err
	}
	rec, err := store.Encode(t)
	if err != nil {
		return TruckView{}, err
	}
	id, err := s.store.Create(context.WithoutCancel(ctx), trucksCollection, rec)
	if err != nil {
		return TruckView{}, remote("create truck", err)
	}

	s.recordAudit(ctx, AuditLogParams{
		Action:   ActionTruckCreate,
		Path:     store.Join(trucksCollection, id),
		NewValue: rec,
	})
	return truckView(id, t), nil
}

// ListTrucks returns every truck with its totals.
func (s *Service) ListTrucks(ctx context.Context) ([]TruckView, error) {
	snaps, err := s.store.List(ctx, trucksCollection)
	if err != nil {
		return nil, remote("list trucks", err)
	}
	out := make([]TruckView, 0, len(snaps))
	for _, snap := range snaps {
		var t Truck
		if err := store.Decode(snap.Value, &t); err != nil {
			return nil, err
		}
		out = append(out, truckView(snap.Key, t))
	}
	return out, nil
}

// GetTruck loads one truck.
func (s *Service) GetTruck(ctx context.Context, id string) (TruckView, error) {
	path, err := childPath(trucksCollection, id)
	if err != nil {
		return TruckView{}, err
	}
	var t Truck
	if _, err := s.load(ctx, path, &t); err != nil {
		return TruckView{}, err
	}
	return truckView(id, t), nil
}

// UpdateTruck replaces a truck after the work ID gate passes.
func (s *Service) UpdateTruck(ctx context.Context, id, workID string, t Truck) (TruckView, error) {
	path, err := childPath(trucksCollection, id)
	if err != nil {
		return TruckView{}, err
	}
	if err := s.authorize(ctx, policy.ActionUpdate, path, workID); err != nil {
		return TruckView{}, err
	}
	if err := validateStruct(s.validate, t); err != nil {
		return TruckView{}, err
	}

	current, err := s.load(ctx, path, nil)
	if err != nil {
		return TruckView{}, err
	}
	rec, err := s.replace(ctx, path, current, t)
	if err != nil {
		return TruckView{}, err
	}

	s.recordAudit(ctx, AuditLogParams{
		Action:   ActionTruckUpdate,
		Path:     path,
		OldValue: current,
		NewValue: rec,
	})
	return truckView(id, t), nil
}

// DeleteTruck removes a truck after the work ID gate passes.
func (s *Service) DeleteTruck(ctx context.Context, id, workID string) error {
	path, err := childPath(trucksCollection, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, policy.ActionDelete, path, workID); err != nil {
		return err
	}
	current, err := s.load(ctx, path, nil)
	if err != nil {
		return err
	}
	if err := s.remove(ctx, path); err != nil {
		return err
	}

	s.recordAudit(ctx, AuditLogParams{
		Action:   ActionTruckDelete,
		Path:     path,
		OldValue: current,
	})
	return nil
}
