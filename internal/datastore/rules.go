package datastore

import (
	"github.com/Deven-0012/Cloud-281/internal/errors"
	"gorm.io/gorm"
)

// GetVehicle resolves a vehicle to its tenant mapping.
func (ds *DataStore) GetVehicle(vehicleID string) (*Vehicle, error) {
	var v Vehicle
	if err := ds.DB.Where("vehicle_id = ?", vehicleID).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("vehicle %s not found", vehicleID).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("vehicle_id", vehicleID).
			Build()
	}
	return &v, nil
}

// SaveVehicle upserts a vehicle row. Used by provisioning tooling and tests;
// the pipeline itself only reads vehicles.
func (ds *DataStore) SaveVehicle(v *Vehicle) error {
	if err := ds.DB.Save(v).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("vehicle_id", v.VehicleID).
			Build()
	}
	return nil
}

// GetActiveRules returns active rules for (tenant, label) ordered for the
// deterministic tie-break: highest threshold first, ties broken by most
// recently updated. Tenant-specific rules come before fleet-wide defaults
// (empty tenant), so a tenant rule always wins when present.
func (ds *DataStore) GetActiveRules(tenantID, label string) ([]AlertRule, error) {
	var rules []AlertRule
	err := ds.DB.
		Where("label = ? AND active = ? AND (tenant_id = ? OR tenant_id = '')", label, true, tenantID).
		Order("tenant_id DESC").
		Order("threshold DESC").
		Order("updated_at DESC").
		Find(&rules).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("tenant_id", tenantID).
			Context("label", label).
			Build()
	}
	return rules, nil
}

// SaveRule upserts a rule row. Rule CRUD belongs to the operator surface;
// this exists for provisioning from config and for tests.
func (ds *DataStore) SaveRule(r *AlertRule) error {
	if err := ds.DB.Save(r).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("label", r.Label).
			Build()
	}
	return nil
}
