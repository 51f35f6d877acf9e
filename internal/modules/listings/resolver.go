package listings

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// TableFor maps an item type to its listing table.
func TableFor(itemType string) (string, error) {
	switch itemType {
	case TypeTrip:
		return "trips", nil
	case TypeEvent:
		return "events", nil
	case TypeHotel:
		return "hotels", nil
	case TypeAdventurePlace:
		return "adventure_places", nil
	case TypeAttraction:
		return "attractions", nil
	}
	return "", fmt.Errorf("unknown item type %q", itemType)
}

// HostOf answers "who hosts this item" by category-specific lookup. Callers
// pass their own db handle so the lookup can join an open transaction.
func HostOf(ctx context.Context, db *gorm.DB, itemType, itemID string) (string, error) {
	table, err := TableFor(itemType)
	if err != nil {
		return "", err
	}

	var createdBy string
	if err := db.WithContext(ctx).
		Table(table).
		Select("created_by").
		Where("id = ?", itemID).
		Scan(&createdBy).Error; err != nil {
		return "", err
	}
	if createdBy == "" {
		return "", gorm.ErrRecordNotFound
	}
	return createdBy, nil
}

// HostedItemIDs returns the item ids a host owns in the given category. The
// withdrawal balance computation calls this across all categories.
func HostedItemIDs(ctx context.Context, db *gorm.DB, itemType, hostID string) ([]string, error) {
	table, err := TableFor(itemType)
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := db.WithContext(ctx).
		Table(table).
		Select("id").
		Where("created_by = ?", hostID).
		Scan(&ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// AllTypes lists every listing category.
func AllTypes() []string {
	return []string{TypeTrip, TypeEvent, TypeHotel, TypeAdventurePlace, TypeAttraction}
}
