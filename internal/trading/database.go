package trading

import (
	"context"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const idempotencyTTL = 24 * time.Hour

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateOrder stores an order and its initial attributes in a transaction
func (d *Database) CreateOrder(order *Order, attrs []Attribute) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		if len(attrs) == 0 {
			return nil
		}
		return tx.Create(&attrs).Error
	})
}

// ListOrders returns every stored order in id order
func (d *Database) ListOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	err := d.db.WithContext(ctx).Order("order_id").Find(&out).Error
	return out, err
}

// UpdateOrderState writes the mutable fields of an order
func (d *Database) UpdateOrderState(orderID int64, status string, submittedAt *time.Time, comment string) error {
	return d.db.Model(&Order{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"status":       status,
			"submitted_at": submittedAt,
			"comment":      comment,
		}).Error
}

func (d *Database) FillsForOrder(ctx context.Context, orderID int64) ([]Fill, error) {
	var out []Fill
	err := d.db.WithContext(ctx).Where("order_id = ?", orderID).Order("sequence").Find(&out).Error
	return out, err
}

func (d *Database) AttributesForOrder(ctx context.Context, orderID int64) ([]Attribute, error) {
	var out []Attribute
	err := d.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&out).Error
	return out, err
}

// UpsertAttribute inserts or replaces the named attribute of an order
func (d *Database) UpsertAttribute(attr *Attribute) error {
	return d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "value", "updated_at"}),
	}).Create(attr).Error
}

// DeleteAttribute hard deletes so the name can be reused
func (d *Database) DeleteAttribute(orderID int64, name string) error {
	return d.db.Unscoped().
		Where("order_id = ? AND name = ?", orderID, name).
		Delete(&Attribute{}).Error
}

// RecordFillBatch stores a batch of fills, the resulting order status and
// the idempotency record for the batch in one transaction
func (d *Database) RecordFillBatch(orderID int64, fills []Fill, status string, idempotencyKey string) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := tx.Create(&fills).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Model(&Order{}).Where("order_id = ?", orderID).Update("status", status).Error; err != nil {
		tx.Rollback()
		return err
	}

	now := time.Now()
	if err := tx.Unscoped().
		Where("idempotency_key = ? AND expires_at < ?", idempotencyKey, now).
		Delete(&IdempotencyRecord{}).Error; err != nil {
		tx.Rollback()
		return err
	}

	record := IdempotencyRecord{
		IdempotencyKey: idempotencyKey,
		ResourceID:     strconv.FormatInt(orderID, 10),
		ResourceType:   "fill_batch",
		ExpiresAt:      now.Add(idempotencyTTL),
	}
	if err := tx.Create(&record).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// GetIdempotencyRecord returns nil when the key is unknown or expired
func (d *Database) GetIdempotencyRecord(key string) (*IdempotencyRecord, error) {
	var record IdempotencyRecord
	res := d.db.Where("idempotency_key = ?", key).Limit(1).Find(&record)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 || record.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	return &record, nil
}

// PurgeExpiredIdempotency removes records past their expiry
func (d *Database) PurgeExpiredIdempotency(ctx context.Context, now time.Time) (int64, error) {
	res := d.db.WithContext(ctx).Unscoped().Where("expires_at < ?", now).Delete(&IdempotencyRecord{})
	return res.RowsAffected, res.Error
}
