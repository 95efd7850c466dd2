package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	"github.com/dezko/dezko-backend/pkg/pagination"
)

// Repository persists orders and the reservations they hold.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateReservation(ctx context.Context, reservation *models.Reservation) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindReservationByOrder(ctx context.Context, orderID uuid.UUID) (*models.Reservation, error)
	FindOrderByReservation(ctx context.Context, reservationID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateReservationStatus(ctx context.Context, orderID uuid.UUID, status enums.ReservationStatus) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) (*OrderList, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, gateway *enums.Gateway, limit int) ([]models.Order, error)
}

// ListFilter scopes order listings to what an actor may see.
type ListFilter struct {
	UserID  *uuid.UUID
	SpaceID *uuid.UUID
	Status  *enums.OrderStatus
}

// OrderList is one cursor page of orders.
type OrderList struct {
	Orders     []models.Order
	NextCursor string
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bookings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOrder(r.db.WithContext(ctx), id)
}

// LockOrder loads the order with a row lock on Postgres so status
// transitions on the same order serialize.
func (r *repository) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.findOrder(query, id)
}

func (r *repository) findOrder(query *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := query.Where("id = ?", id).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindReservationByOrder(ctx context.Context, orderID uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) FindOrderByReservation(ctx context.Context, reservationID uuid.UUID) (*models.Order, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).Select("order_id").Where("id = ?", reservationID).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.FindOrder(ctx, reservation.OrderID)
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdateReservationStatus(ctx context.Context, orderID uuid.UUID, status enums.ReservationStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) (*OrderList, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.SpaceID != nil {
		query = query.Where("space_id = ?", *filter.SpaceID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.At, cursor.At, cursor.ID)
	}

	var rows []models.Order
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	orders, next := pagination.Page(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{At: o.CreatedAt, ID: o.ID}
	})
	return &OrderList{Orders: orders, NextCursor: next}, nil
}

// ListPendingBefore returns PENDING orders created before cutoff, oldest
// first. A non-nil gateway restricts the result to orders charged there.
func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, gateway *enums.Gateway, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff.UTC())
	if gateway != nil {
		query = query.Where("gateway = ? AND gateway_charge_id IS NOT NULL", *gateway)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Order
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
