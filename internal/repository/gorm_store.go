package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/orderdesk/internal/models"
)

// NewGormStore builds repositories backed by a relational database.
func NewGormStore(db *gorm.DB) *Store {
	return &Store{
		Users:    &gormUsers{db: db},
		Products: &gormProducts{db: db},
		Orders:   &gormOrders{db: db},
		closer: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func paginate(query *gorm.DB, p Page) *gorm.DB {
	if p.Limit > 0 {
		query = query.Limit(p.Limit)
	}
	if p.Offset > 0 {
		query = query.Offset(p.Offset)
	}
	return query
}

func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// ----- users -----

type gormUsers struct {
	db *gorm.DB
}

func (r *gormUsers) Create(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *gormUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *gormUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *gormUsers) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error) {
	out := make(map[uuid.UUID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", uniqueIDs(ids)).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *gormUsers) List(ctx context.Context, filter UserFilter) ([]models.User, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})
	if filter.Search != "" {
		q := likePattern(filter.Search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", q, q)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	if err := paginate(query.Order("created_at desc"), filter.Page).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *gormUsers) UpdateName(ctx context.Context, id uuid.UUID, name string, now time.Time) error {
	return r.update(ctx, id, map[string]any{"name": name}, now)
}

func (r *gormUsers) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role, now time.Time) error {
	return r.update(ctx, id, map[string]any{"role": role}, now)
}

func (r *gormUsers) update(ctx context.Context, id uuid.UUID, values map[string]any, now time.Time) error {
	values["updated_at"] = now
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormUsers) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormUsers) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt, now time.Time) error {
	return r.update(ctx, id, map[string]any{
		"reset_token":            token,
		"reset_token_expires_at": expiresAt,
	}, now)
}

func (r *gormUsers) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("reset_token = ?", token).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *gormUsers) ConsumeResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("reset_token = ? AND reset_token_expires_at > ?", token, now).
		Updates(map[string]any{
			"password_hash":          passwordHash,
			"reset_token":            nil,
			"reset_token_expires_at": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ----- products -----

type gormProducts struct {
	db *gorm.DB
}

func (r *gormProducts) Create(ctx context.Context, product *models.Product) error {
	return translate(r.db.WithContext(ctx).Create(product).Error)
}

func (r *gormProducts) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (r *gormProducts) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", uniqueIDs(ids)).Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (r *gormProducts) List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if !filter.IncludeInactive {
		query = query.Where("status = ?", models.ProductActive)
	}
	if filter.Search != "" {
		q := likePattern(filter.Search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", q, q)
	}
	if filter.MinPrice != nil {
		query = query.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price <= ?", *filter.MaxPrice)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []models.Product
	if err := paginate(query.Order("created_at desc"), filter.Page).Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *gormProducts) Update(ctx context.Context, product *models.Product) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", product.ID).
		Select("name", "price", "description", "image_url", "status", "stock", "updated_at").
		Updates(product)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormProducts) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ----- orders -----

type gormOrders struct {
	db *gorm.DB
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Order("position asc")
}

func (r *gormOrders) Create(ctx context.Context, order *models.Order) error {
	return translate(r.db.WithContext(ctx).Create(order).Error)
}

func (r *gormOrders) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items", preloadItems).First(&order, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *gormOrders) List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	if err := paginate(query.Preload("Items", preloadItems).Order("created_at desc"), filter.Page).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *gormOrders) Update(ctx context.Context, id uuid.UUID, patch OrderPatch) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		values := map[string]any{"updated_at": patch.UpdatedAt}
		if patch.Total != nil {
			values["total"] = *patch.Total
		}
		if patch.Status != nil {
			values["status"] = *patch.Status
		}

		res := tx.Model(&models.Order{}).Where("id = ?", id).Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		if patch.Items == nil {
			return nil
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		items := make([]models.OrderItem, len(patch.Items))
		for i, it := range patch.Items {
			items[i] = models.OrderItem{OrderID: id, Position: i, ProductID: it.ProductID, Quantity: it.Quantity}
		}
		return tx.Create(&items).Error
	})
}

func (r *gormOrders) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Order{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error
	})
}

func (r *gormOrders) CountByUser(ctx context.Context) (map[uuid.UUID]int64, error) {
	var rows []struct {
		UserID uuid.UUID
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("user_id, count(*) as count").
		Group("user_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		out[row.UserID] = row.Count
	}
	return out, nil
}

func (r *gormOrders) FindStale(ctx context.Context, status models.OrderStatus, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("status = ? AND created_at <= ?", status, cutoff).
		Order("created_at asc").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *gormOrders) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
