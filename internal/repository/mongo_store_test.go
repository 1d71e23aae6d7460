package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/example/orderdesk/internal/models"
)

func TestStaleFilter(t *testing.T) {
	cutoff := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, bson.M{
		"status":    "processing",
		"createdAt": bson.M{"$lte": cutoff},
	}, staleFilter(models.OrderProcessing, cutoff))
}

func TestResetTokenFilterIsStrict(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, bson.M{
		"resetToken":          "tk",
		"resetTokenExpiresAt": bson.M{"$gt": now},
	}, resetTokenFilter("tk", now))
}

func TestOrderQuery(t *testing.T) {
	owner := uuid.New()

	assert.Equal(t, bson.M{}, orderQuery(OrderFilter{}))
	assert.Equal(t, bson.M{
		"userId": owner.String(),
		"status": "finalized",
	}, orderQuery(OrderFilter{UserID: &owner, Status: models.OrderFinalized}))
}

func TestProductQuery(t *testing.T) {
	lo := decimal.RequireFromString("5")
	hi := decimal.RequireFromString("50.5")

	q := productQuery(ProductFilter{Search: "a.b", MinPrice: &lo, MaxPrice: &hi})
	assert.Equal(t, "active", q["status"])

	rx := primitive.Regex{Pattern: `a\.b`, Options: "i"}
	assert.Equal(t, bson.A{bson.M{"name": rx}, bson.M{"description": rx}}, q["$or"])

	price, ok := q["price"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, "5", price["$gte"].(primitive.Decimal128).String())
	assert.Equal(t, "50.5", price["$lte"].(primitive.Decimal128).String())

	assert.NotContains(t, productQuery(ProductFilter{IncludeInactive: true}), "status")
}

func TestOrderPatchUpdate(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	status := models.OrderFinalized
	pid := uuid.New()

	update := orderPatchUpdate(OrderPatch{
		Items:     []models.OrderItem{{ProductID: pid, Quantity: 2}},
		Status:    &status,
		UpdatedAt: now,
	})

	set, ok := update["$set"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, now, set["updatedAt"])
	assert.Equal(t, "finalized", set["status"])
	assert.Equal(t, []orderItemDoc{{ProductID: pid.String(), Quantity: 2}}, set["items"])
	assert.NotContains(t, set, "total")
}

func TestOrderDocRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	order := &models.Order{
		BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: created, UpdatedAt: created},
		UserID:    uuid.New(),
		Items:     []models.OrderItem{{ProductID: uuid.New(), Quantity: 1}, {ProductID: uuid.New(), Quantity: 3}},
		Total:     decimal.RequireFromString("12.34"),
		Status:    models.OrderProcessing,
	}

	got := newOrderDoc(order).model()
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, order.UserID, got.UserID)
	assert.True(t, order.Total.Equal(got.Total))
	require.Len(t, got.Items, 2)
	assert.Equal(t, 1, got.Items[1].Position)
	assert.Equal(t, order.Items[1].ProductID, got.Items[1].ProductID)
}
