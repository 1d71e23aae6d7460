package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/orderdesk/internal/models"
)

const (
	usersCollection    = "users"
	productsCollection = "products"
	ordersCollection   = "orders"
)

// NewMongoStore builds repositories backed by a MongoDB database.
func NewMongoStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		Users:    &mongoUsers{col: db.Collection(usersCollection)},
		Products: &mongoProducts{col: db.Collection(productsCollection)},
		Orders:   &mongoOrders{col: db.Collection(ordersCollection)},
		closer:   client.Disconnect,
	}
}

// EnsureMongoIndexes creates the indexes the repositories rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	if _, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "resetToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	}); err != nil {
		return err
	}
	if _, err := db.Collection(ordersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}); err != nil {
		return err
	}
	_, err := db.Collection(productsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

func translateMongo(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

func findOptions(p Page) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if p.Limit > 0 {
		opts.SetLimit(int64(p.Limit))
	}
	if p.Offset > 0 {
		opts.SetSkip(int64(p.Offset))
	}
	return opts
}

func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(strings.TrimSpace(s)), Options: "i"}
}

func idStrings(ids []uuid.UUID) []string {
	ids = uniqueIDs(ids)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// ----- users -----

type userDoc struct {
	ID                  string     `bson:"_id"`
	Name                string     `bson:"name"`
	Email               string     `bson:"email"`
	PasswordHash        string     `bson:"passwordHash"`
	Role                string     `bson:"role"`
	ResetToken          *string    `bson:"resetToken,omitempty"`
	ResetTokenExpiresAt *time.Time `bson:"resetTokenExpiresAt,omitempty"`
	CreatedAt           time.Time  `bson:"createdAt"`
	UpdatedAt           time.Time  `bson:"updatedAt"`
}

func newUserDoc(u *models.User) userDoc {
	return userDoc{
		ID:                  u.ID.String(),
		Name:                u.Name,
		Email:               u.Email,
		PasswordHash:        u.PasswordHash,
		Role:                string(u.Role),
		ResetToken:          u.ResetToken,
		ResetTokenExpiresAt: u.ResetTokenExpiresAt,
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}

func (d userDoc) model() models.User {
	return models.User{
		BaseModel:           models.BaseModel{ID: parseID(d.ID), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		Name:                d.Name,
		Email:               d.Email,
		PasswordHash:        d.PasswordHash,
		Role:                models.Role(d.Role),
		ResetToken:          d.ResetToken,
		ResetTokenExpiresAt: d.ResetTokenExpiresAt,
	}
}

type mongoUsers struct {
	col *mongo.Collection
}

func (r *mongoUsers) Create(ctx context.Context, user *models.User) error {
	stampNew(&user.BaseModel)
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	_, err := r.col.InsertOne(ctx, newUserDoc(user))
	return translateMongo(err)
}

func (r *mongoUsers) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translateMongo(err)
	}
	user := doc.model()
	return &user, nil
}

func (r *mongoUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *mongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoUsers) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error) {
	out := make(map[uuid.UUID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": idStrings(ids)}})
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		u := d.model()
		out[u.ID] = u
	}
	return out, nil
}

func (r *mongoUsers) List(ctx context.Context, filter UserFilter) ([]models.User, int64, error) {
	query := bson.M{}
	if filter.Search != "" {
		rx := containsRegex(filter.Search)
		query["$or"] = bson.A{bson.M{"name": rx}, bson.M{"email": rx}}
	}

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.col.Find(ctx, query, findOptions(filter.Page))
	if err != nil {
		return nil, 0, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	users := make([]models.User, len(docs))
	for i, d := range docs {
		users[i] = d.model()
	}
	return users, total, nil
}

func (r *mongoUsers) set(ctx context.Context, id uuid.UUID, fields bson.M, now time.Time) error {
	fields["updatedAt"] = now
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": fields})
	if err != nil {
		return translateMongo(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoUsers) UpdateName(ctx context.Context, id uuid.UUID, name string, now time.Time) error {
	return r.set(ctx, id, bson.M{"name": name}, now)
}

func (r *mongoUsers) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role, now time.Time) error {
	return r.set(ctx, id, bson.M{"role": string(role)}, now)
}

func (r *mongoUsers) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoUsers) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt, now time.Time) error {
	return r.set(ctx, id, bson.M{"resetToken": token, "resetTokenExpiresAt": expiresAt}, now)
}

func (r *mongoUsers) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"resetToken": token})
}

func (r *mongoUsers) ConsumeResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (bool, error) {
	res, err := r.col.UpdateOne(ctx, resetTokenFilter(token, now), bson.M{
		"$set":   bson.M{"passwordHash": passwordHash, "updatedAt": now},
		"$unset": bson.M{"resetToken": "", "resetTokenExpiresAt": ""},
	})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func resetTokenFilter(token string, now time.Time) bson.M {
	return bson.M{
		"resetToken":          token,
		"resetTokenExpiresAt": bson.M{"$gt": now},
	}
}

// ----- products -----

type productDoc struct {
	ID          string               `bson:"_id"`
	Name        string               `bson:"name"`
	Price       primitive.Decimal128 `bson:"price"`
	Description string               `bson:"description"`
	ImageURL    string               `bson:"imageUrl"`
	Status      string               `bson:"status"`
	Stock       int                  `bson:"stock"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

func newProductDoc(p *models.Product) productDoc {
	return productDoc{
		ID:          p.ID.String(),
		Name:        p.Name,
		Price:       toDecimal128(p.Price),
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Status:      string(p.Status),
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d productDoc) model() models.Product {
	return models.Product{
		BaseModel:   models.BaseModel{ID: parseID(d.ID), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		Name:        d.Name,
		Price:       fromDecimal128(d.Price),
		Description: d.Description,
		ImageURL:    d.ImageURL,
		Status:      models.ProductStatus(d.Status),
		Stock:       d.Stock,
	}
}

type mongoProducts struct {
	col *mongo.Collection
}

func (r *mongoProducts) Create(ctx context.Context, product *models.Product) error {
	stampNew(&product.BaseModel)
	_, err := r.col.InsertOne(ctx, newProductDoc(product))
	return translateMongo(err)
}

func (r *mongoProducts) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var doc productDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, translateMongo(err)
	}
	p := doc.model()
	return &p, nil
}

func (r *mongoProducts) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": idStrings(ids)}})
	if err != nil {
		return nil, err
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		p := d.model()
		out[p.ID] = p
	}
	return out, nil
}

func productQuery(filter ProductFilter) bson.M {
	query := bson.M{}
	if !filter.IncludeInactive {
		query["status"] = string(models.ProductActive)
	}
	if filter.Search != "" {
		rx := containsRegex(filter.Search)
		query["$or"] = bson.A{bson.M{"name": rx}, bson.M{"description": rx}}
	}
	price := bson.M{}
	if filter.MinPrice != nil {
		price["$gte"] = toDecimal128(*filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		price["$lte"] = toDecimal128(*filter.MaxPrice)
	}
	if len(price) > 0 {
		query["price"] = price
	}
	return query
}

func (r *mongoProducts) List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	query := productQuery(filter)
	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.col.Find(ctx, query, findOptions(filter.Page))
	if err != nil {
		return nil, 0, err
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	products := make([]models.Product, len(docs))
	for i, d := range docs {
		products[i] = d.model()
	}
	return products, total, nil
}

func (r *mongoProducts) Update(ctx context.Context, product *models.Product) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": product.ID.String()}, bson.M{"$set": bson.M{
		"name":        product.Name,
		"price":       toDecimal128(product.Price),
		"description": product.Description,
		"imageUrl":    product.ImageURL,
		"status":      string(product.Status),
		"stock":       product.Stock,
		"updatedAt":   product.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoProducts) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ----- orders -----

type orderItemDoc struct {
	ProductID string `bson:"productId"`
	Quantity  int    `bson:"quantity"`
}

type orderDoc struct {
	ID        string               `bson:"_id"`
	UserID    string               `bson:"userId"`
	Items     []orderItemDoc       `bson:"items"`
	Total     primitive.Decimal128 `bson:"total"`
	Status    string               `bson:"status"`
	CreatedAt time.Time            `bson:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt"`
}

func itemDocs(items []models.OrderItem) []orderItemDoc {
	out := make([]orderItemDoc, len(items))
	for i, it := range items {
		out[i] = orderItemDoc{ProductID: it.ProductID.String(), Quantity: it.Quantity}
	}
	return out
}

func newOrderDoc(o *models.Order) orderDoc {
	return orderDoc{
		ID:        o.ID.String(),
		UserID:    o.UserID.String(),
		Items:     itemDocs(o.Items),
		Total:     toDecimal128(o.Total),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func (d orderDoc) model() models.Order {
	id := parseID(d.ID)
	items := make([]models.OrderItem, len(d.Items))
	for i, it := range d.Items {
		items[i] = models.OrderItem{OrderID: id, Position: i, ProductID: parseID(it.ProductID), Quantity: it.Quantity}
	}
	return models.Order{
		BaseModel: models.BaseModel{ID: id, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		UserID:    parseID(d.UserID),
		Items:     items,
		Total:     fromDecimal128(d.Total),
		Status:    models.OrderStatus(d.Status),
	}
}

type mongoOrders struct {
	col *mongo.Collection
}

func (r *mongoOrders) Create(ctx context.Context, order *models.Order) error {
	stampNew(&order.BaseModel)
	_, err := r.col.InsertOne(ctx, newOrderDoc(order))
	return translateMongo(err)
}

func (r *mongoOrders) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var doc orderDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, translateMongo(err)
	}
	o := doc.model()
	return &o, nil
}

func orderQuery(filter OrderFilter) bson.M {
	query := bson.M{}
	if filter.UserID != nil {
		query["userId"] = filter.UserID.String()
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	return query
}

func (r *mongoOrders) List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	query := orderQuery(filter)
	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.col.Find(ctx, query, findOptions(filter.Page))
	if err != nil {
		return nil, 0, err
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	orders := make([]models.Order, len(docs))
	for i, d := range docs {
		orders[i] = d.model()
	}
	return orders, total, nil
}

func orderPatchUpdate(patch OrderPatch) bson.M {
	set := bson.M{"updatedAt": patch.UpdatedAt}
	if patch.Items != nil {
		set["items"] = itemDocs(patch.Items)
	}
	if patch.Total != nil {
		set["total"] = toDecimal128(*patch.Total)
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	return bson.M{"$set": set}
}

func (r *mongoOrders) Update(ctx context.Context, id uuid.UUID, patch OrderPatch) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id.String()}, orderPatchUpdate(patch))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoOrders) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoOrders) CountByUser(ctx context.Context) (map[uuid.UUID]int64, error) {
	cur, err := r.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$userId"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	})
	if err != nil {
		return nil, err
	}
	var rows []struct {
		UserID string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		out[parseID(row.UserID)] = row.Count
	}
	return out, nil
}

func staleFilter(status models.OrderStatus, cutoff time.Time) bson.M {
	return bson.M{
		"status":    string(status),
		"createdAt": bson.M{"$lte": cutoff},
	}
}

func (r *mongoOrders) FindStale(ctx context.Context, status models.OrderStatus, cutoff time.Time) ([]uuid.UUID, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := r.col.Find(ctx, staleFilter(status, cutoff), opts)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, parseID(row.ID))
	}
	return ids, nil
}

func (r *mongoOrders) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus, now time.Time) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id.String(), "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updatedAt": now}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// stampNew fills an id and timestamps the caller left empty. Services set
// both timestamps from their own clock, so the wall clock is only a fallback.
func stampNew(b *models.BaseModel) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
}
