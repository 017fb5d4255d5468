package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	cart "github.com/fernandoirangph/pms-i/internal/cart/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

// Money is stored as strings in the documents; decimals never round
// trip through floats.
type lineDoc struct {
	ID        string    `bson:"line_id"`
	ProductID int64     `bson:"product_id"`
	Quantity  int       `bson:"quantity"`
	UnitPrice string    `bson:"unit_price"`
	LineTotal string    `bson:"line_total"`
	AddedAt   time.Time `bson:"added_at"`
}

type cartDoc struct {
	ID         string     `bson:"_id"`
	UserID     string     `bson:"user_id"`
	Lines      []lineDoc  `bson:"lines"`
	CheckedOut bool       `bson:"checked_out"`
	CheckoutAt *time.Time `bson:"checkout_at,omitempty"`
	CreatedAt  time.Time  `bson:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at"`
}

func toLineDoc(l cart.Line) lineDoc {
	return lineDoc{
		ID:        l.ID,
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		UnitPrice: l.UnitPrice.StringFixed(2),
		LineTotal: l.LineTotal.StringFixed(2),
		AddedAt:   l.AddedAt,
	}
}

func fromLineDoc(d lineDoc) (cart.Line, error) {
	unitPrice, err := decimal.NewFromString(d.UnitPrice)
	if err != nil {
		return cart.Line{}, fmt.Errorf("failed to parse unit price: %w", err)
	}
	lineTotal, err := decimal.NewFromString(d.LineTotal)
	if err != nil {
		return cart.Line{}, fmt.Errorf("failed to parse line total: %w", err)
	}
	return cart.Line{
		ID:        d.ID,
		ProductID: d.ProductID,
		Quantity:  d.Quantity,
		UnitPrice: unitPrice,
		LineTotal: lineTotal,
		AddedAt:   d.AddedAt,
	}, nil
}

func fromCartDoc(d *cartDoc) (*cart.Cart, error) {
	c := &cart.Cart{
		ID:         d.ID,
		UserID:     d.UserID,
		Lines:      make([]cart.Line, 0, len(d.Lines)),
		CheckedOut: d.CheckedOut,
		CheckoutAt: d.CheckoutAt,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	for _, ld := range d.Lines {
		l, err := fromLineDoc(ld)
		if err != nil {
			return nil, err
		}
		c.Lines = append(c.Lines, l)
	}
	return c, nil
}

func openCartFilter(userID string) bson.M {
	return bson.M{"user_id": userID, "checked_out": false}
}

func (m *mongoRepository) OpenCart(ctx context.Context, userID string) (*cart.Cart, error) {
	var doc cartDoc
	err := m.collection.FindOne(ctx, openCartFilter(userID)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return fromCartDoc(&doc)
}

func (m *mongoRepository) FindOrCreateOpenCart(ctx context.Context, userID string) (*cart.Cart, error) {
	c, err := m.OpenCart(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return nil, err
	}

	now := time.Now()
	doc := cartDoc{
		ID:        uuid.NewString(),
		UserID:    userID,
		Lines:     []lineDoc{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = m.collection.InsertOne(ctx, doc)
	if err != nil {
		// A concurrent create won the race; the unique index on open
		// carts guarantees there is exactly one to fetch.
		if mongo.IsDuplicateKeyError(err) {
			return m.OpenCart(ctx, userID)
		}
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return fromCartDoc(&doc)
}

func (m *mongoRepository) UpsertLine(ctx context.Context, userID string, line cart.Line) error {
	c, err := m.FindOrCreateOpenCart(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now()
	doc := toLineDoc(line)

	if c.FindLine(line.ProductID) != nil {
		update := bson.M{
			"$set": bson.M{
				"lines.$[elem]": doc,
				"updated_at":    now,
			},
		}
		arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.product_id": line.ProductID},
			},
		})

		_, err = m.collection.UpdateOne(ctx, openCartFilter(userID), update, arrayFilters)
		if err != nil {
			return fmt.Errorf("failed to update existing line: %w", err)
		}
		return nil
	}

	update := bson.M{
		"$push": bson.M{"lines": doc},
		"$set":  bson.M{"updated_at": now},
	}
	_, err = m.collection.UpdateOne(ctx, openCartFilter(userID), update)
	if err != nil {
		return fmt.Errorf("failed to add new line: %w", err)
	}
	return nil
}

func (m *mongoRepository) SetLine(ctx context.Context, userID string, line cart.Line) error {
	filter := openCartFilter(userID)
	filter["lines.line_id"] = line.ID

	update := bson.M{
		"$set": bson.M{
			"lines.$[elem]": toLineDoc(line),
			"updated_at":    time.Now(),
		},
	}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.line_id": line.ID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to set line: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (m *mongoRepository) RemoveLine(ctx context.Context, userID, lineID string) error {
	filter := openCartFilter(userID)
	filter["lines.line_id"] = lineID

	update := bson.M{
		"$pull": bson.M{
			"lines": bson.M{"line_id": lineID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove line: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (m *mongoRepository) MarkCheckedOut(ctx context.Context, userID string, at time.Time, lines []cart.Line) (*cart.Cart, error) {
	docs := make([]lineDoc, 0, len(lines))
	for _, l := range lines {
		docs = append(docs, toLineDoc(l))
	}

	update := bson.M{
		"$set": bson.M{
			"lines":       docs,
			"checked_out": true,
			"checkout_at": at,
			"updated_at":  at,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc cartDoc
	err := m.collection.FindOneAndUpdate(ctx, openCartFilter(userID), update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to mark cart checked out: %w", err)
	}
	return fromCartDoc(&doc)
}

func (m *mongoRepository) DeleteOpenCart(ctx context.Context, userID string) error {
	result, err := m.collection.DeleteOne(ctx, openCartFilter(userID))
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *mongoRepository) StaleOpenCarts(ctx context.Context, before time.Time) ([]string, error) {
	filter := bson.M{
		"checked_out": false,
		"updated_at":  bson.M{"$lt": before},
	}

	cursor, err := m.collection.Find(ctx, filter,
		options.Find().SetProjection(bson.M{"user_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to query stale carts: %w", err)
	}
	defer cursor.Close(ctx)

	var users []string
	for cursor.Next(ctx) {
		var doc struct {
			UserID string `bson:"user_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode stale cart: %w", err)
		}
		users = append(users, doc.UserID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return users, nil
}

// CreateIndexes enforces the one-open-cart-per-user invariant as a
// partial unique index rather than an incidental query pattern.
func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"checked_out": false}),
		},
		{
			Keys: bson.D{{Key: "checkout_at", Value: 1}},
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// EnsureIndexes creates the cart collection's indexes. Called once at
// startup, before the repository takes traffic.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	r := &mongoRepository{collection: db.Collection("carts")}
	return r.CreateIndexes(ctx)
}
