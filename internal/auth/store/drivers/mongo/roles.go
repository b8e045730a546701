package mongo

import (
	"context"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type rolesRepo struct {
	c     *mongo.Collection
	users *mongo.Collection
}

func (r *rolesRepo) GetRoleByID(ctx context.Context, id string) (domain.Role, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *rolesRepo) GetRoleByName(ctx context.Context, name string) (domain.Role, error) {
	return r.findOne(ctx, bson.D{{Key: "name", Value: name}})
}

func (r *rolesRepo) findOne(ctx context.Context, filter bson.D) (domain.Role, error) {
	var doc roleDoc
	if err := r.c.FindOne(ctx, filter).Decode(&doc); err != nil {
		return domain.Role{}, mapErr(err)
	}
	return doc.toDomain(), nil
}

func (r *rolesRepo) ListAll(ctx context.Context) ([]domain.Role, error) {
	cur, err := r.c.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, mapErr(err)
	}

	var docs []roleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapErr(err)
	}

	roles := make([]domain.Role, len(docs))
	for i, d := range docs {
		roles[i] = d.toDomain()
	}
	return roles, nil
}

func (r *rolesRepo) CreateRole(ctx context.Context, role domain.Role) error {
	now := time.Now().UTC()
	if role.CreatedAt.IsZero() {
		role.CreatedAt = now
	}
	if role.UpdatedAt.IsZero() {
		role.UpdatedAt = role.CreatedAt
	}
	_, err := r.c.InsertOne(ctx, roleDoc{
		ID:        role.ID,
		Name:      role.Name,
		CreatedAt: role.CreatedAt.UTC(),
		UpdatedAt: role.UpdatedAt.UTC(),
	})
	return mapErr(err)
}

func (r *rolesRepo) RenameRole(ctx context.Context, id, name string) error {
	return requireMatch(r.c.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "name", Value: name},
			{Key: "updatedAt", Value: time.Now().UTC()},
		}}},
	))
}

// DeleteRole removes the role, then pulls its id out of every user.
func (r *rolesRepo) DeleteRole(ctx context.Context, id string) error {
	res, err := r.c.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return mapErr(err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}

	_, err = r.users.UpdateMany(ctx,
		bson.D{{Key: "roles", Value: id}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "roles", Value: id}}}},
	)
	return mapErr(err)
}
