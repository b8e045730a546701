package mongo

import (
	"context"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type usersRepo struct {
	c *mongo.Collection
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *usersRepo) findOne(ctx context.Context, filter bson.D) (domain.User, error) {
	var doc userDoc
	if err := r.c.FindOne(ctx, filter).Decode(&doc); err != nil {
		return domain.User{}, mapErr(err)
	}
	return doc.toDomain(), nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	for i := range u.Devices {
		if u.Devices[i].LastLogin.IsZero() {
			u.Devices[i].LastLogin = now
		}
		if u.Devices[i].CreatedAt.IsZero() {
			u.Devices[i].CreatedAt = u.Devices[i].LastLogin
		}
	}

	_, err := r.c.InsertOne(ctx, toUserDoc(u))
	return mapErr(err)
}

func (r *usersRepo) DeleteUser(ctx context.Context, id string) error {
	res, err := r.c.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return mapErr(err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) set(ctx context.Context, id string, fields bson.D) error {
	fields = append(fields, bson.E{Key: "updatedAt", Value: time.Now().UTC()})
	return requireMatch(r.c.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: fields}},
	))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.set(ctx, id, bson.D{{Key: "passwordHash", Value: hash}})
}

func (r *usersRepo) MarkEmailVerified(ctx context.Context, id string) error {
	return r.set(ctx, id, bson.D{{Key: "isEmailVerified", Value: true}})
}

func (r *usersRepo) LockUser(ctx context.Context, id string, until time.Time) error {
	return r.set(ctx, id, bson.D{
		{Key: "isLocked", Value: true},
		{Key: "lockUntil", Value: until.UTC()},
	})
}

func (r *usersRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return requireMatch(r.c.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "lastLogin", Value: at.UTC()},
				{Key: "isLocked", Value: false},
				{Key: "updatedAt", Value: time.Now().UTC()},
			}},
			{Key: "$unset", Value: bson.D{{Key: "lockUntil", Value: ""}}},
		},
	))
}

func (r *usersRepo) UnlockExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.c.UpdateMany(ctx,
		bson.D{
			{Key: "isLocked", Value: true},
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "lockUntil", Value: nil}},
				bson.D{{Key: "lockUntil", Value: bson.D{{Key: "$lte", Value: now.UTC()}}}},
			}},
		},
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "isLocked", Value: false},
				{Key: "updatedAt", Value: time.Now().UTC()},
			}},
			{Key: "$unset", Value: bson.D{{Key: "lockUntil", Value: ""}}},
		},
	)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.ModifiedCount, nil
}

// UpsertDevice first updates a matching element in place through the
// positional operator; when none matches, it pushes guarded by a $not
// $elemMatch so two concurrent first sightings cannot both append.
func (r *usersRepo) UpsertDevice(ctx context.Context, userID string, d domain.Device) error {
	if d.LastLogin.IsZero() {
		d.LastLogin = time.Now()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = d.LastLogin
	}

	match := bson.D{
		{Key: "userAgent", Value: d.UserAgent},
		{Key: "ipAddress", Value: d.IPAddress},
	}

	set := bson.D{
		{Key: "devices.$.lastLogin", Value: d.LastLogin.UTC()},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}
	if d.Verified {
		set = append(set, bson.E{Key: "devices.$.verified", Value: true})
	}

	updateInPlace := func() (bool, error) {
		res, err := r.c.UpdateOne(ctx,
			bson.D{
				{Key: "_id", Value: userID},
				{Key: "devices", Value: bson.D{{Key: "$elemMatch", Value: match}}},
			},
			bson.D{{Key: "$set", Value: set}},
		)
		if err != nil {
			return false, mapErr(err)
		}
		return res.MatchedCount > 0, nil
	}

	if ok, err := updateInPlace(); err != nil || ok {
		return err
	}

	res, err := r.c.UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: userID},
			{Key: "devices", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$elemMatch", Value: match}}}}},
		},
		bson.D{
			{Key: "$push", Value: bson.D{{Key: "devices", Value: toDeviceDoc(d)}}},
			{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}},
		},
	)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Either someone pushed the same device in between or the user is gone.
	ok, err := updateInPlace()
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

// PruneDevices reports the number of users whose device list shrank.
func (r *usersRepo) PruneDevices(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.c.UpdateMany(ctx,
		bson.D{{Key: "devices", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
			{Key: "verified", Value: false},
			{Key: "lastLogin", Value: bson.D{{Key: "$lt", Value: cutoff.UTC()}}},
		}}}}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "devices", Value: bson.D{
			{Key: "verified", Value: false},
			{Key: "lastLogin", Value: bson.D{{Key: "$lt", Value: cutoff.UTC()}}},
		}}}}},
	)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.ModifiedCount, nil
}
