package databases

// go generate: mockery --name VideoSessionDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Rohith-Das/Med360-sub001/models"
)

const videoSessionName = "videocallsessions"

// VideoSessionDatabase contains the methods to use with the video call session collection
type VideoSessionDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.VideoCallSession, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.VideoCallSession, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (int64, error)
	UpdateMany(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (int64, error)
}

type videoSessionDatabase struct {
	db DatabaseHelper
}

// NewVideoSessionDatabase initializes a new instance of the video session database with the provided db connection
func NewVideoSessionDatabase(db DatabaseHelper) VideoSessionDatabase {
	return &videoSessionDatabase{
		db: db,
	}
}

func (v *videoSessionDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.VideoCallSession, error) {
	session := &models.VideoCallSession{}
	err := v.db.Collection(videoSessionName).FindOne(ctx, filter, opts...).Decode(&session)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (v *videoSessionDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.VideoCallSession, error) {
	var sessions []models.VideoCallSession
	cr, err := v.db.Collection(videoSessionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&sessions)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (v *videoSessionDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return v.db.Collection(videoSessionName).InsertOne(ctx, document, opts...)
}

func (v *videoSessionDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	return v.db.Collection(videoSessionName).UpdateOne(ctx, filter, update, opts...)
}

func (v *videoSessionDatabase) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	return v.db.Collection(videoSessionName).UpdateMany(ctx, filter, update, opts...)
}
