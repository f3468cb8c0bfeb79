package databases

// go generate: mockery --name ChatRoomDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Rohith-Das/Med360-sub001/models"
)

const chatRoomName = "chatrooms"

// ChatRoomDatabase contains the methods to use with the chat room collection
type ChatRoomDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.ChatRoom, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.ChatRoom, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (int64, error)
	EnsureIndexes(context.Context) error
}

type chatRoomDatabase struct {
	db DatabaseHelper
}

// NewChatRoomDatabase initializes a new instance of the chat room database with the provided db connection
func NewChatRoomDatabase(db DatabaseHelper) ChatRoomDatabase {
	return &chatRoomDatabase{
		db: db,
	}
}

func (c *chatRoomDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.ChatRoom, error) {
	room := &models.ChatRoom{}
	err := c.db.Collection(chatRoomName).FindOne(ctx, filter, opts...).Decode(&room)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (c *chatRoomDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	cr, err := c.db.Collection(chatRoomName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&rooms)
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *chatRoomDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return c.db.Collection(chatRoomName).InsertOne(ctx, document, opts...)
}

func (c *chatRoomDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	return c.db.Collection(chatRoomName).UpdateOne(ctx, filter, update, opts...)
}

// EnsureIndexes creates the unique (doctorId, patientId) index that the
// concurrent room creation path relies on to detect duplicate inserts.
func (c *chatRoomDatabase) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: "doctorId", Value: 1}, {Key: "patientId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, err := c.db.Collection(chatRoomName).CreateOneIndex(ctx, model)
	return err
}
