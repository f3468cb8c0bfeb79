package databases

// go generate: mockery --name AppointmentDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Rohith-Das/Med360-sub001/models"
)

const appointmentName = "appointments"

// AppointmentDatabase is the read-only view over the appointments
// collection owned by the scheduling collaborator. The realtime core
// never writes appointments.
type AppointmentDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Appointment, error)
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
}

type appointmentDatabase struct {
	db DatabaseHelper
}

// NewAppointmentDatabase initializes a new instance of the appointment read model with the provided db connection
func NewAppointmentDatabase(db DatabaseHelper) AppointmentDatabase {
	return &appointmentDatabase{
		db: db,
	}
}

func (a *appointmentDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Appointment, error) {
	appointment := &models.Appointment{}
	err := a.db.Collection(appointmentName).FindOne(ctx, filter, opts...).Decode(&appointment)
	if err != nil {
		return nil, err
	}
	return appointment, nil
}

func (a *appointmentDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return a.db.Collection(appointmentName).CountDocuments(ctx, filter, opts...)
}
