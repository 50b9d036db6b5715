package queue

import (
	"time"

	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/service"
)

// Queue processes notification tasks pulled from asynq.
type Queue struct {
	ns service.NotificationService
}

func NewQueue(ns service.NotificationService) *Queue {
	return &Queue{
		ns: ns,
	}
}

const TaskTypeNotify = "notify:send"

type NotifyPayload struct {
	UserID int64                   `json:"user_id"`
	Kind   models.NotificationKind `json:"kind"`
	At     time.Time               `json:"at"`
}
