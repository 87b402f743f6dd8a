package models

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentSuccess   PaymentStatus = "SUCCESS"
	PaymentTimeout   PaymentStatus = "TIMEOUT"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

type Payment struct {
	ID            int64
	BookingID     int64
	Status        PaymentStatus
	TransactionID string
	Amount        int64
	CreatedAt     time.Time
}
