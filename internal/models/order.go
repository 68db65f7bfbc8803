package models

import (
	"errors"
	"strings"
)

// Order is a purchase record referencing a client.
type Order struct {
	PK string `dynamodbav:"PK" json:"-"` // ORDER#<id>
	SK string `dynamodbav:"SK" json:"-"` // ORDER

	ID        string  `dynamodbav:"id" json:"id"`
	ClientID  string  `dynamodbav:"client_id" json:"clientId"`
	Title     string  `dynamodbav:"title" json:"title"`
	Amount    float64 `dynamodbav:"amount" json:"amount"`
	CreatedAt string  `dynamodbav:"created_at" json:"createdAt"`
}

// Validate checks the record shape before it is written to the store.
func (o Order) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return errors.New("order id required")
	}
	if strings.TrimSpace(o.ClientID) == "" {
		return errors.New("order clientId required")
	}
	if strings.TrimSpace(o.Title) == "" {
		return errors.New("order title required")
	}
	return nil
}
