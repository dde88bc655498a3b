package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func GenerateConnectionID() string {
	return uuid.NewString()
}

func GenerateTransactionID() string {
	return fmt.Sprintf("tx_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

func GenerateMessageID() string {
	return fmt.Sprintf("msg_%s", uuid.NewString())
}
