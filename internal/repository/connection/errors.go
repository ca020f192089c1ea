package connection

import "errors"

var (
	ErrAlreadyExists = errors.New("connection already exists")
	ErrNotFound      = errors.New("connection not found")
	ErrSlowConsumer  = errors.New("connection send buffer is full")
)
