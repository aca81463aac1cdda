package service

import (
	"context"
	"time"

	"taxcase/pkg/requestcontext"
)

func withTime(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}
