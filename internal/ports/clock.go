package ports

import "time"

// Clock es la única fuente de tiempo del motor.
type Clock interface {
	Now() time.Time
}
