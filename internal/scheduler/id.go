package scheduler

import "github.com/oklog/ulid/v2"

func newRunID() string {
	return "run-" + ulid.Make().String()
}
