package watcher

import "fmt"

// FeedError reports that the pending-transaction feed failed. The pump stops on
// it; callers decide whether to reconnect.
type FeedError struct {
	Err error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("pending transaction feed: %v", e.Err)
}

func (e *FeedError) Unwrap() error { return e.Err }
