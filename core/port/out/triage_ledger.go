package out

import "context"

// ProcessedLedger remembers which mailbox messages already got a reply,
// so a message that could not be marked read is never answered twice.
type ProcessedLedger interface {
	Seen(ctx context.Context, messageID string) (bool, error)
	Record(ctx context.Context, messageID string) error
}
