package queue

import (
	"context"
)

// DirConsumer feeds a Dir's jobs to a processor: files already pending at
// start first, then files reported stable by the Watcher.
type DirConsumer struct {
	*Dir
	events  <-chan string
	backlog []string
	scanned bool
}

var _ Consumer = (*DirConsumer)(nil)

// NewDirConsumer consumes d, learning about new files from events.
func NewDirConsumer(d *Dir, events <-chan string) *DirConsumer {
	return &DirConsumer{Dir: d, events: events}
}

// Next returns the next claimable job. Not safe for concurrent use.
func (c *DirConsumer) Next(ctx context.Context) (*Delivery, error) {
	if !c.scanned {
		pending, err := c.Pending()
		if err != nil {
			return nil, err
		}
		c.backlog = pending
		c.scanned = true
	}
	for {
		var path string
		if len(c.backlog) > 0 {
			path, c.backlog = c.backlog[0], c.backlog[1:]
		} else {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case p, ok := <-c.events:
				if !ok {
					return nil, context.Canceled
				}
				path = p
			}
		}
		d, err := c.Claim(path)
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}
	}
}
