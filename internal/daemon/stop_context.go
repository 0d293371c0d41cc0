package daemon

import "context"

// stopAwareContext returns a context canceled when either parent is done or
// Stop is called. Callers must call the returned cancel func.
func (d *Daemon) stopAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-d.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
