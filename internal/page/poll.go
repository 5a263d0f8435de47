package page

import (
	"context"
	"sync"
	"time"
)

// Poll drives p from a ticker until ctx is done, then closes the page. It is
// the headless counterpart of the dashboard's tick loop: each tick starts at
// most one cycle, and onApply runs after every cycle that changed the page.
func Poll(ctx context.Context, p *Page, every time.Duration, onApply func(Result)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	defer p.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq, ok := p.BeginCycle()
			if !ok {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				r := p.Fetch(seq)
				if p.CompleteCycle(r) && onApply != nil {
					onApply(r)
				}
			}()
		}
	}
}
