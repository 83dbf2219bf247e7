package focus

import "context"

// runScan walks every configured position in order and scores each one.
// The enumerator is single use; each run starts a fresh walk.
func (c *Controller) runScan(ctx context.Context) error {
	enum := c.cfg.Positions.Enumerator()
	for {
		pos, ok := enum.Next()
		if !ok {
			return nil
		}
		if _, err := c.evaluate(ctx, pos); err != nil {
			return err
		}
	}
}
