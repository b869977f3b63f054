package transport

import "time"

// RegisterTimerFunc is the shared implementation of Transport.RegisterTimer,
// usable by any concrete transport without duplicating the ticker/AfterFunc
// bookkeeping.
func RegisterTimerFunc(periodMs uint32, mode TimerMode, fn func()) func() {
	period := time.Duration(periodMs) * time.Millisecond
	switch mode {
	case TimerPeriodic:
		t := time.NewTicker(period)
		done := make(chan struct{})
		go func() {
			for {
				select {
				case <-done:
					return
				case <-t.C:
					fn()
				}
			}
		}()
		return func() {
			t.Stop()
			close(done)
		}
	default:
		t := time.AfterFunc(period, fn)
		return func() { t.Stop() }
	}
}
