package uco

// switcher is this module's stand-in for "two saved contexts":
// a uthread's own context and the switcher context of whoever resumes it
// (always the scheduler, for user uthreads). Since a uthread here is a real
// goroutine, "saving a context" becomes "blocking on a
// channel", and "restoring a context" becomes "unblocking the other side's
// channel" — a rendezvous, so at most one of the two goroutines backing a
// given uthread is ever runnable, exactly mirroring a single saved
// execution frame per uthread.
type switcher struct {
	resume  chan struct{} // scheduler -> uthread goroutine: run now
	suspend chan struct{} // uthread goroutine -> scheduler: control given back
}

func newSwitcher() *switcher {
	return &switcher{
		resume:  make(chan struct{}),
		suspend: make(chan struct{}),
	}
}

// switchIn is called by the scheduler coroutine: hand control to target and
// block until target suspends (publishing its reason into its ev field first).
func (s *switcher) switchIn() {
	s.resume <- struct{}{}
	<-s.suspend
}

// switchOut is called from within the uthread's own goroutine: give control
// back to whoever switched in, and block until switched in again.
func (s *switcher) switchOut() {
	s.suspend <- struct{}{}
	<-s.resume
}
