// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// idleReader closes the wrapped body when a Read waits longer than
// timeout, which unblocks the Read with ErrIdleTimeout.
type idleReader struct {
	rc       io.ReadCloser
	timeout  time.Duration
	timedOut atomic.Bool
}

func newIdleReader(rc io.ReadCloser, timeout time.Duration) io.ReadCloser {
	if timeout <= 0 {
		return rc
	}
	return &idleReader{rc: rc, timeout: timeout}
}

func (r *idleReader) Read(p []byte) (int, error) {
	if r.timedOut.Load() {
		return 0, r.idleErr()
	}
	timer := time.AfterFunc(r.timeout, func() {
		r.timedOut.Store(true)
		r.rc.Close()
	})
	n, err := r.rc.Read(p)
	timer.Stop()

	if r.timedOut.Load() {
		return n, r.idleErr()
	}
	return n, err
}

func (r *idleReader) Close() error {
	if r.timedOut.Load() {
		return nil
	}
	return r.rc.Close()
}

func (r *idleReader) idleErr() error {
	return fmt.Errorf("%w: no data received for %s", ErrIdleTimeout, r.timeout)
}
