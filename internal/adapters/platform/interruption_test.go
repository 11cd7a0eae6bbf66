// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wingetpro/wingetpro/internal/domain"
)

func TestInterruption(t *testing.T) {
	t.Parallel()

	live := context.Background()

	expired, cancelExpired := context.WithCancel(live)
	cancelExpired()

	canceledParent, cancelParent := context.WithCancel(live)
	cancelParent()

	childOfCanceled, cancelChild := context.WithCancel(canceledParent)
	defer cancelChild()

	killed := errors.New("signal: killed")

	tests := []struct {
		name        string
		runErr      error
		runCtx      context.Context //nolint:containedctx
		parent      context.Context //nolint:containedctx
		kind        domain.ErrorKind
		interrupted bool
	}{
		{name: "clean exit", runCtx: live, parent: live},
		{name: "clean exit after the deadline passed", runCtx: expired, parent: live},
		{name: "non-zero exit before the deadline", runErr: killed, runCtx: live, parent: live},
		{name: "killed on timeout", runErr: killed, runCtx: expired, parent: live, kind: domain.KindTimeout, interrupted: true},
		{name: "killed on cancel", runErr: killed, runCtx: childOfCanceled, parent: canceledParent, kind: domain.KindCanceled, interrupted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			kind, interrupted := interruption(tt.runErr, tt.runCtx, tt.parent)
			assert.Equal(t, tt.interrupted, interrupted)

			if tt.interrupted {
				assert.Equal(t, tt.kind, kind)
			}
		})
	}
}
