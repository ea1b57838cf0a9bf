// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package notifications

import "context"

var _ NotifierInterface = (*NoopNotifier)(nil)

// NoopNotifier discards every event, wired when live updates are disabled and
// in tests that do not assert on notifications.
type NoopNotifier struct{}

func (n *NoopNotifier) Publish(context.Context, Event) {}

func NewNoopNotifier() *NoopNotifier {
	return &NoopNotifier{}
}
