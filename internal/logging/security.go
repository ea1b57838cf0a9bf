// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package logging

import (
	"go.uber.org/zap"
)

// SecurityLogger emits audit events for authentication and authorization
// decisions. Events carry a stable "event" field so they can be routed to a
// SIEM independently of application logs.
type SecurityLogger struct {
	l *zap.Logger
}

func (s *SecurityLogger) SystemStartup() {
	s.l.Info("system startup", zap.String("event", "sys_startup"))
}

func (s *SecurityLogger) SystemShutdown() {
	s.l.Info("system shutdown", zap.String("event", "sys_shutdown"))
}

func (s *SecurityLogger) AuthSuccess(userID string) {
	s.l.Info("authentication succeeded",
		zap.String("event", "authn_login_success"),
		zap.String("user_id", userID),
	)
}

func (s *SecurityLogger) AuthFailure(subject string) {
	s.l.Warn("authentication failed",
		zap.String("event", "authn_login_fail"),
		zap.String("subject", subject),
	)
}

func (s *SecurityLogger) AuthzFailure(userID, resource string) {
	s.l.Warn("authorization denied",
		zap.String("event", "authz_fail"),
		zap.String("user_id", userID),
		zap.String("resource", resource),
	)
}

func (s *SecurityLogger) TokenIssued(userID string) {
	s.l.Info("token issued",
		zap.String("event", "authn_token_issued"),
		zap.String("user_id", userID),
	)
}

func (s *SecurityLogger) TokenRevoked(userID string) {
	s.l.Info("token revoked",
		zap.String("event", "authn_token_revoked"),
		zap.String("user_id", userID),
	)
}
