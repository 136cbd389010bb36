package adminauth

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/adminauth/internal/audit"
)

// AuditEvent is one activity-log record.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink writes audit events as structured log records.
type SlogSink = audit.SlogSink

// Activity-log event types.
const (
	AuditSecretRotated         = "secret_rotated"
	AuditSecretRotationFailed  = "secret_rotation_failed"
	AuditSecretRetired         = "secret_previous_retired"
	AuditTokenBlacklisted      = "token_blacklisted"
	AuditBlacklistCleanup      = "blacklist_cleanup"
	AuditRevocationUnavailable = "revocation_store_unavailable"
	AuditRefresh               = "token_refreshed"
	AuditLogout                = "logout"
	AuditRoleTableReloaded     = "role_table_reloaded"
)

// NewChannelSink returns a sink that buffers up to buffer events.
func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

// NewJSONWriterSink returns a sink that writes JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }

// NewSlogSink returns a sink that logs events at info level.
func NewSlogSink(logger *slog.Logger) *SlogSink { return audit.NewSlogSink(logger) }
