// Package resources enforces per-session and per-IP limits for
// interpreter sessions.
package resources

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/antibyte/retroturtle/pkg/configuration"
	"github.com/antibyte/retroturtle/pkg/logger"
)

// Limit errors returned by SessionResourceManager.
var (
	ErrTooManySessions      = errors.New("maximum number of sessions reached")
	ErrTooManySessionsForIP = errors.New("maximum sessions per IP reached")
	ErrSessionNotFound      = errors.New("session not found")
	ErrRunRateExceeded      = errors.New("run rate limit exceeded")
)

// SessionResource tracks one interpreter session.
type SessionResource struct {
	SessionID    string
	IPAddress    string
	CreatedAt    time.Time
	LastActivity time.Time
	RunCount     int64
	Connections  int

	runTimes []time.Time // run starts within the current window
}

// SessionResourceManager owns the registry of live sessions.
type SessionResourceManager struct {
	sessions      map[string]*SessionResource
	sessionsMutex sync.RWMutex

	maxSessions      int
	maxSessionsPerIP int
	maxRuns          int
	runWindow        time.Duration
	maxRunTime       time.Duration

	now func() time.Time
}

// NewSessionResourceManager reads its limits from [Session], [Security]
// and [Interpreter].
func NewSessionResourceManager() *SessionResourceManager {
	return &SessionResourceManager{
		sessions:         make(map[string]*SessionResource),
		maxSessions:      configuration.GetInt("Session", "max_sessions", 200),
		maxSessionsPerIP: configuration.GetInt("Session", "max_sessions_per_ip", 5),
		maxRuns:          configuration.GetInt("Security", "rate_limit_runs", 60),
		runWindow:        configuration.GetDuration("Security", "rate_limit_window", time.Minute),
		maxRunTime:       configuration.GetDuration("Interpreter", "max_run_time", 10*time.Second),
		now:              time.Now,
	}
}

// RegisterSession adds a session or, when it exists already, counts one
// more connection for it.
func (srm *SessionResourceManager) RegisterSession(sessionID, ipAddress string) error {
	srm.sessionsMutex.Lock()
	defer srm.sessionsMutex.Unlock()

	now := srm.now()
	if existing, ok := srm.sessions[sessionID]; ok {
		existing.LastActivity = now
		existing.Connections++
		logger.SessionDebug("Session %s reattached from %s", sessionID, ipAddress)
		return nil
	}

	if srm.maxSessions > 0 && len(srm.sessions) >= srm.maxSessions {
		return fmt.Errorf("%w: %d", ErrTooManySessions, len(srm.sessions))
	}

	ipCount := 0
	for _, session := range srm.sessions {
		if session.IPAddress == ipAddress {
			ipCount++
		}
	}
	if srm.maxSessionsPerIP > 0 && ipCount >= srm.maxSessionsPerIP {
		return fmt.Errorf("%w for %s: %d", ErrTooManySessionsForIP, ipAddress, ipCount)
	}

	srm.sessions[sessionID] = &SessionResource{
		SessionID:    sessionID,
		IPAddress:    ipAddress,
		CreatedAt:    now,
		LastActivity: now,
		Connections:  1,
	}
	logger.SessionInfo("Session registered: %s (IP: %s)", sessionID, ipAddress)
	return nil
}

// Touch records activity on a session.
func (srm *SessionResourceManager) Touch(sessionID string) {
	srm.sessionsMutex.Lock()
	defer srm.sessionsMutex.Unlock()
	if session, ok := srm.sessions[sessionID]; ok {
		session.LastActivity = srm.now()
	}
}

// Detach drops one connection from a session. The session itself stays
// registered until it is unregistered or goes idle.
func (srm *SessionResourceManager) Detach(sessionID string) {
	srm.sessionsMutex.Lock()
	defer srm.sessionsMutex.Unlock()
	if session, ok := srm.sessions[sessionID]; ok && session.Connections > 0 {
		session.Connections--
		session.LastActivity = srm.now()
	}
}

// UnregisterSession removes a session.
func (srm *SessionResourceManager) UnregisterSession(sessionID string) error {
	srm.sessionsMutex.Lock()
	defer srm.sessionsMutex.Unlock()
	return srm.unregisterLocked(sessionID)
}

func (srm *SessionResourceManager) unregisterLocked(sessionID string) error {
	session, ok := srm.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(srm.sessions, sessionID)
	logger.SessionInfo("Session unregistered: %s (duration %v, runs %d)",
		sessionID, srm.now().Sub(session.CreatedAt).Round(time.Second), session.RunCount)
	return nil
}

// AllowRun counts a program run against the session's sliding window and
// reports an error when the limit is exceeded.
func (srm *SessionResourceManager) AllowRun(sessionID string) error {
	srm.sessionsMutex.Lock()
	defer srm.sessionsMutex.Unlock()

	session, ok := srm.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	now := srm.now()
	session.LastActivity = now

	cutoff := now.Add(-srm.runWindow)
	kept := session.runTimes[:0]
	for _, ts := range session.runTimes {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	session.runTimes = kept

	if srm.maxRuns > 0 && len(session.runTimes) >= srm.maxRuns {
		logger.SecurityWarn("Run rate limit hit for session %s", sessionID)
		return fmt.Errorf("%w: %d runs per %v", ErrRunRateExceeded, srm.maxRuns, srm.runWindow)
	}

	session.runTimes = append(session.runTimes, now)
	session.RunCount++
	return nil
}

// RunContext bounds a single program run by [Interpreter] max_run_time.
func (srm *SessionResourceManager) RunContext(parent context.Context) (context.Context, context.CancelFunc) {
	if srm.maxRunTime <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, srm.maxRunTime)
}

// Inactive lists sessions without connections that were idle for longer
// than maxIdle.
func (srm *SessionResourceManager) Inactive(maxIdle time.Duration) []string {
	srm.sessionsMutex.RLock()
	defer srm.sessionsMutex.RUnlock()

	now := srm.now()
	var ids []string
	for id, session := range srm.sessions {
		if session.Connections == 0 && now.Sub(session.LastActivity) > maxIdle {
			ids = append(ids, id)
		}
	}
	return ids
}

// CleanupInactiveSessions unregisters idle sessions and returns their ids.
func (srm *SessionResourceManager) CleanupInactiveSessions(maxIdle time.Duration) []string {
	ids := srm.removeIdle(srm.Inactive(maxIdle), maxIdle)
	if len(ids) > 0 {
		logger.SessionInfo("Cleaned up %d inactive sessions", len(ids))
	}
	return ids
}

// removeIdle unregisters the candidates that are still idle. A candidate may
// have reconnected or run something since it was listed.
func (srm *SessionResourceManager) removeIdle(candidates []string, maxIdle time.Duration) []string {
	srm.sessionsMutex.Lock()
	defer srm.sessionsMutex.Unlock()

	now := srm.now()
	var ids []string
	for _, id := range candidates {
		session, ok := srm.sessions[id]
		if !ok || session.Connections > 0 || now.Sub(session.LastActivity) <= maxIdle {
			continue
		}
		srm.unregisterLocked(id)
		ids = append(ids, id)
	}
	return ids
}

// GetSessionResource returns a copy of a session's record.
func (srm *SessionResourceManager) GetSessionResource(sessionID string) (SessionResource, error) {
	srm.sessionsMutex.RLock()
	defer srm.sessionsMutex.RUnlock()

	session, ok := srm.sessions[sessionID]
	if !ok {
		return SessionResource{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	out := *session
	out.runTimes = nil
	return out, nil
}

// GetSessionStats summarises the registry.
func (srm *SessionResourceManager) GetSessionStats() map[string]interface{} {
	srm.sessionsMutex.RLock()
	defer srm.sessionsMutex.RUnlock()

	var runs int64
	connections := 0
	ips := make(map[string]struct{})
	for _, session := range srm.sessions {
		runs += session.RunCount
		connections += session.Connections
		ips[session.IPAddress] = struct{}{}
	}
	return map[string]interface{}{
		"total_sessions": len(srm.sessions),
		"connections":    connections,
		"total_runs":     runs,
		"unique_ips":     len(ips),
	}
}
