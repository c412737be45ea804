package dispatcher

import (
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

var validProtocols = map[string]bool{
	lb.ProtocolTCP:             true,
	lb.ProtocolHTTP:            true,
	lb.ProtocolHTTPS:           true,
	lb.ProtocolTerminatedHTTPS: true,
}

var validAlgorithms = map[string]bool{
	lb.AlgorithmRoundRobin:       true,
	lb.AlgorithmLeastConnections: true,
	lb.AlgorithmSourceIP:         true,
}

var validMonitorTypes = map[string]bool{
	lb.MonitorPing:  true,
	lb.MonitorTCP:   true,
	lb.MonitorHTTP:  true,
	lb.MonitorHTTPS: true,
}

var validL7Actions = map[string]bool{
	lb.L7ActionReject:         true,
	lb.L7ActionRedirectToPool: true,
	lb.L7ActionRedirectToURL:  true,
}

var validL7RuleTypes = map[string]bool{
	lb.L7RuleHostName: true,
	lb.L7RulePath:     true,
	lb.L7RuleFileType: true,
	lb.L7RuleHeader:   true,
	lb.L7RuleCookie:   true,
}

var validL7CompareTypes = map[string]bool{
	lb.L7CompareRegex:      true,
	lb.L7CompareStartsWith: true,
	lb.L7CompareEndsWith:   true,
	lb.L7CompareContains:   true,
	lb.L7CompareEqualTo:    true,
}

// validateSessionPersistence enforces that a cookie name is present iff the
// persistence type is APP_COOKIE.
func validateSessionPersistence(sp *lb.SessionPersistence) error {
	if sp == nil {
		return nil
	}

	switch sp.Type {
	case lb.SessionPersistenceAppCookie:
		if sp.CookieName == "" {
			return lb.NewValidationError("session persistence type %s requires a cookie_name", sp.Type)
		}
	case lb.SessionPersistenceSourceIP, lb.SessionPersistenceHTTPCookie:
		if sp.CookieName != "" {
			return lb.NewValidationError("session persistence type %s does not accept a cookie_name", sp.Type)
		}
	default:
		return lb.NewValidationError("unknown session persistence type %q", sp.Type)
	}

	return nil
}

func validateListener(l *lb.Listener) error {
	if !validProtocols[l.Protocol] {
		return lb.NewValidationError("unknown listener protocol %q", l.Protocol)
	}

	if l.ProtocolPort < 1 || l.ProtocolPort > 65535 {
		return lb.NewValidationError("listener port %d out of range", l.ProtocolPort)
	}

	hasTLSRefs := l.DefaultTLSContainerRef != "" || len(l.SNIContainerRefs) > 0

	if l.Protocol == lb.ProtocolTerminatedHTTPS {
		if l.DefaultTLSContainerRef == "" {
			return lb.NewValidationError("listener protocol %s requires a default_tls_container_ref", l.Protocol)
		}
	} else if hasTLSRefs {
		return lb.NewValidationError("tls container refs are only valid for %s listeners", lb.ProtocolTerminatedHTTPS)
	}

	return nil
}

func validatePool(p *lb.Pool) error {
	if !validProtocols[p.Protocol] || p.Protocol == lb.ProtocolTerminatedHTTPS {
		return lb.NewValidationError("unknown pool protocol %q", p.Protocol)
	}

	if !validAlgorithms[p.Algorithm] {
		return lb.NewValidationError("unknown pool algorithm %q", p.Algorithm)
	}

	return validateSessionPersistence(p.SessionPersistence)
}

func validateMember(m *lb.Member) error {
	if m.Address == "" {
		return lb.NewValidationError("member address is required")
	}

	if m.ProtocolPort < 1 || m.ProtocolPort > 65535 {
		return lb.NewValidationError("member port %d out of range", m.ProtocolPort)
	}

	if m.Weight < 0 || m.Weight > 256 {
		return lb.NewValidationError("member weight %d out of range", m.Weight)
	}

	return nil
}

// validateHealthMonitor keeps the delay/timeout comparison exactly as the
// lifecycle has always enforced it: a delay shorter than the timeout is
// rejected.
func validateHealthMonitor(hm *lb.HealthMonitor) error {
	if !validMonitorTypes[hm.Type] {
		return lb.NewValidationError("unknown health monitor type %q", hm.Type)
	}

	if hm.Delay < hm.Timeout {
		return lb.NewValidationError("health monitor delay %d must be greater than or equal to timeout %d", hm.Delay, hm.Timeout)
	}

	if hm.MaxRetries < 1 || hm.MaxRetries > 10 {
		return lb.NewValidationError("health monitor max_retries %d out of range", hm.MaxRetries)
	}

	if hm.MaxRetriesDown < 1 || hm.MaxRetriesDown > 10 {
		return lb.NewValidationError("health monitor max_retries_down %d out of range", hm.MaxRetriesDown)
	}

	return nil
}

func validateL7Policy(p *lb.L7Policy) error {
	if !validL7Actions[p.Action] {
		return lb.NewValidationError("unknown l7 policy action %q", p.Action)
	}

	switch p.Action {
	case lb.L7ActionRedirectToPool:
		if p.RedirectPoolID == "" {
			return lb.NewValidationError("l7 policy action %s requires a redirect_pool_id", p.Action)
		}
	case lb.L7ActionRedirectToURL:
		if p.RedirectURL == "" {
			return lb.NewValidationError("l7 policy action %s requires a redirect_url", p.Action)
		}
	}

	if p.Position < 0 {
		return lb.NewValidationError("l7 policy position %d out of range", p.Position)
	}

	return nil
}

func validateL7Rule(r *lb.L7Rule) error {
	if !validL7RuleTypes[r.Type] {
		return lb.NewValidationError("unknown l7 rule type %q", r.Type)
	}

	if !validL7CompareTypes[r.CompareType] {
		return lb.NewValidationError("unknown l7 rule compare type %q", r.CompareType)
	}

	if r.Value == "" {
		return lb.NewValidationError("l7 rule value is required")
	}

	if (r.Type == lb.L7RuleHeader || r.Type == lb.L7RuleCookie) && r.Key == "" {
		return lb.NewValidationError("l7 rule type %s requires a key", r.Type)
	}

	return nil
}
