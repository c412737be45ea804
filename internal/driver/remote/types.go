package remote

import (
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// Wire payloads for the backend REST API. The backend reuses the ids minted
// by the control plane, so every create carries the id.

type loadBalancerPayload struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
	VIPAddress   string `json:"vip_address,omitempty"`
	VIPSubnetID  string `json:"vip_subnet_id,omitempty"`
	AdminStateUp bool   `json:"admin_state_up"`
}

type sessionPersistencePayload struct {
	Type       string `json:"type"`
	CookieName string `json:"cookie_name,omitempty"`
}

type listenerPayload struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name,omitempty"`
	Protocol               string   `json:"protocol"`
	ProtocolPort           int      `json:"protocol_port"`
	ConnectionLimit        int      `json:"connection_limit,omitempty"`
	DefaultPoolID          string   `json:"default_pool_id,omitempty"`
	DefaultTLSContainerRef string   `json:"default_tls_container_ref,omitempty"`
	SNIContainerRefs       []string `json:"sni_container_refs,omitempty"`
	AdminStateUp           bool     `json:"admin_state_up"`
}

type poolPayload struct {
	ID                 string                     `json:"id"`
	Name               string                     `json:"name,omitempty"`
	Protocol           string                     `json:"protocol"`
	LBAlgorithm        string                     `json:"lb_algorithm"`
	SessionPersistence *sessionPersistencePayload `json:"session_persistence,omitempty"`
	AdminStateUp       bool                       `json:"admin_state_up"`
}

type memberPayload struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Address      string `json:"address"`
	ProtocolPort int    `json:"protocol_port"`
	Weight       int    `json:"weight"`
	SubnetID     string `json:"subnet_id,omitempty"`
	AdminStateUp bool   `json:"admin_state_up"`
}

type healthMonitorPayload struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Delay          int    `json:"delay"`
	Timeout        int    `json:"timeout"`
	MaxRetries     int    `json:"max_retries"`
	MaxRetriesDown int    `json:"max_retries_down,omitempty"`
	HTTPMethod     string `json:"http_method,omitempty"`
	URLPath        string `json:"url_path,omitempty"`
	ExpectedCodes  string `json:"expected_codes,omitempty"`
	AdminStateUp   bool   `json:"admin_state_up"`
}

type l7PolicyPayload struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	Action         string `json:"action"`
	Position       int    `json:"position"`
	RedirectPoolID string `json:"redirect_pool_id,omitempty"`
	RedirectURL    string `json:"redirect_url,omitempty"`
	AdminStateUp   bool   `json:"admin_state_up"`
}

type l7RulePayload struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	CompareType  string `json:"compare_type"`
	Key          string `json:"key,omitempty"`
	Value        string `json:"value"`
	Invert       bool   `json:"invert"`
	AdminStateUp bool   `json:"admin_state_up"`
}

// loadBalancerStatus is the backend's status document for a root resource.
type loadBalancerStatus struct {
	ID                 string `json:"id"`
	ProvisioningStatus string `json:"provisioning_status"`
	OperatingStatus    string `json:"operating_status"`
	VIP                struct {
		IPAddress string `json:"ip_address"`
		PortID    string `json:"port_id"`
	} `json:"vip"`
}

func loadBalancerArgs(lbr *lb.LoadBalancer) loadBalancerPayload {
	return loadBalancerPayload{
		ID:           lbr.ID,
		Name:         lbr.Name,
		Description:  lbr.Description,
		VIPAddress:   lbr.VIPAddress,
		VIPSubnetID:  lbr.VIPSubnetID,
		AdminStateUp: lbr.AdminStateUp,
	}
}

func listenerArgs(l *lb.Listener) listenerPayload {
	return listenerPayload{
		ID:                     l.ID,
		Name:                   l.Name,
		Protocol:               l.Protocol,
		ProtocolPort:           l.ProtocolPort,
		ConnectionLimit:        l.ConnectionLimit,
		DefaultPoolID:          l.DefaultPoolID,
		DefaultTLSContainerRef: l.DefaultTLSContainerRef,
		SNIContainerRefs:       l.SNIContainerRefs,
		AdminStateUp:           l.AdminStateUp,
	}
}

func poolArgs(p *lb.Pool) poolPayload {
	payload := poolPayload{
		ID:           p.ID,
		Name:         p.Name,
		Protocol:     p.Protocol,
		LBAlgorithm:  p.Algorithm,
		AdminStateUp: p.AdminStateUp,
	}

	if p.SessionPersistence != nil {
		payload.SessionPersistence = &sessionPersistencePayload{
			Type:       p.SessionPersistence.Type,
			CookieName: p.SessionPersistence.CookieName,
		}
	}

	return payload
}

func memberArgs(m *lb.Member) memberPayload {
	return memberPayload{
		ID:           m.ID,
		Name:         m.Name,
		Address:      m.Address,
		ProtocolPort: m.ProtocolPort,
		Weight:       m.Weight,
		SubnetID:     m.SubnetID,
		AdminStateUp: m.AdminStateUp,
	}
}

func healthMonitorArgs(hm *lb.HealthMonitor) healthMonitorPayload {
	return healthMonitorPayload{
		ID:             hm.ID,
		Type:           hm.Type,
		Delay:          hm.Delay,
		Timeout:        hm.Timeout,
		MaxRetries:     hm.MaxRetries,
		MaxRetriesDown: hm.MaxRetriesDown,
		HTTPMethod:     hm.HTTPMethod,
		URLPath:        hm.URLPath,
		ExpectedCodes:  hm.ExpectedCodes,
		AdminStateUp:   hm.AdminStateUp,
	}
}

func l7PolicyArgs(p *lb.L7Policy) l7PolicyPayload {
	return l7PolicyPayload{
		ID:             p.ID,
		Name:           p.Name,
		Action:         p.Action,
		Position:       p.Position,
		RedirectPoolID: p.RedirectPoolID,
		RedirectURL:    p.RedirectURL,
		AdminStateUp:   p.AdminStateUp,
	}
}

func l7RuleArgs(r *lb.L7Rule) l7RulePayload {
	return l7RulePayload{
		ID:           r.ID,
		Type:         r.Type,
		CompareType:  r.CompareType,
		Key:          r.Key,
		Value:        r.Value,
		Invert:       r.Invert,
		AdminStateUp: r.AdminStateUp,
	}
}
