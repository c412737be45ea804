package api

import (
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

type loadBalancerPayload struct {
	ID                 string             `json:"id,omitempty"`
	Name               string             `json:"name"`
	Description        string             `json:"description,omitempty"`
	AdminStateUp       *bool              `json:"admin_state_up,omitempty"`
	Provider           string             `json:"provider,omitempty"`
	FlavorID           string             `json:"flavor_id,omitempty"`
	VIPSubnetID        string             `json:"vip_subnet_id,omitempty"`
	VIPAddress         string             `json:"vip_address,omitempty"`
	VIPPortID          string             `json:"vip_port_id,omitempty"`
	ProvisioningStatus string             `json:"provisioning_status,omitempty"`
	OperatingStatus    string             `json:"operating_status,omitempty"`
	Listeners          []listenerPayload  `json:"listeners,omitempty"`
	Pools              []poolPayload      `json:"pools,omitempty"`
}

type listenerPayload struct {
	ID                     string            `json:"id,omitempty"`
	LoadBalancerID         string            `json:"loadbalancer_id,omitempty"`
	Name                   string            `json:"name"`
	Protocol               string            `json:"protocol"`
	ProtocolPort           int               `json:"protocol_port"`
	ConnectionLimit        int               `json:"connection_limit,omitempty"`
	AdminStateUp           *bool             `json:"admin_state_up,omitempty"`
	DefaultPoolID          string            `json:"default_pool_id,omitempty"`
	DefaultTLSContainerRef string            `json:"default_tls_container_ref,omitempty"`
	SNIContainerRefs       []string          `json:"sni_container_refs,omitempty"`
	ProvisioningStatus     string            `json:"provisioning_status,omitempty"`
	OperatingStatus        string            `json:"operating_status,omitempty"`
	DefaultPool            *poolPayload      `json:"default_pool,omitempty"`
	L7Policies             []l7PolicyPayload `json:"l7policies,omitempty"`
}

type poolPayload struct {
	ID                 string                 `json:"id,omitempty"`
	LoadBalancerID     string                 `json:"loadbalancer_id,omitempty"`
	ListenerID         string                 `json:"listener_id,omitempty"`
	Name               string                 `json:"name"`
	Protocol           string                 `json:"protocol"`
	Algorithm          string                 `json:"lb_algorithm"`
	AdminStateUp       *bool                  `json:"admin_state_up,omitempty"`
	SessionPersistence *lb.SessionPersistence `json:"session_persistence,omitempty"`
	ProvisioningStatus string                 `json:"provisioning_status,omitempty"`
	OperatingStatus    string                 `json:"operating_status,omitempty"`
	Members            []memberPayload        `json:"members,omitempty"`
	HealthMonitor      *healthMonitorPayload  `json:"healthmonitor,omitempty"`
	ListenerIDs        []string               `json:"listener_ids,omitempty"`
}

type memberPayload struct {
	ID                 string `json:"id,omitempty"`
	PoolID             string `json:"pool_id,omitempty"`
	Name               string `json:"name,omitempty"`
	Address            string `json:"address"`
	ProtocolPort       int    `json:"protocol_port"`
	Weight             int    `json:"weight,omitempty"`
	SubnetID           string `json:"subnet_id,omitempty"`
	AdminStateUp       *bool  `json:"admin_state_up,omitempty"`
	ProvisioningStatus string `json:"provisioning_status,omitempty"`
	OperatingStatus    string `json:"operating_status,omitempty"`
}

type healthMonitorPayload struct {
	ID                 string `json:"id,omitempty"`
	PoolID             string `json:"pool_id,omitempty"`
	Type               string `json:"type"`
	Delay              int    `json:"delay"`
	Timeout            int    `json:"timeout"`
	MaxRetries         int    `json:"max_retries"`
	MaxRetriesDown     int    `json:"max_retries_down,omitempty"`
	HTTPMethod         string `json:"http_method,omitempty"`
	URLPath            string `json:"url_path,omitempty"`
	ExpectedCodes      string `json:"expected_codes,omitempty"`
	AdminStateUp       *bool  `json:"admin_state_up,omitempty"`
	ProvisioningStatus string `json:"provisioning_status,omitempty"`
}

type l7PolicyPayload struct {
	ID                 string          `json:"id,omitempty"`
	ListenerID         string          `json:"listener_id,omitempty"`
	Name               string          `json:"name,omitempty"`
	Action             string          `json:"action"`
	Position           int             `json:"position,omitempty"`
	RedirectPoolID     string          `json:"redirect_pool_id,omitempty"`
	RedirectURL        string          `json:"redirect_url,omitempty"`
	AdminStateUp       *bool           `json:"admin_state_up,omitempty"`
	ProvisioningStatus string          `json:"provisioning_status,omitempty"`
	Rules              []l7RulePayload `json:"rules,omitempty"`
}

type l7RulePayload struct {
	ID                 string `json:"id,omitempty"`
	L7PolicyID         string `json:"l7policy_id,omitempty"`
	Type               string `json:"type"`
	CompareType        string `json:"compare_type"`
	Key                string `json:"key,omitempty"`
	Value              string `json:"value"`
	Invert             bool   `json:"invert,omitempty"`
	AdminStateUp       *bool  `json:"admin_state_up,omitempty"`
	ProvisioningStatus string `json:"provisioning_status,omitempty"`
}

// adminUp defaults an absent admin_state_up to true, matching the usual
// create semantics.
func adminUp(v *bool) bool {
	if v == nil {
		return true
	}

	return *v
}

func (p *loadBalancerPayload) toModel() *lb.LoadBalancer {
	out := &lb.LoadBalancer{
		Name:         p.Name,
		Description:  p.Description,
		AdminStateUp: adminUp(p.AdminStateUp),
		Provider:     p.Provider,
		FlavorID:     p.FlavorID,
		VIPSubnetID:  p.VIPSubnetID,
		VIPAddress:   p.VIPAddress,
	}

	for i := range p.Listeners {
		out.Listeners = append(out.Listeners, p.Listeners[i].toModel())
	}

	for i := range p.Pools {
		out.Pools = append(out.Pools, p.Pools[i].toModel())
	}

	return out
}

func (p *listenerPayload) toModel() *lb.Listener {
	out := &lb.Listener{
		LoadBalancerID:         p.LoadBalancerID,
		Name:                   p.Name,
		Protocol:               p.Protocol,
		ProtocolPort:           p.ProtocolPort,
		ConnectionLimit:        p.ConnectionLimit,
		AdminStateUp:           adminUp(p.AdminStateUp),
		DefaultPoolID:          p.DefaultPoolID,
		DefaultTLSContainerRef: p.DefaultTLSContainerRef,
		SNIContainerRefs:       p.SNIContainerRefs,
	}

	if p.DefaultPool != nil {
		out.DefaultPool = p.DefaultPool.toModel()
	}

	for i := range p.L7Policies {
		out.L7Policies = append(out.L7Policies, p.L7Policies[i].toModel())
	}

	return out
}

func (p *poolPayload) toModel() *lb.Pool {
	out := &lb.Pool{
		LoadBalancerID:     p.LoadBalancerID,
		Name:               p.Name,
		Protocol:           p.Protocol,
		Algorithm:          p.Algorithm,
		AdminStateUp:       adminUp(p.AdminStateUp),
		SessionPersistence: p.SessionPersistence,
	}

	for i := range p.Members {
		out.Members = append(out.Members, p.Members[i].toModel())
	}

	if p.HealthMonitor != nil {
		out.HealthMonitor = p.HealthMonitor.toModel()
	}

	return out
}

func (p *memberPayload) toModel() *lb.Member {
	return &lb.Member{
		PoolID:       p.PoolID,
		Name:         p.Name,
		Address:      p.Address,
		ProtocolPort: p.ProtocolPort,
		Weight:       p.Weight,
		SubnetID:     p.SubnetID,
		AdminStateUp: adminUp(p.AdminStateUp),
	}
}

func (p *healthMonitorPayload) toModel() *lb.HealthMonitor {
	return &lb.HealthMonitor{
		PoolID:         p.PoolID,
		Type:           p.Type,
		Delay:          p.Delay,
		Timeout:        p.Timeout,
		MaxRetries:     p.MaxRetries,
		MaxRetriesDown: p.MaxRetriesDown,
		HTTPMethod:     p.HTTPMethod,
		URLPath:        p.URLPath,
		ExpectedCodes:  p.ExpectedCodes,
		AdminStateUp:   adminUp(p.AdminStateUp),
	}
}

func (p *l7PolicyPayload) toModel() *lb.L7Policy {
	out := &lb.L7Policy{
		ListenerID:     p.ListenerID,
		Name:           p.Name,
		Action:         p.Action,
		Position:       p.Position,
		RedirectPoolID: p.RedirectPoolID,
		RedirectURL:    p.RedirectURL,
		AdminStateUp:   adminUp(p.AdminStateUp),
	}

	for i := range p.Rules {
		out.Rules = append(out.Rules, p.Rules[i].toModel())
	}

	return out
}

func (p *l7RulePayload) toModel() *lb.L7Rule {
	return &lb.L7Rule{
		L7PolicyID:   p.L7PolicyID,
		Type:         p.Type,
		CompareType:  p.CompareType,
		Key:          p.Key,
		Value:        p.Value,
		Invert:       p.Invert,
		AdminStateUp: adminUp(p.AdminStateUp),
	}
}

func boolPtr(v bool) *bool { return &v }

func loadBalancerView(l *lb.LoadBalancer) loadBalancerPayload {
	out := loadBalancerPayload{
		ID:                 l.ID,
		Name:               l.Name,
		Description:        l.Description,
		AdminStateUp:       boolPtr(l.AdminStateUp),
		Provider:           l.Provider,
		FlavorID:           l.FlavorID,
		VIPSubnetID:        l.VIPSubnetID,
		VIPAddress:         l.VIPAddress,
		VIPPortID:          l.VIPPortID,
		ProvisioningStatus: string(l.ProvisioningStatus),
		OperatingStatus:    string(l.OperatingStatus),
	}

	for _, li := range l.Listeners {
		out.Listeners = append(out.Listeners, listenerView(li))
	}

	for _, p := range l.Pools {
		out.Pools = append(out.Pools, poolView(p))
	}

	return out
}

func listenerView(l *lb.Listener) listenerPayload {
	out := listenerPayload{
		ID:                     l.ID,
		LoadBalancerID:         l.LoadBalancerID,
		Name:                   l.Name,
		Protocol:               l.Protocol,
		ProtocolPort:           l.ProtocolPort,
		ConnectionLimit:        l.ConnectionLimit,
		AdminStateUp:           boolPtr(l.AdminStateUp),
		DefaultPoolID:          l.DefaultPoolID,
		DefaultTLSContainerRef: l.DefaultTLSContainerRef,
		SNIContainerRefs:       l.SNIContainerRefs,
		ProvisioningStatus:     string(l.ProvisioningStatus),
		OperatingStatus:        string(l.OperatingStatus),
	}

	for _, p := range l.L7Policies {
		out.L7Policies = append(out.L7Policies, l7PolicyView(p))
	}

	return out
}

func poolView(p *lb.Pool) poolPayload {
	out := poolPayload{
		ID:                 p.ID,
		LoadBalancerID:     p.LoadBalancerID,
		Name:               p.Name,
		Protocol:           p.Protocol,
		Algorithm:          p.Algorithm,
		AdminStateUp:       boolPtr(p.AdminStateUp),
		SessionPersistence: p.SessionPersistence,
		ProvisioningStatus: string(p.ProvisioningStatus),
		OperatingStatus:    string(p.OperatingStatus),
		ListenerIDs:        p.ListenerIDs,
	}

	for _, m := range p.Members {
		out.Members = append(out.Members, memberView(m))
	}

	if p.HealthMonitor != nil {
		hm := healthMonitorView(p.HealthMonitor)
		out.HealthMonitor = &hm
	}

	return out
}

func memberView(m *lb.Member) memberPayload {
	return memberPayload{
		ID:                 m.ID,
		PoolID:             m.PoolID,
		Name:               m.Name,
		Address:            m.Address,
		ProtocolPort:       m.ProtocolPort,
		Weight:             m.Weight,
		SubnetID:           m.SubnetID,
		AdminStateUp:       boolPtr(m.AdminStateUp),
		ProvisioningStatus: string(m.ProvisioningStatus),
		OperatingStatus:    string(m.OperatingStatus),
	}
}

func healthMonitorView(hm *lb.HealthMonitor) healthMonitorPayload {
	return healthMonitorPayload{
		ID:                 hm.ID,
		PoolID:             hm.PoolID,
		Type:               hm.Type,
		Delay:              hm.Delay,
		Timeout:            hm.Timeout,
		MaxRetries:         hm.MaxRetries,
		MaxRetriesDown:     hm.MaxRetriesDown,
		HTTPMethod:         hm.HTTPMethod,
		URLPath:            hm.URLPath,
		ExpectedCodes:      hm.ExpectedCodes,
		AdminStateUp:       boolPtr(hm.AdminStateUp),
		ProvisioningStatus: string(hm.ProvisioningStatus),
	}
}

func l7PolicyView(p *lb.L7Policy) l7PolicyPayload {
	out := l7PolicyPayload{
		ID:                 p.ID,
		ListenerID:         p.ListenerID,
		Name:               p.Name,
		Action:             p.Action,
		Position:           p.Position,
		RedirectPoolID:     p.RedirectPoolID,
		RedirectURL:        p.RedirectURL,
		AdminStateUp:       boolPtr(p.AdminStateUp),
		ProvisioningStatus: string(p.ProvisioningStatus),
	}

	for _, r := range p.Rules {
		out.Rules = append(out.Rules, l7RuleView(r))
	}

	return out
}

func l7RuleView(r *lb.L7Rule) l7RulePayload {
	return l7RulePayload{
		ID:                 r.ID,
		L7PolicyID:         r.L7PolicyID,
		Type:               r.Type,
		CompareType:        r.CompareType,
		Key:                r.Key,
		Value:              r.Value,
		Invert:             r.Invert,
		AdminStateUp:       boolPtr(r.AdminStateUp),
		ProvisioningStatus: string(r.ProvisioningStatus),
	}
}
