package client

// SessionPersistence configures how a pool sticks clients to members.
type SessionPersistence struct {
	Type       string `json:"type"`
	CookieName string `json:"cookie_name,omitempty"`
}

// LoadBalancer is a load balancer as the control plane renders it. On create,
// nested listeners and pools request a single-call graph create.
type LoadBalancer struct {
	ID                 string     `json:"id,omitempty"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	AdminStateUp       *bool      `json:"admin_state_up,omitempty"`
	Provider           string     `json:"provider,omitempty"`
	FlavorID           string     `json:"flavor_id,omitempty"`
	VIPSubnetID        string     `json:"vip_subnet_id,omitempty"`
	VIPAddress         string     `json:"vip_address,omitempty"`
	VIPPortID          string     `json:"vip_port_id,omitempty"`
	ProvisioningStatus string     `json:"provisioning_status,omitempty"`
	OperatingStatus    string     `json:"operating_status,omitempty"`
	Listeners          []Listener `json:"listeners,omitempty"`
	Pools              []Pool     `json:"pools,omitempty"`
}

// Listener is a frontend port on a load balancer.
type Listener struct {
	ID                     string     `json:"id,omitempty"`
	LoadBalancerID         string     `json:"loadbalancer_id,omitempty"`
	Name                   string     `json:"name,omitempty"`
	Protocol               string     `json:"protocol"`
	ProtocolPort           int        `json:"protocol_port"`
	ConnectionLimit        int        `json:"connection_limit,omitempty"`
	AdminStateUp           *bool      `json:"admin_state_up,omitempty"`
	DefaultPoolID          string     `json:"default_pool_id,omitempty"`
	DefaultTLSContainerRef string     `json:"default_tls_container_ref,omitempty"`
	SNIContainerRefs       []string   `json:"sni_container_refs,omitempty"`
	ProvisioningStatus     string     `json:"provisioning_status,omitempty"`
	OperatingStatus        string     `json:"operating_status,omitempty"`
	DefaultPool            *Pool      `json:"default_pool,omitempty"`
	L7Policies             []L7Policy `json:"l7policies,omitempty"`
}

// Pool is a set of backend members.
type Pool struct {
	ID                 string              `json:"id,omitempty"`
	LoadBalancerID     string              `json:"loadbalancer_id,omitempty"`
	ListenerID         string              `json:"listener_id,omitempty"`
	Name               string              `json:"name,omitempty"`
	Protocol           string              `json:"protocol"`
	Algorithm          string              `json:"lb_algorithm"`
	AdminStateUp       *bool               `json:"admin_state_up,omitempty"`
	SessionPersistence *SessionPersistence `json:"session_persistence,omitempty"`
	ProvisioningStatus string              `json:"provisioning_status,omitempty"`
	OperatingStatus    string              `json:"operating_status,omitempty"`
	Members            []Member            `json:"members,omitempty"`
	HealthMonitor      *HealthMonitor      `json:"healthmonitor,omitempty"`
	ListenerIDs        []string            `json:"listener_ids,omitempty"`
}

// Member is one backend server in a pool.
type Member struct {
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

// HealthMonitor probes a pool's members.
type HealthMonitor struct {
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

// L7Policy routes matching requests on a listener.
type L7Policy struct {
	ID                 string   `json:"id,omitempty"`
	ListenerID         string   `json:"listener_id,omitempty"`
	Name               string   `json:"name,omitempty"`
	Action             string   `json:"action"`
	Position           int      `json:"position,omitempty"`
	RedirectPoolID     string   `json:"redirect_pool_id,omitempty"`
	RedirectURL        string   `json:"redirect_url,omitempty"`
	AdminStateUp       *bool    `json:"admin_state_up,omitempty"`
	ProvisioningStatus string   `json:"provisioning_status,omitempty"`
	Rules              []L7Rule `json:"rules,omitempty"`
}

// L7Rule is one match condition in an L7 policy.
type L7Rule struct {
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

// NodeStatus is one node in a status tree.
type NodeStatus struct {
	ID                 string `json:"id"`
	ProvisioningStatus string `json:"provisioning_status"`
	OperatingStatus    string `json:"operating_status,omitempty"`
}

// StatusTree is the aggregated status view of a whole load balancer.
type StatusTree struct {
	NodeStatus
	Listeners []ListenerStatus `json:"listeners"`
	Pools     []PoolStatus     `json:"pools"`
}

// ListenerStatus is a listener node in a status tree.
type ListenerStatus struct {
	NodeStatus
	L7Policies []L7PolicyStatus `json:"l7policies"`
	Pools      []PoolStatus     `json:"pools"`
}

// PoolStatus is a pool node in a status tree.
type PoolStatus struct {
	NodeStatus
	Members       []NodeStatus `json:"members"`
	HealthMonitor *NodeStatus  `json:"healthmonitor,omitempty"`
}

// L7PolicyStatus is a policy node in a status tree.
type L7PolicyStatus struct {
	NodeStatus
	Rules []NodeStatus `json:"rules"`
}

// MemberStats is per-member health as reported by the backend.
type MemberStats struct {
	Status       string `json:"status"`
	Health       string `json:"health,omitempty"`
	FailedChecks string `json:"failed_checks,omitempty"`
}

// StatsReport carries a load balancer's traffic counters.
type StatsReport struct {
	BytesIn           uint64                 `json:"bytes_in"`
	BytesOut          uint64                 `json:"bytes_out"`
	ActiveConnections uint64                 `json:"active_connections"`
	TotalConnections  uint64                 `json:"total_connections"`
	Members           map[string]MemberStats `json:"members,omitempty"`
}
