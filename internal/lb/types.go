// Package lb holds the load balancer resource model shared by the store,
// the dispatcher and the backend drivers.
package lb

// Protocols supported by listeners and pools.
const (
	ProtocolTCP             = "TCP"
	ProtocolHTTP            = "HTTP"
	ProtocolHTTPS           = "HTTPS"
	ProtocolTerminatedHTTPS = "TERMINATED_HTTPS"
)

// Load balancing algorithms.
const (
	AlgorithmRoundRobin       = "ROUND_ROBIN"
	AlgorithmLeastConnections = "LEAST_CONNECTIONS"
	AlgorithmSourceIP         = "SOURCE_IP"
)

// Session persistence types.
const (
	SessionPersistenceSourceIP   = "SOURCE_IP"
	SessionPersistenceHTTPCookie = "HTTP_COOKIE"
	SessionPersistenceAppCookie  = "APP_COOKIE"
)

// Health monitor types.
const (
	MonitorPing  = "PING"
	MonitorTCP   = "TCP"
	MonitorHTTP  = "HTTP"
	MonitorHTTPS = "HTTPS"
)

// L7 policy actions.
const (
	L7ActionReject         = "REJECT"
	L7ActionRedirectToPool = "REDIRECT_TO_POOL"
	L7ActionRedirectToURL  = "REDIRECT_TO_URL"
)

// L7 rule types and compare types.
const (
	L7RuleHostName = "HOST_NAME"
	L7RulePath     = "PATH"
	L7RuleFileType = "FILE_TYPE"
	L7RuleHeader   = "HEADER"
	L7RuleCookie   = "COOKIE"

	L7CompareRegex      = "REGEX"
	L7CompareStartsWith = "STARTS_WITH"
	L7CompareEndsWith   = "ENDS_WITH"
	L7CompareContains   = "CONTAINS"
	L7CompareEqualTo    = "EQUAL_TO"
)

// listenerPoolProtocols enumerates the compatible (listener, pool) protocol
// pairs.
var listenerPoolProtocols = map[[2]string]bool{
	{ProtocolTCP, ProtocolTCP}:              true,
	{ProtocolHTTP, ProtocolHTTP}:            true,
	{ProtocolHTTPS, ProtocolHTTPS}:          true,
	{ProtocolTerminatedHTTPS, ProtocolHTTP}: true,
}

// ProtocolsCompatible reports whether a pool of the given protocol may serve
// a listener of the given protocol.
func ProtocolsCompatible(listenerProtocol, poolProtocol string) bool {
	return listenerPoolProtocols[[2]string{listenerProtocol, poolProtocol}]
}

// LoadBalancer is the root of a resource tree. Listeners and Pools reference
// it by id; pools may exist unattached to any listener (shared pools).
type LoadBalancer struct {
	ID                 string
	Name               string
	Description        string
	AdminStateUp       bool
	Provider           string
	FlavorID           string
	VIPSubnetID        string
	VIPAddress         string
	VIPPortID          string
	ProvisioningStatus ProvisioningStatus
	OperatingStatus    OperatingStatus

	Listeners []*Listener
	Pools     []*Pool
}

// SessionPersistence configures how a pool pins clients to members. A cookie
// name is required iff Type is APP_COOKIE.
type SessionPersistence struct {
	Type       string `json:"type"`
	CookieName string `json:"cookie_name,omitempty"`
}

// Listener accepts frontend traffic for a load balancer. (loadbalancer,
// protocol_port) is unique.
type Listener struct {
	ID                     string
	LoadBalancerID         string
	Name                   string
	Protocol               string
	ProtocolPort           int
	ConnectionLimit        int
	AdminStateUp           bool
	DefaultPoolID          string
	DefaultTLSContainerRef string
	SNIContainerRefs       []string
	ProvisioningStatus     ProvisioningStatus
	OperatingStatus        OperatingStatus

	DefaultPool *Pool
	L7Policies  []*L7Policy
}

// Pool groups members behind a balancing algorithm. Reachable from the load
// balancer directly or as a listener's default pool, and referenceable as an
// l7 policy redirect target.
type Pool struct {
	ID                 string
	LoadBalancerID     string
	Name               string
	Protocol           string
	Algorithm          string
	AdminStateUp       bool
	SessionPersistence *SessionPersistence
	ProvisioningStatus ProvisioningStatus
	OperatingStatus    OperatingStatus

	Members       []*Member
	HealthMonitor *HealthMonitor
	ListenerIDs   []string
}

// Member is a backend server in a pool. (pool, address, protocol_port) is
// unique.
type Member struct {
	ID                 string
	PoolID             string
	Name               string
	Address            string
	ProtocolPort       int
	Weight             int
	SubnetID           string
	AdminStateUp       bool
	ProvisioningStatus ProvisioningStatus
	OperatingStatus    OperatingStatus
}

// HealthMonitor probes pool members. At most one per pool. Health monitors
// carry no operating status.
type HealthMonitor struct {
	ID                 string
	PoolID             string
	Type               string
	Delay              int
	Timeout            int
	MaxRetries         int
	MaxRetriesDown     int
	HTTPMethod         string
	URLPath            string
	ExpectedCodes      string
	AdminStateUp       bool
	ProvisioningStatus ProvisioningStatus
}

// L7Policy orders traffic-steering decisions on a listener. Position is
// 1-based evaluation order.
type L7Policy struct {
	ID                 string
	ListenerID         string
	Name               string
	Action             string
	Position           int
	RedirectPoolID     string
	RedirectURL        string
	AdminStateUp       bool
	ProvisioningStatus ProvisioningStatus

	Rules []*L7Rule
}

// L7Rule is a single match condition in an l7 policy.
type L7Rule struct {
	ID                 string
	L7PolicyID         string
	Type               string
	CompareType        string
	Key                string
	Value              string
	Invert             bool
	AdminStateUp       bool
	ProvisioningStatus ProvisioningStatus
}

// Stats are the persisted traffic counters for a load balancer. All counters
// are non-negative.
type Stats struct {
	BytesIn           uint64 `json:"bytes_in"`
	BytesOut          uint64 `json:"bytes_out"`
	ActiveConnections uint64 `json:"active_connections"`
	TotalConnections  uint64 `json:"total_connections"`
}

// MemberStats is the per-member slice of a stats report.
type MemberStats struct {
	Status       OperatingStatus `json:"status"`
	Health       string          `json:"health"`
	FailedChecks string          `json:"failed_checks"`
}

// StatsReport is what a stats-capable driver returns for a load balancer.
type StatsReport struct {
	Stats
	Members map[string]MemberStats `json:"members,omitempty"`
}
